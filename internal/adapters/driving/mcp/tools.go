package mcp

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

// searchOptions converts tool arguments. A nil threshold means the default.
func searchOptions(limit int, threshold *float64, includeVector bool) domain.SearchOptions {
	opts := domain.SearchOptions{Limit: limit, IncludeVector: includeVector}
	if threshold != nil {
		opts = opts.WithThreshold(*threshold)
	}
	return opts
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Vector        []float32 `json:"vector" jsonschema:"query embedding, its length must match the content type's dimension"`
	ContentType   string    `json:"content_type" jsonschema:"one of resume, job, company, generic"`
	Limit         int       `json:"limit,omitempty" jsonschema:"maximum number of results (default from settings)"`
	Threshold     *float64  `json:"threshold,omitempty" jsonschema:"minimum cosine similarity in [-1, 1] (default from settings)"`
	IncludeVector bool      `json:"include_vector,omitempty" jsonschema:"include stored vectors in results"`
}

// MatchInput is the input schema for the match tool.
type MatchInput struct {
	SourceType    string   `json:"source_type" jsonschema:"content type of the stored record to match from"`
	SourceID      string   `json:"source_id" jsonschema:"content id of the stored record to match from"`
	TargetType    string   `json:"target_type" jsonschema:"content type to search"`
	Limit         int      `json:"limit,omitempty" jsonschema:"maximum number of results (default from settings)"`
	Threshold     *float64 `json:"threshold,omitempty" jsonschema:"minimum cosine similarity in [-1, 1] (default from settings)"`
	IncludeVector bool     `json:"include_vector,omitempty" jsonschema:"include stored vectors in results"`
}

// SemanticSearchInput is the input schema for the semantic_search tool.
type SemanticSearchInput struct {
	Text          string   `json:"text" jsonschema:"free text to embed and search with"`
	ContentType   string   `json:"content_type" jsonschema:"one of resume, job, company, generic"`
	Limit         int      `json:"limit,omitempty" jsonschema:"maximum number of results (default from settings)"`
	Threshold     *float64 `json:"threshold,omitempty" jsonschema:"minimum cosine similarity in [-1, 1] (default from settings)"`
	IncludeVector bool     `json:"include_vector,omitempty" jsonschema:"include stored vectors in results"`
}

// SearchOutput is the output schema for the search tools.
type SearchOutput struct {
	Results []domain.SearchResult `json:"results"`
	Count   int                   `json:"count"`
}

// StatsInput is the empty input of the stats tool.
type StatsInput struct{}

// StatsOutput is the output schema for the stats tool.
type StatsOutput struct {
	Total        int                `json:"total"`
	SizeBytes    int64              `json:"size_bytes"`
	LatestUpdate string             `json:"latest_update,omitempty"`
	Types        []ContentTypeStats `json:"types"`
}

// ContentTypeStats summarises one content type.
type ContentTypeStats struct {
	ContentType string `json:"content_type"`
	Records     int    `json:"records"`
	Indexed     int    `json:"indexed"`
	IndexKind   string `json:"index_kind"`
	Fresh       bool   `json:"fresh"`
	Rebuilding  bool   `json:"rebuilding"`
	LastRebuild string `json:"last_rebuild,omitempty"`
	Fallbacks   uint64 `json:"fallbacks"`
}

// JobsInput is the empty input of the jobs tool.
type JobsInput struct{}

// JobsOutput is the output schema for the jobs tool.
type JobsOutput struct {
	Jobs []JobInfo `json:"jobs"`
}

// JobInfo summarises one maintenance job and its latest run.
type JobInfo struct {
	Job        string `json:"job"`
	Every      string `json:"every"`
	Paused     bool   `json:"paused"`
	NextRun    string `json:"next_run,omitempty"`
	LastOK     string `json:"last_success,omitempty"`
	LastError  string `json:"last_error,omitempty"`
	Failures   int    `json:"consecutive_failures"`
	LastRunAt  string `json:"last_run_at,omitempty"`
	LastRunFor string `json:"last_run_duration,omitempty"`
	Affected   int    `json:"last_run_affected"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Rank stored records of one content type by cosine similarity to a vector",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "match",
		Description: "Find records of a content type similar to a stored record, e.g. jobs for a résumé",
	}, s.handleMatch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "semantic_search",
		Description: "Embed free text and rank stored records of one content type by similarity",
	}, s.handleSemanticSearch)

	if s.ports.Maintenance != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "stats",
			Description: "Report record counts and index freshness per content type",
		}, s.handleStats)
	}

	if s.ports.Scheduler != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "jobs",
			Description: "Show the background index rebuild and cleanup jobs with their last run",
		}, s.handleJobs)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	ct, err := domain.ParseContentType(input.ContentType)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	results, err := s.ports.Search.Search(ctx, input.Vector, ct, searchOptions(input.Limit, input.Threshold, input.IncludeVector))
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, newSearchOutput(results), nil
}

// handleMatch handles the match tool invocation.
func (s *Server) handleMatch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input MatchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	sourceType, err := domain.ParseContentType(input.SourceType)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	target, err := domain.ParseContentType(input.TargetType)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	source := domain.RecordKey{ContentID: input.SourceID, ContentType: sourceType}
	results, err := s.ports.Search.Match(ctx, source, target, searchOptions(input.Limit, input.Threshold, input.IncludeVector))
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, newSearchOutput(results), nil
}

// handleSemanticSearch handles the semantic_search tool invocation.
func (s *Server) handleSemanticSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SemanticSearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	ct, err := domain.ParseContentType(input.ContentType)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	results, err := s.ports.Search.SemanticSearch(ctx, input.Text, ct, searchOptions(input.Limit, input.Threshold, input.IncludeVector))
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, newSearchOutput(results), nil
}

// handleStats handles the stats tool invocation.
func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	stats, err := s.ports.Maintenance.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, fmt.Errorf("collecting stats: %w", err)
	}
	return nil, newStatsOutput(stats), nil
}

// handleJobs handles the jobs tool invocation.
func (s *Server) handleJobs(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ JobsInput,
) (*mcp.CallToolResult, JobsOutput, error) {
	jobs, err := s.ports.Scheduler.Jobs(ctx)
	if err != nil {
		return nil, JobsOutput{}, fmt.Errorf("listing jobs: %w", err)
	}

	out := JobsOutput{Jobs: make([]JobInfo, 0, len(jobs))}
	for _, st := range jobs {
		info := JobInfo{
			Job:       string(st.Schedule.Job),
			Every:     st.Schedule.Every.String(),
			Paused:    st.Schedule.Paused,
			NextRun:   formatTime(st.Schedule.Due),
			LastOK:    formatTime(st.Schedule.LastOK),
			LastError: st.Schedule.LastErr,
			Failures:  st.Schedule.Failures,
		}
		if len(st.Recent) > 0 {
			last := st.Recent[0]
			info.LastRunAt = formatTime(last.Started)
			info.LastRunFor = last.Took().String()
			info.Affected = last.Affected
		}
		out.Jobs = append(out.Jobs, info)
	}
	return nil, out, nil
}

func newSearchOutput(results []domain.SearchResult) SearchOutput {
	if results == nil {
		results = []domain.SearchResult{}
	}
	return SearchOutput{Results: results, Count: len(results)}
}

func newStatsOutput(stats *domain.EngineStats) StatsOutput {
	out := StatsOutput{
		Total:        stats.Store.Total,
		SizeBytes:    stats.Store.SizeBytes,
		LatestUpdate: formatTime(stats.Store.LatestUpdate),
		Types:        make([]ContentTypeStats, 0, len(stats.Index)),
	}

	types := make([]domain.ContentType, 0, len(stats.Index))
	for ct := range stats.Index {
		types = append(types, ct)
	}
	slices.Sort(types)

	for _, ct := range types {
		idx := stats.Index[ct]
		out.Types = append(out.Types, ContentTypeStats{
			ContentType: ct.String(),
			Records:     stats.Store.Counts[ct],
			Indexed:     idx.Entries,
			IndexKind:   idx.Kind.String(),
			Fresh:       idx.Fresh,
			Rebuilding:  idx.Rebuilding,
			LastRebuild: formatTime(idx.LastRebuild),
			Fallbacks:   idx.Fallbacks,
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
