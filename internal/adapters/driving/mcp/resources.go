package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for simmatch resources.
	uriScheme = "simmatch://"
)

// registerResources registers the resources whose ports are available.
func (s *Server) registerResources() {
	if s.ports.Maintenance != nil {
		s.server.AddResource(&mcp.Resource{
			URI:         uriScheme + "stats",
			Name:        "stats",
			Description: "Record counts and index state per content type",
			MIMEType:    "application/json",
		}, s.handleStatsResource)
	}

	if s.ports.Vectors != nil {
		s.server.AddResourceTemplate(&mcp.ResourceTemplate{
			URITemplate: uriScheme + "records/{contentType}/{contentId}",
			Name:        "record",
			Description: "A stored embedding record with its metadata",
			MIMEType:    "application/json",
		}, s.handleRecordResource)
	}
}

// handleStatsResource returns engine statistics.
func (s *Server) handleStatsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	stats, err := s.ports.Maintenance.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("collecting stats: %w", err)
	}
	return jsonResource(req.Params.URI, newStatsOutput(stats))
}

// handleRecordResource returns one stored record.
func (s *Server) handleRecordResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	key, ok := extractRecordKey(req.Params.URI)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	rec, err := s.ports.Vectors.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		return nil, fmt.Errorf("getting record: %w", err)
	}
	return jsonResource(req.Params.URI, rec)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractRecordKey parses a URI like simmatch://records/{contentType}/{contentId}.
func extractRecordKey(uri string) (domain.RecordKey, bool) {
	const prefix = uriScheme + "records/"

	if !strings.HasPrefix(uri, prefix) {
		return domain.RecordKey{}, false
	}

	ct, id, ok := strings.Cut(strings.TrimPrefix(uri, prefix), "/")
	if !ok {
		return domain.RecordKey{}, false
	}
	key := domain.RecordKey{ContentID: id, ContentType: domain.ContentType(ct)}
	if key.Validate() != nil {
		return domain.RecordKey{}, false
	}
	return key, true
}
