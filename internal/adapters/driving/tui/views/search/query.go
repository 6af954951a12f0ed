package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driving"
)

// Mode is the kind of query typed into the search input.
type Mode string

const (
	// ModeVector searches with a literal vector.
	ModeVector Mode = "vector"
	// ModeMatch searches with the stored vector of another record.
	ModeMatch Mode = "match"
	// ModeSemantic embeds the text and searches with the result.
	ModeSemantic Mode = "semantic"
)

// Query is a parsed search input.
type Query struct {
	Mode   Mode
	Vector []float32
	Source domain.RecordKey
	Text   string
}

// ParseQuery classifies raw input. A bracketed or comma separated list of
// numbers is a vector, "type/id" with a known content type is a match, and
// anything else is semantic text.
func ParseQuery(raw string) (Query, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Query{}, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	if strings.HasPrefix(s, "[") {
		var vec []float32
		if err := json.Unmarshal([]byte(s), &vec); err != nil {
			return Query{}, fmt.Errorf("%w: vector: %v", domain.ErrInvalidInput, err)
		}
		return Query{Mode: ModeVector, Vector: vec}, nil
	}
	if vec, ok := parseFloats(s); ok {
		return Query{Mode: ModeVector, Vector: vec}, nil
	}

	if typ, id, ok := strings.Cut(s, "/"); ok && id != "" && !strings.ContainsAny(s, " \t") {
		if ct, err := domain.ParseContentType(typ); err == nil {
			return Query{Mode: ModeMatch, Source: domain.RecordKey{ContentID: id, ContentType: ct}}, nil
		}
	}

	return Query{Mode: ModeSemantic, Text: s}, nil
}

// parseFloats accepts two or more comma separated numbers.
func parseFloats(s string) ([]float32, bool) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return nil, false
	}
	vec := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, false
		}
		vec = append(vec, float32(f))
	}
	return vec, true
}

// Run sends q to the search call for its mode with default options.
func (q Query) Run(ctx context.Context, svc driving.SearchService, target domain.ContentType) ([]domain.SearchResult, error) {
	switch q.Mode {
	case ModeVector:
		return svc.Search(ctx, q.Vector, target, domain.SearchOptions{})
	case ModeMatch:
		return svc.Match(ctx, q.Source, target, domain.SearchOptions{})
	case ModeSemantic:
		return svc.SemanticSearch(ctx, q.Text, target, domain.SearchOptions{})
	}
	return nil, fmt.Errorf("%w: query mode %q", domain.ErrInvalidInput, q.Mode)
}
