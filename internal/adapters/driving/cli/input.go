package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

// parseVector accepts a JSON array or comma-separated floats.
func parseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: vector is empty", domain.ErrInvalidInput)
	}

	if strings.HasPrefix(s, "[") {
		var vec []float32
		if err := json.Unmarshal([]byte(s), &vec); err != nil {
			return nil, fmt.Errorf("%w: vector: %w", domain.ErrInvalidInput, err)
		}
		return vec, nil
	}

	parts := strings.Split(s, ",")
	vec := make([]float32, 0, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("%w: vector element %d: %w", domain.ErrInvalidInput, i, err)
		}
		vec = append(vec, float32(f))
	}
	return vec, nil
}

// readVector resolves the --vector and --vector-file flags.
// A file name of "-" reads from the command's stdin.
func readVector(cmd *cobra.Command, inline, file string) ([]float32, error) {
	switch {
	case inline != "" && file != "":
		return nil, fmt.Errorf("%w: use either --vector or --vector-file", domain.ErrInvalidInput)
	case inline != "":
		return parseVector(inline)
	case file == "":
		return nil, fmt.Errorf("%w: --vector or --vector-file is required", domain.ErrInvalidInput)
	}

	var data []byte
	var err error
	if file == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("reading vector: %w", err)
	}
	return parseVector(string(data))
}

// parseMetadata decodes a JSON object. Empty input yields nil.
func parseMetadata(s string) (map[string]any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("%w: metadata must be a JSON object: %w", domain.ErrInvalidInput, err)
	}
	return m, nil
}

// parseKey builds a record key from type and id arguments.
func parseKey(contentType, contentID string) (domain.RecordKey, error) {
	ct, err := domain.ParseContentType(contentType)
	if err != nil {
		return domain.RecordKey{}, err
	}
	key := domain.RecordKey{ContentID: contentID, ContentType: ct}
	return key, key.Validate()
}
