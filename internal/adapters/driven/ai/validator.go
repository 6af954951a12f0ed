package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
)

var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// DefaultPingTimeout bounds one validation round trip.
const DefaultPingTimeout = 5 * time.Second

// ConfigValidator checks that a configured provider answers.
type ConfigValidator struct {
	Timeout time.Duration
}

// NewConfigValidator returns a validator using DefaultPingTimeout.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{Timeout: DefaultPingTimeout}
}

// ValidateEmbedding pings the provider described by config. An
// unconfigured provider is valid: embedding is optional.
func (v *ConfigValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	timeout := v.Timeout
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := Probe(ctx, config); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	return nil
}
