// Package oracle provides chat clients for the language model that repairs
// translations and proposes new rules.
//
// Every client implements Oracle. Callers treat the oracle as optional: a nil
// Oracle means the pipeline runs rule-only, and oracle errors never turn a
// produced translation into a failure.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/solatis/dialectc/internal/types"
)

// Oracle sends a conversation to a language model and returns its reply.
type Oracle interface {
	Chat(ctx context.Context, msgs []types.Message, temperature float64) (string, error)
}

// Provider names accepted by New.
const (
	ProviderNone   = "none"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"
	defaultOpenAIModel = "gpt-4o-mini"
	defaultOpenAIURL   = "https://api.openai.com/v1"
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	retryBaseDelay     = 300 * time.Millisecond
)

// Config selects and parameterises an oracle client.
type Config struct {
	Provider   string
	Model      string
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// New builds the oracle named by cfg.Provider. ProviderNone and the empty
// string return a nil Oracle and no error.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Oracle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderNone:
		return nil, nil
	case ProviderGemini:
		if cfg.Model == "" {
			cfg.Model = defaultGeminiModel
		}
		g, err := NewGemini(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return g, nil
	case ProviderOpenAI:
		if cfg.Model == "" {
			cfg.Model = defaultOpenAIModel
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultOpenAIURL
		}
		return NewOpenAI(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

// withRetry calls fn up to attempts times, sleeping base, 2*base, 4*base...
// between failures. Permanent errors and context cancellation stop early.
func withRetry(ctx context.Context, attempts int, base time.Duration, logger *zap.Logger, fn func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		out, err := fn()
		if err == nil {
			return out, nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return "", perm.err
		}
		if attempt == attempts-1 {
			break
		}

		delay := base * time.Duration(1<<attempt)
		logger.Debug("oracle call failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", lastErr
}

// systemAndTurns splits leading system messages from the conversation.
func systemAndTurns(msgs []types.Message) (string, []types.Message) {
	var system []string
	i := 0
	for ; i < len(msgs) && msgs[i].Role == types.RoleSystem; i++ {
		system = append(system, msgs[i].Content)
	}
	return strings.Join(system, "\n\n"), msgs[i:]
}
