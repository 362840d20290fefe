package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/solatis/dialectc/internal/types"
)

// Gemini is an Oracle backed by the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	retries int
	logger  *zap.Logger
}

// NewGemini creates a Gemini client. An empty cfg.APIKey lets the genai
// client read GEMINI_API_KEY or GOOGLE_API_KEY from the environment.
func NewGemini(ctx context.Context, cfg Config, logger *zap.Logger) (*Gemini, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	return &Gemini{
		client:  client,
		model:   cfg.Model,
		retries: retries,
		logger:  logger.With(zap.String("oracle", "gemini"), zap.String("model", cfg.Model)),
	}, nil
}

// Chat implements Oracle. System messages become the system instruction;
// assistant turns are sent with the model role.
func (g *Gemini) Chat(ctx context.Context, msgs []types.Message, temperature float64) (string, error) {
	system, turns := systemAndTurns(msgs)

	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := genai.Role(genai.RoleUser)
		if m.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	return withRetry(ctx, g.retries, retryBaseDelay, g.logger, func() (string, error) {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err != nil {
			if isPermanentGeminiError(err) {
				return "", permanent(fmt.Errorf("gemini generate: %w", err))
			}
			return "", fmt.Errorf("gemini generate: %w", err)
		}
		text := strings.TrimSpace(resp.Text())
		if text == "" {
			return "", types.ErrOracleEmpty
		}
		return text, nil
	})
}

// isPermanentGeminiError reports client errors other than rate limiting.
func isPermanentGeminiError(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests
}
