package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/solatis/dialectc/internal/types"
)

// OpenAI is an Oracle for any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
	retries int
	logger  *zap.Logger
}

// NewOpenAI creates a chat completions client. cfg.BaseURL is the API root,
// e.g. https://api.openai.com/v1.
func NewOpenAI(cfg Config, logger *zap.Logger) *OpenAI {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	return &OpenAI{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		retries: retries,
		logger:  logger.With(zap.String("oracle", "openai"), zap.String("model", cfg.Model)),
	}
}

type chatRequest struct {
	Model       string          `json:"model"`
	Messages    []types.Message `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat implements Oracle.
func (o *OpenAI) Chat(ctx context.Context, msgs []types.Message, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{Model: o.model, Messages: msgs, Temperature: temperature})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}
	return withRetry(ctx, o.retries, retryBaseDelay, o.logger, func() (string, error) {
		return o.post(ctx, body)
	})
}

func (o *OpenAI) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", permanent(fmt.Errorf("build chat request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("chat request: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", permanent(err)
		}
		return "", err
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", types.ErrOracleEmpty
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", types.ErrOracleEmpty
	}
	return text, nil
}
