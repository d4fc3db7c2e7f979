// Package gemini implements the natural-language evaluator used to judge
// parents' free-text answers and to simplify question hints. It wraps
// Google's Gemini API behind a small interface so the conversation engine
// never touches the SDK directly.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/linyuchia/speechbot/internal/config"
)

// Verdict is the outcome of classifying a parent's answer.
type Verdict int

const (
	// VerdictUnclear means the evaluator could not judge the answer; the
	// same question is re-asked with a clarified hint.
	VerdictUnclear Verdict = iota
	// VerdictPass means the answer meets the question's pass criterion.
	VerdictPass
	// VerdictFail means the answer does not meet the criterion.
	VerdictFail
)

func (v Verdict) String() string {
	switch v {
	case VerdictPass:
		return "pass"
	case VerdictFail:
		return "fail"
	default:
		return "unclear"
	}
}

const (
	verdictPassToken = "符合"
	verdictFailToken = "不符合"
)

// Client defines the evaluator operations used by the conversation engine.
type Client interface {
	// ClassifyAnswer judges a free-text answer against a question's pass
	// criterion. Evaluator failures propagate; the caller aborts the turn.
	ClassifyAnswer(ctx context.Context, question, criterion, answer string) (Verdict, error)

	// RephraseHint asks for a simpler restatement of a hint. The returned
	// text is used verbatim as the retry prompt.
	RephraseHint(ctx context.Context, hint string) (string, error)
}

type sdkClient struct {
	genaiClient      *genai.Client
	log              *slog.Logger
	contentConfig    *genai.GenerateContentConfig
	defaultModelName string
	maxRetries       int
	retryDelay       time.Duration
	requestTimeout   time.Duration
}

// NewClient creates a new Gemini evaluator client with the provided
// configuration.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	baseCfg := &genai.GenerateContentConfig{
		Temperature: &cfg.Temperature,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: ScreeningSystemInstruction}},
		},
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.ModelName)
	return &sdkClient{
		genaiClient:      gi,
		log:              logger,
		contentConfig:    baseCfg,
		defaultModelName: cfg.ModelName,
		maxRetries:       cfg.MaxRetries,
		retryDelay:       time.Duration(cfg.RetryDelaySeconds) * time.Second,
		requestTimeout:   cfg.RequestTimeout,
	}, nil
}

func (c *sdkClient) ClassifyAnswer(ctx context.Context, question, criterion, answer string) (Verdict, error) {
	prompt := fmt.Sprintf(ClassifyPromptTemplate, question, criterion, answer)

	reply, err := c.complete(ctx, prompt)
	if err != nil {
		return VerdictUnclear, fmt.Errorf("answer classification failed: %w", err)
	}

	verdict := parseVerdict(reply)
	c.log.DebugContext(ctx, "Classified answer", "verdict", verdict.String(), "reply_preview", truncate(reply, 50))
	return verdict, nil
}

func (c *sdkClient) RephraseHint(ctx context.Context, hint string) (string, error) {
	prompt := fmt.Sprintf(RephraseHintTemplate, hint)

	reply, err := c.complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("hint rephrase failed: %w", err)
	}
	return reply, nil
}

// parseVerdict scans the evaluator's free-text reply for the pass token
// first, then the fail token, defaulting to unclear. Check order matters:
// a reply containing both tokens counts as pass.
func parseVerdict(reply string) Verdict {
	if strings.Contains(reply, verdictPassToken) {
		return VerdictPass
	}
	if strings.Contains(reply, verdictFailToken) {
		return VerdictFail
	}
	return VerdictUnclear
}

// complete performs one single-turn evaluator call. No conversation memory
// is carried between calls.
func (c *sdkClient) complete(ctx context.Context, prompt string) (string, error) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := c.generateContentWithRetries(ctx, c.defaultModelName, contents, c.contentConfig)
	if err != nil {
		return "", err
	}

	return c.extractTextFromResponse(ctx, resp)
}

func (c *sdkClient) generateContentWithRetries(ctx context.Context, modelName string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.genaiClient.Models.GenerateContent(ctx, modelName, contents, cfg)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "Gemini API call failed, checking for retry", "attempt", i+1, "max_retries", c.maxRetries, "error", err)

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) {
			if i < c.maxRetries {
				c.log.InfoContext(ctx, "Retrying Gemini API call due to retriable APIError", "delay", c.retryDelay, "code", apiErr.Code)
				time.Sleep(c.retryDelay)
				continue
			}
			c.log.ErrorContext(ctx, "Gemini API call failed after max retries with APIError", "error", err, "code", apiErr.Code)
			return nil, fmt.Errorf("gemini API call failed after %d retries (APIError code %d): %w", c.maxRetries, apiErr.Code, err)
		}

		c.log.ErrorContext(ctx, "Gemini API call failed with non-retriable error", "error", err)
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}

	return nil, err
}

func (c *sdkClient) extractTextFromResponse(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "reason", reasonMsg)
		return "", fmt.Errorf("evaluator request blocked by safety filter: %s", reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "finish_reason", finishReason)
		return "", fmt.Errorf("evaluator returned no content, finish reason: %s", finishReason)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("evaluator returned empty text")
	}

	return text, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
