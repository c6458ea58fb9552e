package grader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/openexams/examtaker/internal/model"
)

const systemRole = "You are an educational assessment AI."

// Config holds the OpenAI-compatible endpoint settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
}

// OpenAIClient implements Client against any OpenAI-compatible chat API.
type OpenAIClient struct {
	api         *openai.Client
	model       string
	temperature float32
}

// NewOpenAIClient creates a grading client. The API key and model are
// required; the base URL defaults to the official endpoint.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("grading API key is not configured")
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = openai.GPT3Dot5Turbo
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.7
	}
	return &OpenAIClient{
		api:         openai.NewClientWithConfig(config),
		model:       modelName,
		temperature: temperature,
	}, nil
}

// Grade submits one question for assessment and parses the structured
// reply. Transport failures and unparseable replies are both returned as
// errors; the caller decides how to surface them.
func (c *OpenAIClient) Grade(ctx context.Context, q *model.Question) (Result, error) {
	raw, err := c.complete(ctx, systemRole, buildGradingPrompt(q))
	if err != nil {
		return Result{}, fmt.Errorf("grading API call: %w", err)
	}
	slog.Debug("grading response", "question_id", q.QuestionID, "raw", raw)

	res, err := parseResult(raw)
	if err != nil {
		return res, err
	}
	// Echo the question's own max when the collaborator omitted it.
	if res.MaxScore == 0 {
		res.MaxScore = q.Score
	}
	return res, nil
}

// Explain asks for a tutoring explanation of the question.
func (c *OpenAIClient) Explain(ctx context.Context, q *model.Question) (string, error) {
	return c.complete(ctx, "You are an educational tutor explaining exam questions.", buildExplainPrompt(q))
}

// Verify asks for a quality review of the question and its canonical answer.
func (c *OpenAIClient) Verify(ctx context.Context, q *model.Question) (string, error) {
	return c.complete(ctx, "You are an educational assessment expert verifying question quality.", buildVerifyPrompt(q))
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("collaborator returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
