package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"techdispatch/internal/model"
	"techdispatch/internal/obs"
)

const systemPrompt = `You summarize a field-service dispatch evaluation for a dispatcher.
Write at most four short sentences in plain text. Lead with high-severity conflicts,
then auto-dispatch candidates, then anything else worth acting on. Do not invent data.`

// OpenAI asks a chat completion model for the summary. Only counts and the
// highest-severity conflict messages are sent, never customer addresses.
type OpenAI struct {
	client    openai.Client
	model     string
	maxTokens int64
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func NewOpenAI(cfg OpenAIConfig, opts ...option.RequestOption) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)
	m := cfg.Model
	if m == "" {
		m = "gpt-4o-mini"
	}
	return &OpenAI{client: openai.NewClient(reqOpts...), model: m, maxTokens: 200}, nil
}

func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) Summarize(ctx context.Context, ev *model.Evaluation) (_ string, err error) {
	defer obs.Time(ctx, "summary.openai")(&err)
	if ev == nil {
		return "", nil
	}
	prompt, err := buildPrompt(ev)
	if err != nil {
		return "", err
	}
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		MaxTokens: openai.Int(o.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat: no choices in response")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("openai chat: empty summary")
	}
	return text, nil
}

type promptInput struct {
	Date      string      `json:"date"`
	Stats     model.Stats `json:"stats"`
	Conflicts []string    `json:"conflicts,omitempty"`
	Ready     []string    `json:"autoDispatch,omitempty"`
}

const maxPromptItems = 10

// buildPrompt keeps the payload small: conflicts are already sorted by severity.
func buildPrompt(ev *model.Evaluation) (string, error) {
	in := promptInput{Date: ev.Date, Stats: ev.Stats}
	for i, c := range ev.Conflicts {
		if i == maxPromptItems {
			break
		}
		in.Conflicts = append(in.Conflicts, fmt.Sprintf("[%s] %s", c.Severity, c.Message))
	}
	for i, r := range ev.AutoDispatchRecommendations {
		if i == maxPromptItems {
			break
		}
		in.Ready = append(in.Ready, fmt.Sprintf("job %s -> %s at %s (%d%%)", r.JobID, r.TechnicianID, r.SuggestedTime, r.Score))
	}
	b, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal prompt: %w", err)
	}
	return "Evaluation:\n" + string(b), nil
}
