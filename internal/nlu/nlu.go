package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"strings"

	openai "github.com/openai/openai-go/v3"
)

// Backend is the chat-style NLU endpoint: it takes a system prompt and the
// user prompt and returns free text that should contain a JSON intent.
type Backend interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type OpenAIBackend struct {
	client openai.Client
	model  string
}

func NewOpenAIBackend(client openai.Client, model string) *OpenAIBackend {
	if model == "" {
		model = string(openai.ChatModelGPT5Nano)
	}
	return &OpenAIBackend{client: client, model: model}
}

func (b *OpenAIBackend) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model: openai.ChatModel(b.model),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty message content")
	}

	log.Debug("NLU replied", "data", content)
	return content, nil
}

const systemPrompt = `
You are the intent parser of a pet-care dashboard voice assistant.
Your ONLY job is to convert the owner's utterance into a minimal structured JSON.

GENERAL RULES:
1. Do NOT converse.
2. Do NOT answer the question.
3. Output ONLY JSON. No markdown.
4. Never invent pets, dates or amounts that were not said.

OUTPUT FORMAT:
{
  "action": "<navigate|log_data|query|schedule|cancel|update|bulk_action|help>",
  "target": "<string>",
  "parameters": { "<name>": "<value>" },
  "confidence": <0.0-1.0>,
  "priority": "<low|normal|high|urgent>",
  "entities": [ { "type": "<pet_name|pet_type|date|time|amount|unit|medication|activity|location>", "value": "<raw text>" } ]
}

TARGETS:
- log_data: feeding, medication, weight, activity, expense
- query: appointments, medications, health, feeding, health_records, milestones, tips, show_more_details
- navigate: the page the owner asked for (dashboard, pets, appointments, health records, ...)
- schedule: appointment

PARAMETERS (only when said): pet, amount, unit, foodType, medication, dosage, activity, duration, date, time, cost, notes.

Pronouns (he, she, it, them) refer to the active pet given in the context.
If the meaning is unclear use action "query", target "general" and confidence below 0.5.
`

func userPrompt(utterance, activePet, page string, pets []string) string {
	var b strings.Builder
	if activePet != "" {
		fmt.Fprintf(&b, "Active pet: %s\n", activePet)
	}
	if page != "" {
		fmt.Fprintf(&b, "Current page: %s\n", page)
	}
	if len(pets) > 0 {
		fmt.Fprintf(&b, "Known pets: %s\n", strings.Join(pets, ", "))
	}
	fmt.Fprintf(&b, "Utterance: %s", utterance)
	return b.String()
}

type wireEntity struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

type wireIntent struct {
	Action               string         `json:"action"`
	Target               string         `json:"target"`
	Parameters           map[string]any `json:"parameters"`
	Confidence           float64        `json:"confidence"`
	Priority             string         `json:"priority"`
	RequiresConfirmation bool           `json:"requiresConfirmation"`
	Entities             []wireEntity   `json:"entities"`
}

var errNoJSON = errors.New("no JSON object in NLU reply")

// decodeReply pulls the first JSON object out of a reply that may be wrapped
// in markdown fences or prose.
func decodeReply(raw string) (wireIntent, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return wireIntent{}, errNoJSON
	}

	var out wireIntent
	if err := json.Unmarshal([]byte(s[start:end+1]), &out); err != nil {
		return wireIntent{}, fmt.Errorf("unmarshal NLU result: %w (raw: %s)", err, raw)
	}
	return out, nil
}
