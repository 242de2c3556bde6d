package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fieldops_backend/platform/config"
	"fieldops_backend/platform/logger"

	"google.golang.org/genai"
)

const replySystemPrompt = `You are a friendly sales assistant for a home-services company.
You are texting with a potential customer about their project inquiry.

RULES:
1. Keep replies short and conversational, suitable for SMS (under 300 characters).
2. Ask at most one question per message.
3. Your goal is to learn the project type, the timeline, and whether the
   customer wants a visit from a representative.
4. When the customer has answered those points, or clearly wants to wrap up,
   say a brief goodbye and set "shouldEnd" to true.

Respond ONLY with JSON: {"message": "...", "shouldEnd": true|false}`

const analysisSystemPrompt = `You classify a finished SMS conversation between a
sales assistant and a potential home-services customer.

Respond ONLY with JSON:
{
  "outcome": "interested|not_interested|needs_followup|no_answer",
  "interestLevel": "very-high|high|medium|low|not-interested",
  "projectType": "...",
  "timeline": "...",
  "removeFromList": true|false
}`

// GeminiClient implements Client using the Gemini API.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	log     *logger.Logger
}

// NewGeminiClient creates the Gemini-backed capability. Returns an error
// when no API key is configured; the caller decides whether that is fatal.
func NewGeminiClient(ctx context.Context, cfg config.AIConfig, log *logger.Logger) (*GeminiClient, error) {
	if cfg.GetGeminiAPIKey() == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for the AI capability")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	timeout := cfg.GetAITimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &GeminiClient{
		client:  client,
		model:   cfg.GetGeminiModel(),
		timeout: timeout,
		log:     log,
	}, nil
}

// GenerateReply produces the next outbound message for the conversation.
func (g *GeminiClient) GenerateReply(ctx context.Context, req ReplyRequest) (Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := make([]*genai.Content, 0, len(req.History)+1)

	intro := fmt.Sprintf("Customer name: %s.", req.CustomerName)
	if req.ContextNotes != "" {
		intro += " Lead context: " + req.ContextNotes
	}
	contents = append(contents, genai.NewContentFromText(intro, genai.RoleUser))

	for _, msg := range req.History {
		role := genai.Role(genai.RoleUser)
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	raw, err := g.generate(ctx, contents, replySystemPrompt)
	if err != nil {
		return Reply{}, err
	}

	var reply Reply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return Reply{}, fmt.Errorf("malformed reply payload: %w", err)
	}
	if strings.TrimSpace(reply.Message) == "" {
		return Reply{}, fmt.Errorf("reply payload missing message")
	}

	return reply, nil
}

// Analyze classifies the full transcript into a structured analysis.
func (g *GeminiClient) Analyze(ctx context.Context, history []HistoryMessage) (Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	transcript, err := json.Marshal(history)
	if err != nil {
		return Analysis{}, fmt.Errorf("marshal transcript: %w", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromText("Transcript:\n"+string(transcript), genai.RoleUser),
	}

	raw, err := g.generate(ctx, contents, analysisSystemPrompt)
	if err != nil {
		return Analysis{}, err
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return Analysis{}, fmt.Errorf("malformed analysis payload: %w", err)
	}
	if analysis.Outcome == "" {
		return Analysis{}, fmt.Errorf("analysis payload missing outcome")
	}

	return analysis, nil
}

func (g *GeminiClient) generate(ctx context.Context, contents []*genai.Content, systemPrompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0.7),
	})
	if err != nil {
		g.log.ProviderError("gemini", "generate_content", err)
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned empty response")
	}

	// Some models wrap JSON in code fences despite the response MIME type.
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	return strings.TrimSpace(text), nil
}

var _ Client = (*GeminiClient)(nil)
