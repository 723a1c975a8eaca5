package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"

	"plantcare/internal/models"
	"plantcare/internal/repository"
	"plantcare/pkg/logging"
	"plantcare/pkg/tracing"
)

// maxStoredChatMessages caps the stored conversation; the oldest turn is dropped first.
const maxStoredChatMessages = 200

const systemPrompt = `You are PlantCare AI Assistant, an expert agricultural chatbot specializing in:
- Plant disease identification and treatment
- Crop management and best practices
- Fertilizer and NPK recommendations
- Pesticide guidance (chemical and organic)
- Disease prevention strategies
- Soil health and irrigation advice

You have knowledge of 38 plant disease categories covering: Apple, Blueberry, Cherry, Corn/Maize,
Grape, Orange, Peach, Bell Pepper, Potato, Raspberry, Soybean, Squash, Strawberry, and Tomato.

Always give practical, actionable advice. When recommending pesticides, include dosage and safety info.
If a farmer describes symptoms, help identify the likely disease and suggest treatment steps.
Keep responses concise but complete. Use simple language suitable for farmers.
If asked something outside agriculture/plant care, politely redirect to your area of expertise.`

// Completion is one reply from a chat model.
type Completion struct {
	Text       string
	TokensUsed *int
}

// ChatModel produces a reply to message given earlier turns of the conversation.
type ChatModel interface {
	Complete(ctx context.Context, model, system string, history []models.ChatMessage, message string) (Completion, error)
}

// ChatReply is the outcome of one chat turn.
type ChatReply struct {
	Message    string `json:"message"`
	Model      string `json:"model"`
	TokensUsed *int   `json:"tokens_used"`
}

// ChatService runs the agricultural assistant conversation
type ChatService struct {
	model        ChatModel
	repo         repository.ChatRepository
	defaultModel string
	historyTurns int
	logger       *logging.StructuredLogger
	now          func() time.Time
}

// NewChatService creates a new chat service. model may be nil when no API key is
// configured; Send then reports models.ErrUnavailable.
func NewChatService(model ChatModel, repo repository.ChatRepository, defaultModel string, historyTurns int, logger *logging.StructuredLogger) *ChatService {
	return &ChatService{
		model:        model,
		repo:         repo,
		defaultModel: defaultModel,
		historyTurns: historyTurns,
		logger:       logger,
		now:          time.Now,
	}
}

// Available reports whether a chat model is configured
func (s *ChatService) Available() bool {
	return s.model != nil
}

// Send forwards message with recent context to the chat model and stores both sides of the turn
func (s *ChatService) Send(ctx context.Context, message, model string) (*ChatReply, error) {
	if s.model == nil {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY environment variable is not set; "+
			"create a key at https://aistudio.google.com/apikey and export GEMINI_API_KEY", models.ErrUnavailable)
	}
	if model == "" {
		model = s.defaultModel
	}

	ctx, span := tracing.Start(ctx, "chat.send", attribute.String("model", model))
	defer span.End()

	history, err := s.repo.Recent(ctx, s.historyTurns*2)
	if err != nil {
		return nil, err
	}

	completion, err := s.model.Complete(ctx, model, systemPrompt, history, message)
	if err != nil {
		span.RecordError(err)
		s.logger.Error(ctx, "[CHAT_UPSTREAM_ERROR] Chat model request failed", logging.Fields{
			"model": model,
		}, err)
		return nil, fmt.Errorf("%w: chat model error: %v", models.ErrUpstream, err)
	}

	now := s.now().UTC()
	if err := s.repo.Append(ctx, maxStoredChatMessages,
		models.ChatMessage{Role: models.RoleUser, Content: message, Timestamp: now},
		models.ChatMessage{Role: models.RoleAssistant, Content: completion.Text, Timestamp: now},
	); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "[CHAT] Reply generated", logging.Fields{
		"model":       model,
		"user_chars":  len(message),
		"reply_chars": len(completion.Text),
	})

	return &ChatReply{Message: completion.Text, Model: model, TokensUsed: completion.TokensUsed}, nil
}

// History returns the whole stored conversation
func (s *ChatService) History(ctx context.Context) ([]models.ChatMessage, error) {
	return s.repo.All(ctx)
}

// Clear forgets the conversation
func (s *ChatService) Clear(ctx context.Context) error {
	return s.repo.Clear(ctx)
}

// GeminiChatModel is a ChatModel backed by the Gemini API
type GeminiChatModel struct {
	client *genai.Client
}

// NewGeminiChatModel creates a Gemini client. It returns nil and no error when apiKey is empty.
func NewGeminiChatModel(ctx context.Context, apiKey string) (*GeminiChatModel, error) {
	if apiKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiChatModel{client: client}, nil
}

func (g *GeminiChatModel) Complete(ctx context.Context, model, system string, history []models.ChatMessage, message string) (Completion, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		role := genai.Role(genai.RoleUser)
		if m.Role == models.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))

	result, err := g.client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.7),
		MaxOutputTokens:   1024,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("GenAI generate failed: %w", err)
	}

	c := Completion{Text: result.Text()}
	if result.UsageMetadata != nil {
		n := int(result.UsageMetadata.TotalTokenCount)
		c.TokensUsed = &n
	}
	return c, nil
}
