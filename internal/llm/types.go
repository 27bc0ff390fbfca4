package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks pdfrag/internal/llm Embedder
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chat_client.go -package=mocks pdfrag/internal/llm ChatClient

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrMissingAPIKey is returned by a call made without a configured API key.
var ErrMissingAPIKey = errors.New("LLM_API_KEY is not set")

// ErrDimensionMismatch is returned when the provider's vectors differ from the configured size.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder maps texts to vectors.
// The result has the same length and order as texts.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatClient completes a chat conversation.
type ChatClient interface {
	ChatWithMessages(ctx context.Context, messages []Message, params ChatParams) (string, error)
}

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds parameters for chat completion requests.
type ChatParams struct {
	// Model specifies the model to use. If empty, the client's default model is used.
	Model string

	// MaxTokens specifies the maximum number of tokens to generate.
	// If 0, no limit is applied.
	MaxTokens int

	// Temperature controls the randomness of the output.
	Temperature float32
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 2 * time.Minute}
}
