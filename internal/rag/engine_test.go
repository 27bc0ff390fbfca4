package rag

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"go.uber.org/mock/gomock"

	"pdfrag/internal/llm"
	llm_mocks "pdfrag/internal/llm/mocks"
	"pdfrag/internal/vectorstore"
	vectorstore_mocks "pdfrag/internal/vectorstore/mocks"
	"pdfrag/internal/workflow"
)

const testCollection = "docs"

func intPtr(v int) *int { return &v }

func seedStore(t *testing.T, n int) *vectorstore.MemoryStore {
	t.Helper()
	vs := vectorstore.NewMemoryStore()
	points := make([]vectorstore.Point, n)
	for i := range points {
		points[i] = vectorstore.Point{
			ID:      fmt.Sprintf("p%02d", i),
			Vec:     []float32{1, float32(i) / 10},
			Payload: vectorstore.Payload{Source: fmt.Sprintf("doc%d.pdf", i%2), Text: fmt.Sprintf("X fact %d", i)},
		}
	}
	if err := vs.Upsert(context.Background(), testCollection, points); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	return vs
}

func TestEngine_Query(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := llm_mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedTexts(gomock.Any(), []string{"What is X?"}).Return([][]float32{{1, 0}}, nil)

	chat := llm_mocks.NewMockChatClient(ctrl)
	chat.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), llm.ChatParams{
		Model:       "gpt-4o-mini",
		MaxTokens:   1024,
		Temperature: 0.2,
	}).DoAndReturn(func(_ context.Context, messages []llm.Message, _ llm.ChatParams) (string, error) {
		if len(messages) != 2 || messages[0].Role != "system" || messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", messages)
		}
		return "  X is a fact.\n", nil
	})

	engine := NewEngine(embedder, seedStore(t, 10), chat, testCollection, DefaultOptions)
	got, err := engine.Query(context.Background(), nil, QueryInput{Question: "What is X?", TopK: intPtr(3)})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got.NumContexts != 3 {
		t.Errorf("NumContexts = %d, want 3", got.NumContexts)
	}
	if got.Answer != "X is a fact." {
		t.Errorf("Answer = %q, want trimmed answer", got.Answer)
	}
	if want := []string{"doc0.pdf", "doc1.pdf"}; !reflect.DeepEqual(got.Sources, want) {
		t.Errorf("Sources = %v, want %v", got.Sources, want)
	}
}

func TestEngine_Query_DefaultTopK(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := llm_mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).Return([][]float32{{1, 0}}, nil)
	chat := llm_mocks.NewMockChatClient(ctrl)
	chat.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).Return("answer", nil)

	engine := NewEngine(embedder, seedStore(t, 10), chat, testCollection, DefaultOptions)
	got, err := engine.Query(context.Background(), nil, QueryInput{Question: "What is X?"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got.NumContexts != DefaultTopK {
		t.Errorf("NumContexts = %d, want %d", got.NumContexts, DefaultTopK)
	}
}

func TestEngine_Query_EmptyStoreStillAsksModel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := llm_mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).Return([][]float32{{1, 0}}, nil)

	chat := llm_mocks.NewMockChatClient(ctrl)
	chat.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, messages []llm.Message, _ llm.ChatParams) (string, error) {
			want := "Use the following context to answer the question:\n\nContext:\n\n\nQuestion: What is X?\nAnswer concisely based on the context provided."
			if messages[1].Content != want {
				t.Errorf("user prompt = %q, want %q", messages[1].Content, want)
			}
			return "I don't know.", nil
		})

	engine := NewEngine(embedder, vectorstore.NewMemoryStore(), chat, testCollection, DefaultOptions)
	got, err := engine.Query(context.Background(), nil, QueryInput{Question: "What is X?", TopK: intPtr(3)})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got.NumContexts != 0 {
		t.Errorf("NumContexts = %d, want 0", got.NumContexts)
	}
	if got.Answer == "" {
		t.Error("Answer is empty")
	}
	if got.Sources == nil || len(got.Sources) != 0 {
		t.Errorf("Sources = %#v, want empty slice", got.Sources)
	}
}

func TestEngine_Query_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   QueryInput
	}{
		{name: "zero top_k", in: QueryInput{Question: "What is X?", TopK: intPtr(0)}},
		{name: "negative top_k", in: QueryInput{Question: "What is X?", TopK: intPtr(-2)}},
		{name: "empty question", in: QueryInput{Question: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			// No EXPECT calls: any provider or store call fails the test.
			embedder := llm_mocks.NewMockEmbedder(ctrl)
			chat := llm_mocks.NewMockChatClient(ctrl)
			vs := vectorstore_mocks.NewMockVectorStore(ctrl)

			engine := NewEngine(embedder, vs, chat, testCollection, DefaultOptions)
			_, err := engine.Query(context.Background(), nil, tt.in)
			if !errors.Is(err, workflow.ErrInvalidArgument) {
				t.Errorf("Query() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestEngine_Query_Failures(t *testing.T) {
	tests := []struct {
		name      string
		embedErr  error
		chatErr   error
		wantKind  error
		wantStage string
	}{
		{name: "embedding failure", embedErr: errors.New("quota exceeded"), wantKind: workflow.ErrEmbeddingProvider, wantStage: StepSearch},
		{name: "llm failure", chatErr: errors.New("502 bad gateway"), wantKind: workflow.ErrLLMInference, wantStage: StepAnswer},
		{name: "missing api key", chatErr: llm.ErrMissingAPIKey, wantKind: workflow.ErrLLMInference, wantStage: StepAnswer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			embedder := llm_mocks.NewMockEmbedder(ctrl)
			chat := llm_mocks.NewMockChatClient(ctrl)
			if tt.embedErr != nil {
				embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).Return(nil, tt.embedErr)
			} else {
				embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).Return([][]float32{{1, 0}}, nil)
				chat.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).Return("", tt.chatErr)
			}

			engine := NewEngine(embedder, seedStore(t, 2), chat, testCollection, DefaultOptions)
			_, err := engine.Query(context.Background(), nil, QueryInput{Question: "What is X?"})
			if !errors.Is(err, tt.wantKind) {
				t.Errorf("Query() error = %v, want kind %v", err, tt.wantKind)
			}
			if stage := workflow.StageOf(err); stage != tt.wantStage {
				t.Errorf("stage = %q, want %q", stage, tt.wantStage)
			}
			if !workflow.IsRetryable(err) {
				t.Errorf("IsRetryable(%v) = false, want true", err)
			}
		})
	}
}

func TestEngine_Query_SearchFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := llm_mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).Return([][]float32{{1, 0}}, nil)
	store := vectorstore_mocks.NewMockVectorStore(ctrl)
	store.EXPECT().Search(gomock.Any(), testCollection, gomock.Any(), DefaultOptions.DefaultTopK).
		Return(nil, errors.New("rpc error: code = Unavailable"))
	chat := llm_mocks.NewMockChatClient(ctrl)

	engine := NewEngine(embedder, store, chat, testCollection, DefaultOptions)
	_, err := engine.Query(context.Background(), nil, QueryInput{Question: "What is X?"})
	if !errors.Is(err, workflow.ErrVectorStore) {
		t.Errorf("Query() error = %v, want kind %v", err, workflow.ErrVectorStore)
	}
	if stage := workflow.StageOf(err); stage != StepSearch {
		t.Errorf("stage = %q, want %q", stage, StepSearch)
	}
	if !workflow.IsRetryable(err) {
		t.Errorf("IsRetryable(%v) = false, want true", err)
	}
}

func TestEngine_Query_ReusesSavedSearch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := llm_mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).Return([][]float32{{1, 0}}, nil).Times(1)
	chat := llm_mocks.NewMockChatClient(ctrl)
	gomock.InOrder(
		chat.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("timeout")),
		chat.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).Return("recovered", nil),
	)

	store := workflow.NewMemoryStore()
	policy := workflow.RetryPolicy{MaxAttempts: 1}
	engine := NewEngine(embedder, seedStore(t, 2), chat, testCollection, DefaultOptions)
	in := QueryInput{Question: "What is X?"}

	if _, err := engine.Query(context.Background(), workflow.NewSteps("run-q", store, policy), in); err == nil {
		t.Fatal("Query() expected first execution to fail")
	}
	got, err := engine.Query(context.Background(), workflow.NewSteps("run-q", store, policy), in)
	if err != nil {
		t.Fatalf("Query() re-execution error = %v", err)
	}
	if got.Answer != "recovered" || got.NumContexts != 2 {
		t.Errorf("Query() = %+v", got)
	}
}
