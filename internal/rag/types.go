package rag

// FunctionName is the workflow function that answers one question.
const FunctionName = "rag-query-pdf-ai"

// DefaultTopK is the number of contexts retrieved when a query does not set top_k.
const DefaultTopK = 5

// QueryInput is the data of a query trigger.
type QueryInput struct {
	// Question is the user's question to answer.
	Question string `json:"question"`
	// TopK is the number of contexts to retrieve. Nil means DefaultTopK.
	TopK *int `json:"top_k,omitempty"`
}

// QueryResult is the output of a completed query run.
type QueryResult struct {
	// Answer is the model's answer with surrounding whitespace removed.
	Answer string `json:"answer"`
	// Sources are the distinct source ids of the retrieved contexts, best match first.
	Sources []string `json:"sources"`
	// NumContexts is the number of contexts given to the model.
	NumContexts int `json:"num_contexts"`
}

// retrieved is the output of the embed-and-search step.
type retrieved struct {
	Contexts []string `json:"contexts"`
	Sources  []string `json:"sources"`
}

// Options configures the answering model call.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float32
	DefaultTopK int
}

// DefaultOptions answers with gpt-4o-mini at low temperature.
var DefaultOptions = Options{
	Model:       "gpt-4o-mini",
	MaxTokens:   1024,
	Temperature: 0.2,
	DefaultTopK: DefaultTopK,
}
