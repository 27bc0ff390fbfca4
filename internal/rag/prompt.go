package rag

import (
	"fmt"
	"strings"

	"pdfrag/internal/llm"
)

const systemPrompt = "You answer questions based only on provided context."

// buildUserPrompt lists each context as a bullet, followed by the question.
func buildUserPrompt(question string, contexts []string) string {
	bullets := make([]string, len(contexts))
	for i, c := range contexts {
		bullets[i] = "- " + c
	}
	return fmt.Sprintf(
		"Use the following context to answer the question:\n\nContext:\n%s\n\nQuestion: %s\nAnswer concisely based on the context provided.",
		strings.Join(bullets, "\n\n"),
		question,
	)
}

func buildMessages(question string, contexts []string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildUserPrompt(question, contexts)},
	}
}
