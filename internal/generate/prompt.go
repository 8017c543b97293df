package generate

import (
	"fmt"
	"sort"
	"strings"
)

// Prompt templates use {context} and {query} placeholders. The wording
// matters for evaluation: "strict" instructs the model to refuse when
// the context does not contain the answer, which the faithfulness judge
// rewards and the relevancy judge can punish.
var promptTemplates = map[string]string{
	"baseline": "You are a recruitment assistant. Use ONLY the context to answer.\n" +
		"If the answer is not explicitly stated in the context, reply with: \"I don't know.\"" +
		"\n\n" +
		"Context:\n{context}\n\n" +
		"Question: {query}",
	"strict": "Act as a precise retrieval QA assistant.\n" +
		"Use only the provided context. If the answer isn't in the context, say: 'I don't know.'\n\n" +
		"Context:\n{context}\n\n" +
		"Question: {query}\n" +
		"Answer concisely with bullet points where possible.",
}

// RenderPrompt fills the named template with the assembled context and
// the question.
func RenderPrompt(name, context, query string) (string, error) {
	tmpl, ok := promptTemplates[name]
	if !ok {
		names := make([]string, 0, len(promptTemplates))
		for n := range promptTemplates {
			names = append(names, n)
		}
		sort.Strings(names)
		return "", fmt.Errorf("unknown prompt %q (have %s)", name, strings.Join(names, ", "))
	}
	out := strings.ReplaceAll(tmpl, "{context}", context)
	out = strings.ReplaceAll(out, "{query}", query)
	return out, nil
}

// PromptNames returns the available template names, sorted.
func PromptNames() []string {
	names := make([]string, 0, len(promptTemplates))
	for n := range promptTemplates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
