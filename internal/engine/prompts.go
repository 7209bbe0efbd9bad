package engine

import (
	"fmt"
	"strings"

	"github.com/bull/medrag/internal/conversation"
	"github.com/bull/medrag/internal/llm"
	"github.com/bull/medrag/internal/storage"
)

const (
	enhanceWindow       = 6
	enhanceAnswerChars  = 200
	historyWindow       = 4
	historyAnswerChars  = 150
	previewChars        = 200
	defaultSourceTitle  = "Medical Knowledge Base"
	noReferencesMessage = "No specific medical references were found for this query."
)

// SystemPrompt instructs the generator how to answer.
const SystemPrompt = `You are a knowledgeable medical AI assistant designed to provide accurate, helpful medical information. Your responses should be:

1. **Accurate and Evidence-Based**: Use only the provided medical context and established medical knowledge
2. **Clear and Accessible**: Explain medical concepts in understandable terms while maintaining accuracy
3. **Comprehensive**: Provide thorough answers that address the user's question completely
4. **Source-Aware**: Reference the provided medical sources when applicable
5. **Safety-Conscious**: Always emphasize the importance of professional medical consultation

Guidelines:
- Focus on educational information rather than diagnostic advice
- Acknowledge limitations when information is insufficient
- Use clear, professional medical terminology with explanations
- Structure responses logically with clear sections when appropriate
- Be empathetic and understanding of health concerns

Remember: You are providing educational information to help users understand medical topics, not replacing professional medical advice.`

// Disclaimer is appended to every answer when safety disclaimers are enabled.
const Disclaimer = "\n\n⚠️ **Medical Disclaimer**: This information is for educational purposes only " +
	"and should not replace professional medical advice, diagnosis, or treatment. " +
	"Always consult with qualified healthcare professionals for medical concerns. " +
	"In case of emergency, contact emergency services immediately."

// enhanceQuery prefixes the question with the recent exchange so follow-ups
// like "what about its side effects?" retrieve the right topic.
func enhanceQuery(query string, history []conversation.Message) string {
	if len(history) == 0 {
		return query
	}
	recent := history[max(0, len(history)-enhanceWindow):]

	parts := make([]string, 0, len(recent))
	for _, m := range recent {
		switch m.Role {
		case conversation.RoleUser:
			parts = append(parts, "Previous question: "+m.Content)
		case conversation.RoleAssistant:
			parts = append(parts, "Previous answer: "+abbreviate(m.Content, enhanceAnswerChars))
		}
	}
	if len(parts) == 0 {
		return query
	}
	return "Context from conversation:\n" + strings.Join(parts, "\n") + "\n\nCurrent question: " + query
}

// historyMessages converts the tail of the conversation into prompt messages,
// oldest first.
func historyMessages(history []conversation.Message) []llm.Message {
	recent := history[max(0, len(history)-historyWindow):]

	out := make([]llm.Message, 0, len(recent))
	for _, m := range recent {
		switch m.Role {
		case conversation.RoleUser:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: m.Content})
		case conversation.RoleAssistant:
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: abbreviate(m.Content, historyAnswerChars)})
		}
	}
	return out
}

// evidenceMessages renders one system message per hit, in rank order.
func evidenceMessages(hits []storage.SearchHit) []llm.Message {
	out := make([]llm.Message, len(hits))
	for i, hit := range hits {
		out[i] = llm.Message{
			Role:    llm.RoleSystem,
			Content: fmt.Sprintf("Source %d - %s:\n%s", i+1, sourceTitle(hit.Metadata), hit.Content),
		}
	}
	return out
}

func userPrompt(query string, haveReferences bool) string {
	var b strings.Builder
	if haveReferences {
		b.WriteString("Please answer the following medical question using the medical references provided above and your medical knowledge:\n\n")
	} else {
		b.WriteString("Please answer the following medical question using your medical knowledge:\n\n")
	}
	b.WriteString("QUESTION: ")
	b.WriteString(query)
	b.WriteString("\n\n")
	if !haveReferences {
		b.WriteString(noReferencesMessage)
		b.WriteString("\n\n")
	}
	b.WriteString(`Please provide a comprehensive, accurate response that:
1. Directly addresses the user's question
2. References relevant information from the medical sources when applicable
3. Explains medical concepts clearly
4. Maintains a helpful and professional tone

If the provided references don't contain sufficient information to fully answer the question, please indicate this and provide general medical knowledge while emphasizing the need for professional consultation.`)
	return b.String()
}

func sourceTitle(metadata map[string]any) string {
	for _, key := range []string{"title", "source"} {
		if v, ok := metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return defaultSourceTitle
}

// abbreviate cuts s to n characters and marks the cut with "...".
func abbreviate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
