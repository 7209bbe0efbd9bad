// Package budget fits a system prompt, conversation history, retrieved
// evidence and the user query into a fixed input-token budget.
package budget

import (
	"errors"
	"fmt"

	"github.com/bull/medrag/internal/llm"
	"github.com/bull/medrag/internal/tokenizer"
)

// ErrContextOverflow means the system prompt and query alone exceed the budget.
var ErrContextOverflow = errors.New("context overflow")

// Assembly is a prompt that fits the budget.
type Assembly struct {
	// Messages is [system, history..., evidence..., user].
	Messages []llm.Message
	// Tokens is the summed token count of every message's content.
	Tokens int
	// HistoryAdmitted is the number of trailing history messages kept.
	HistoryAdmitted int
	// EvidenceIndexes holds the input indexes of the evidence messages kept, in rank order.
	EvidenceIndexes []int

	HistoryDropped  int
	EvidenceDropped int
}

// Budgeter assembles prompts. It is stateless and safe for concurrent use.
type Budgeter struct {
	tok tokenizer.Tokenizer
}

// New creates a budgeter counting tokens with tok.
func New(tok tokenizer.Tokenizer) *Budgeter {
	return &Budgeter{tok: tok}
}

// Assemble builds the prompt. The system prompt and the user query are always
// included verbatim. History (chronological, oldest first) is admitted newest
// first and evidence (rank order, best first) is admitted best first, each
// message whole or not at all. Within each group admission stops at the first
// message that does not fit, so kept history is always a contiguous tail.
func (b *Budgeter) Assemble(systemPrompt string, history, evidence []llm.Message, userQuery string, maxTokens int) (*Assembly, error) {
	required := b.tok.Count(systemPrompt) + b.tok.Count(userQuery)
	if required > maxTokens {
		return nil, fmt.Errorf("%w: system prompt and query need %d tokens, budget is %d",
			ErrContextOverflow, required, maxTokens)
	}

	available := maxTokens - required
	used := 0

	keptHistory := 0
	for i := len(history) - 1; i >= 0; i-- {
		cost := b.tok.Count(history[i].Content)
		if used+cost > available {
			break
		}
		used += cost
		keptHistory++
	}

	var keptEvidence []int
	for i, m := range evidence {
		cost := b.tok.Count(m.Content)
		if used+cost > available {
			break
		}
		used += cost
		keptEvidence = append(keptEvidence, i)
	}

	messages := make([]llm.Message, 0, 2+keptHistory+len(keptEvidence))
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	messages = append(messages, history[len(history)-keptHistory:]...)
	for _, i := range keptEvidence {
		messages = append(messages, evidence[i])
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userQuery})

	return &Assembly{
		Messages:        messages,
		Tokens:          required + used,
		HistoryAdmitted: keptHistory,
		EvidenceIndexes: keptEvidence,
		HistoryDropped:  len(history) - keptHistory,
		EvidenceDropped: len(evidence) - len(keptEvidence),
	}, nil
}
