package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/medrag/internal/conversation"
	"github.com/bull/medrag/internal/engine"
)

// Engine is the conversation engine the tools call.
type Engine interface {
	Ask(ctx context.Context, conversationID, query string) (*engine.Answer, error)
	History(conversationID string) []conversation.Message
	ClearConversation(conversationID string)
	Stats(ctx context.Context) *engine.Stats
}

// makeAskHandler creates the ask tool handler.
// Engine errors carry a stable kind ("invalid_request", "context_overflow",
// "generation_failure", "generation_timeout") and are returned as tool errors.
func makeAskHandler(eng Engine) func(
	context.Context, *mcp.CallToolRequest, AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, AskOutput, error,
	) {
		answer, err := eng.Ask(ctx, input.ConversationID, input.Question)
		if err != nil {
			return nil, AskOutput{}, err
		}

		sources := make([]SourceRef, 0, len(answer.Sources))
		for _, c := range answer.Sources {
			sources = append(sources, SourceRef{
				Title:     c.Title,
				Preview:   c.Preview,
				Score:     c.Score,
				Path:      stringField(c.Metadata, "source"),
				Section:   stringField(c.Metadata, "section"),
				Specialty: stringField(c.Metadata, "specialty"),
			})
		}

		return nil, AskOutput{
			ConversationID:     answer.ConversationID,
			Answer:             answer.Answer,
			Sources:            sources,
			Model:              answer.Metadata.Model,
			RetrievedDocs:      answer.Metadata.RetrievalDocsCount,
			EvidenceUsed:       answer.Metadata.EvidenceUsed,
			ConversationLength: answer.Metadata.ConversationLength,
			RetrievalDegraded:  answer.Metadata.RetrievalDegraded,
		}, nil
	}
}

// makeHistoryHandler creates the get_history tool handler.
// Unknown or expired conversations return an empty message list.
func makeHistoryHandler(eng Engine) func(
	context.Context, *mcp.CallToolRequest, GetHistoryInput,
) (*mcp.CallToolResult, GetHistoryOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GetHistoryInput) (
		*mcp.CallToolResult, GetHistoryOutput, error,
	) {
		if input.ConversationID == "" {
			return nil, GetHistoryOutput{}, fmt.Errorf("conversation_id is required")
		}

		history := eng.History(input.ConversationID)
		messages := make([]HistoryMessage, 0, len(history))
		for _, m := range history {
			var titles []string
			for _, hit := range m.Sources {
				titles = append(titles, stringField(hit.Metadata, "title"))
			}
			messages = append(messages, HistoryMessage{
				Role:      string(m.Role),
				Content:   m.Content,
				Timestamp: m.Timestamp,
				Sources:   titles,
			})
		}

		return nil, GetHistoryOutput{
			ConversationID: input.ConversationID,
			Messages:       messages,
			Count:          len(messages),
		}, nil
	}
}

// makeClearHandler creates the clear_conversation tool handler.
func makeClearHandler(eng Engine) func(
	context.Context, *mcp.CallToolRequest, ClearConversationInput,
) (*mcp.CallToolResult, ClearConversationOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ClearConversationInput) (
		*mcp.CallToolResult, ClearConversationOutput, error,
	) {
		if input.ConversationID == "" {
			return nil, ClearConversationOutput{}, fmt.Errorf("conversation_id is required")
		}
		eng.ClearConversation(input.ConversationID)
		return nil, ClearConversationOutput{ConversationID: input.ConversationID, Cleared: true}, nil
	}
}

// makeStatsHandler creates the index_stats tool handler.
// An unreachable index is reported in the output, not as a tool error.
func makeStatsHandler(eng Engine) func(
	context.Context, *mcp.CallToolRequest, IndexStatsInput,
) (*mcp.CallToolResult, IndexStatsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IndexStatsInput) (
		*mcp.CallToolResult, IndexStatsOutput, error,
	) {
		stats := eng.Stats(ctx)
		out := IndexStatsOutput{
			Model:               stats.Model,
			ActiveConversations: stats.ActiveConversations,
			MaxRetrievalDocs:    stats.MaxRetrievalDocs,
			SimilarityThreshold: stats.SimilarityThreshold,
			MaxContextTokens:    stats.MaxContextTokens,
			IndexError:          stats.IndexError,
		}
		if stats.Index != nil {
			out.TotalChunks = stats.Index.Count
			out.Dimension = stats.Index.Dimension
			out.Fullness = stats.Index.Fullness
		}
		return nil, out, nil
	}
}

func stringField(metadata map[string]any, key string) string {
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}
