// Package mcp exposes the conversation engine over the Model Context Protocol.
package mcp

import "time"

// AskInput defines the input parameters for the ask tool.
type AskInput struct {
	// Question is the medical question in natural language.
	Question string `json:"question" jsonschema:"The medical question to answer"`
	// ConversationID continues an earlier conversation. Omit it to start a new one.
	ConversationID string `json:"conversation_id,omitempty" jsonschema:"Conversation to continue; omit to start a new conversation"`
}

// AskOutput contains the grounded answer.
type AskOutput struct {
	// ConversationID identifies the conversation for follow-up questions.
	ConversationID string `json:"conversation_id"`
	// Answer is the generated answer, including the safety disclaimer when enabled.
	Answer string `json:"answer"`
	// Sources lists the knowledge snippets the answer was grounded on.
	Sources []SourceRef `json:"sources"`
	// Model is the generative model that wrote the answer.
	Model string `json:"model"`
	// RetrievedDocs is how many snippets passed the similarity threshold.
	RetrievedDocs int `json:"retrieved_docs"`
	// EvidenceUsed is how many of them fit in the prompt.
	EvidenceUsed int `json:"evidence_used"`
	// ConversationLength is the number of messages kept for the conversation.
	ConversationLength int `json:"conversation_length"`
	// RetrievalDegraded is set when the knowledge base could not be searched.
	RetrievalDegraded bool `json:"retrieval_degraded"`
}

// SourceRef is a citation of one knowledge snippet.
type SourceRef struct {
	Title   string  `json:"title"`
	Preview string  `json:"preview"`
	Score   float64 `json:"score"`
	// Path is the knowledge file the snippet came from.
	Path string `json:"path,omitempty"`
	// Section is the header path of the snippet within its file.
	Section   string `json:"section,omitempty"`
	Specialty string `json:"specialty,omitempty"`
}

// GetHistoryInput defines the input parameters for the get_history tool.
type GetHistoryInput struct {
	ConversationID string `json:"conversation_id" jsonschema:"The conversation to read"`
}

// GetHistoryOutput contains the live messages of a conversation.
type GetHistoryOutput struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []HistoryMessage `json:"messages"`
	Count          int              `json:"count"`
}

// HistoryMessage is one stored conversation message.
type HistoryMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	// Sources are the titles of the snippets an assistant answer cited.
	Sources []string `json:"sources,omitempty"`
}

// ClearConversationInput defines the input parameters for the clear_conversation tool.
type ClearConversationInput struct {
	ConversationID string `json:"conversation_id" jsonschema:"The conversation to forget"`
}

// ClearConversationOutput confirms the conversation was cleared.
type ClearConversationOutput struct {
	ConversationID string `json:"conversation_id"`
	Cleared        bool   `json:"cleared"`
}

// IndexStatsInput defines the input parameters for the index_stats tool.
// This tool takes no parameters.
type IndexStatsInput struct {
	// No input parameters required
}

// IndexStatsOutput reports engine and knowledge index status.
type IndexStatsOutput struct {
	Model               string  `json:"model"`
	ActiveConversations int     `json:"active_conversations"`
	MaxRetrievalDocs    int     `json:"max_retrieval_docs"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	MaxContextTokens    int     `json:"max_context_tokens"`
	// TotalChunks is the number of embedded snippets in the index.
	TotalChunks uint64  `json:"total_chunks"`
	Dimension   int     `json:"dimension"`
	Fullness    float64 `json:"fullness"`
	// IndexError is set when the index could not be reached.
	IndexError string `json:"index_error,omitempty"`
}
