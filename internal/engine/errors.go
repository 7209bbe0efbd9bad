package engine

// Kind classifies a failed Ask. Kinds are stable and safe to show callers.
type Kind string

const (
	KindInvalidRequest    Kind = "invalid_request"
	KindContextOverflow   Kind = "context_overflow"
	KindGenerationFailure Kind = "generation_failure"
	KindGenerationTimeout Kind = "generation_timeout"
)

// Error is returned by Ask when no answer could be produced. Message never
// contains provider text; the underlying cause is available through Unwrap.
type Error struct {
	Kind    Kind
	Message string
	err     error
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, err: cause}
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.err
}
