package embedding

import "errors"

// ErrEmbeddingUnavailable is returned when the provider fails or yields no usable vector.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")
