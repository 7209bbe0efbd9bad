package chunker

import "errors"

// ErrConfiguration reports chunking parameters that can never produce a valid window.
var ErrConfiguration = errors.New("invalid chunking configuration")
