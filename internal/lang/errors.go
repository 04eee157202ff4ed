package lang

import "errors"

// ErrInvalid indicates an unknown language code.
var ErrInvalid = errors.New("invalid language code")
