package keyword

import "errors"

// ErrNoKeywords indicates the matcher was configured with an empty keyword list.
var ErrNoKeywords = errors.New("no keywords configured")

// ErrRecognizerSetup indicates a worker could not obtain a recognition engine.
var ErrRecognizerSetup = errors.New("recognizer setup failed")
