//go:build !whisper

package transcribe

import "io"

// NativeAvailable reports whether the whisper.cpp backend is compiled in.
const NativeAvailable = false

// NewNativeFactory always fails in builds without the whisper tag.
func NewNativeFactory(string, string) (Factory, io.Closer, error) {
	return nil, nil, ErrBackendUnavailable
}
