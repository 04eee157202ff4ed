package transcribe

// Exports for testing. These allow black-box tests to inject dependencies
// without modifying the public API.

// AudioTranscriber exports audioTranscriber for mocks.
type AudioTranscriber = audioTranscriber

// NewTestOpenAITranscriber creates an OpenAITranscriber around a mock client.
func NewTestOpenAITranscriber(client audioTranscriber, opts ...OpenAIOption) *OpenAITranscriber {
	return newOpenAITranscriber(client, opts...)
}

// ClassifyError exports classifyError for testing.
var ClassifyError = classifyError
