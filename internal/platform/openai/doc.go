// Package openai implements the primary transcription provider on OpenAI's
// speech-to-text endpoint. Audio is uploaded as multipart form data in a
// single request; retry and rate limit policy stay with the caller.
package openai
