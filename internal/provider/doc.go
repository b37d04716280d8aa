// Package provider defines the interfaces and error taxonomy for interacting
// with external AI services. It abstracts the details of provider API
// integration (OpenAI, AssemblyAI, whisper.cpp, Gemini), allowing the pipeline
// to transcribe audio, extract structured tasks and compute embeddings without
// coupling to specific external services.
package provider
