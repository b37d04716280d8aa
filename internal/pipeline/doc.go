// Package pipeline drives a note through transcription, extraction and
// embedding. The Coordinator owns the status state machine and persists the
// result of every stage before starting the next one, so a crashed run can
// resume from the last completed stage instead of starting over.
//
// Stage internals live in their own components: TranscriptionOrchestrator
// fails over across the provider chain, StructuredExtractor validates model
// output against the task schema and re-prompts when it is invalid, and
// EmbeddingStage computes the note vector without ever failing the note.
package pipeline
