// Package assemblyai implements the secondary transcription provider on the
// AssemblyAI API. Transcription is asynchronous: the audio is uploaded, a
// transcript job is submitted and the result is polled until the job settles
// or the caller's context ends.
package assemblyai
