// Package whispercpp implements the local fallback transcriber on a
// whisper.cpp binary. Audio is materialized to a temporary workspace,
// converted to 16 kHz mono WAV with ffmpeg and fed to the whisper binary;
// the transcript is read back from its text output file.
//
// Unlike the hosted providers, failures here are classified permanent by
// default: a missing binary, a bad model or undecodable audio does not heal
// between retry attempts.
package whispercpp
