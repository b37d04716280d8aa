// Package track provides request tracking across the asynchronous pipeline:
// trace IDs that follow a note from submission through background processing,
// and an in-process metrics registry exposed on the internal metrics endpoint.
package track
