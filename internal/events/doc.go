// Package events carries the in-process notifications that decouple the HTTP
// layer from job execution. Note admission emits a JobRequestEvent consumed
// by the job runner; pipeline completion emits a terminal event consumed by
// whatever wants to observe finished notes. Emitters never know who is
// listening.
package events
