// Package job runs the asynchronous side of the API: notes admitted over
// HTTP become persisted jobs, a worker pool claims and executes them, and
// jobs stranded by a crash or an expired claim are swept back to pending so
// no admitted note is silently lost.
package job
