// Package service provides application-level operations for submitting,
// inspecting and retrying notes. It owns the transactional boundaries around
// the stores: multi-row writes such as a note plus its job, or a summary plus
// its replaced tasks, are committed atomically here. The HTTP layer calls
// into this package and maps its sentinel errors to status codes.
package service
