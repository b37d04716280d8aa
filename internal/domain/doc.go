// Package domain holds the entities the rest of the application moves
// around: notes, the jobs that process them, the tasks extracted from them,
// and the audit trail of provider attempts. Nothing here knows about HTTP,
// SQL or any provider; those layers depend on this package, never the other
// way around.
package domain
