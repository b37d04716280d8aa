// Package store declares the persistence interfaces the rest of the service
// programs against, together with the shared error taxonomy and the
// transaction helper. Implementations live in platform/postgres; consumers
// depend only on this package.
package store
