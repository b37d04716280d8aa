// Package postgres provides PostgreSQL implementations of the store
// interfaces. All stores accept a store.DBTX, so they run identically on a
// connection pool or inside a transaction obtained through WithTx.
package postgres
