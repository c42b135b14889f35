// Package store provides durable persistence for accounts, sign shops,
// player listings, and the transaction log.
//
// Two implementations exist: Postgres (pgx) for production and Memory for
// tests. Writes are batch-oriented; the flush worker is the only writer on
// the hot path.
package store
