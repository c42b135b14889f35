// Package economy implements the account cache and the economy service.
//
// Balances live in an in-memory cache while the player is online. All
// mutations for one player are serialized through a per-player lock, so
// concurrent deposits and withdrawals observe a strict total order and no
// update is lost. Persistence happens off the call path: every mutation
// marks the account dirty and hands it to the flush worker.
package economy
