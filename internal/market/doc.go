// Package market implements the player market subsystem.
//
// Listings are quantity-limited, time-limited sell offers with an immutable
// item snapshot. The subsystem:
//   - Loads all listings into memory at initialization
//   - Applies sold/collected mutations in memory and enqueues write-back
//   - Sweeps collected and long-expired listings on a background loop
//
// Purchase and collect orchestration (money and item movement) lives in the
// transaction engine; this package owns listing state and its invariants.
package market
