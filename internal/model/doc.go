// Package model defines shared data types used across the economy engine.
//
// Conventions:
//   - Money: integer cents (int64), never floats
//   - Timestamps: int64 microseconds since Unix epoch
//   - IDs: string for player IDs, uuid.UUID for shops and listings
package model
