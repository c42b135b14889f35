// Package flush implements the asynchronous dirty write-back worker.
//
// The worker:
//   - Consumes flush requests (account/shop/listing upserts and deletes,
//     transaction log appends) from a growable in-memory queue
//   - Collapses repeated upserts for the same record (latest wins)
//   - Writes batches on a size threshold or a ticker, off the game thread
//   - Retries transient store failures with exponential backoff
//   - Drains within a bounded wait on shutdown and logs anything it could
//     not flush, so dirty state is never lost silently
package flush
