// Package telemetry implements the best-effort activity uploader.
//
// The Batcher:
//   - Accepts records from any goroutine without blocking on I/O
//   - Flushes FIFO batches when the queue reaches the batch size and on a timer
//   - Removes records from the queue before delivery; failures are logged and
//     the records are gone (at-most-once)
//   - Flushes one last time on Shutdown
package telemetry
