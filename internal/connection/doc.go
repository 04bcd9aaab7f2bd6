// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns exactly one WebSocket transport per Manager
//   - Authenticates, joins the default channel and announces presence on open
//   - Sends an application heartbeat while the transport is open
//   - Reconnects with capped exponential backoff and a bounded attempt budget
//   - Validates, rate limits and fans out inbound frames to subscribers
//
// All connection state is owned by a single event-loop goroutine. Consumers
// observe it through Subscribe or Listen and write through Send.
package connection
