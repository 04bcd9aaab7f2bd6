// Package protocol defines the JSON frames exchanged over the realtime
// connection.
//
// Inbound frames decode into a closed set of typed messages keyed by their
// "type" tag; anything unrecognised decodes to Unknown so callers can log and
// move on. Outbound frames are built as flat envelopes that always carry a
// timestamp and, when known, the current user identity.
package protocol
