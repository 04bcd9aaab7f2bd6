// Package history keeps the bounded in-memory views derived from inbound
// realtime frames: the most recent N chat lines, assistant replies,
// notifications and order updates, plus latest-value maps for presence,
// prices and stock levels.
//
// Every getter returns a copy; callers never see internal storage.
package history
