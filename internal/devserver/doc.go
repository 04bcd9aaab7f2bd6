// Package devserver is a local stand-in for the storefront realtime backend.
//
// It speaks just enough of the protocol to exercise the client end to end:
// a greeting on connect, pong replies to heartbeats and pings, chat fan-out
// to every peer and presence broadcasts. It also collects activity posts.
package devserver
