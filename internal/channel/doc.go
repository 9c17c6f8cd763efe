// Package channel implements the bidirectional event channel to the game server.
//
// The Channel:
//   - Is constructed dormant and only dials when Connect is called
//   - Reads the auth payload from an AuthFunc on every connect attempt
//   - Delivers named events, catch-all events and the reserved connect,
//     disconnect and connect_error events from a single dispatcher goroutine
//   - Reconnects with capped exponential backoff after involuntary loss
package channel
