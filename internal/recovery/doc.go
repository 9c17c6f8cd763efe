// Package recovery implements the connection error policy handed to the
// Connection Manager.
//
// The Policy:
//   - Re-provisions the player identity when the server rejects the
//     handshake with unknown_player_id, then reconnects
//   - Bounds re-provisioning with an explicit attempt ceiling
//   - Disconnects and raises a persistent, retriable error state otherwise
//   - Resets on every successful connect
package recovery
