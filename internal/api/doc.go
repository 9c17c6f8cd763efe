// Package api provides the game server REST client.
//
// Player endpoints:
//   - PUT /player/ensure: create or confirm a player, issuing the
//     player_auth_id cookie when the presented identity is unknown
//   - PUT /player/set-name: rename the current player
//
// The REST client is used to re-provision identity when the event channel
// rejects a handshake with unknown_player_id.
package api
