// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns the single Channel shared by every consumer in the process
//   - Hands out consumer Handles via Attach and connects lazily
//   - Scopes listener registrations to a Handle so Detach removes exactly
//     that consumer's listeners
//   - Disconnects once no Handles and no listeners remain
//   - Forwards connection errors and recoveries to a caller-supplied policy
package connection
