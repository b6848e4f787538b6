// Package cli provides the interactive inspectsync field client.
//
// It wires configuration, the local store, the reference cache, the
// connectivity monitor, the sync engine and the scheduler, then runs a REPL.
// Every command works offline: evaluations are recorded locally and leave
// through the sync queue once the server is reachable.
//
// Key commands:
//   - login / logout
//   - record / edit / list / show
//   - sync / retry / status
//   - migrate / refresh / export / wipe
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
