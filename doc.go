// Package lattice is a lightweight Go client for invoking functions on
// a remote, serverless function-execution fleet.
//
// It covers the data-plane core: turning a function call into an
// input batch, submitting it to a control plane, polling an
// eventually-consistent output queue, and reassembling results —
// whether that's a single blocking call, a fire-and-forget handle
// polled later, a generator stream, or a parallel map over a stream
// of arguments.
//
// **What it does not do:** defining or deploying functions. That
// happens out-of-band, against the same control plane; this package
// only calls functions that already exist.
//
// # Authentication
//
// At runtime the client resolves credentials in this order:
//
//  1. Environment variables
//     LATTICE_TOKEN_ID, LATTICE_TOKEN_SECRET, LATTICE_ENVIRONMENT (optional)
//  2. A profile explicitly requested via `LATTICE_PROFILE`
//  3. A profile marked `active = true` in `~/.lattice.toml`
//
// See config.go for the resolution logic.
package lattice
