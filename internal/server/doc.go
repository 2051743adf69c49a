// Package server exposes the monitor over HTTP: JSON endpoints for the
// aggregated position view, per-account health, and account management,
// plus a WebSocket feed that pushes the cache view on a fixed cadence.
package server
