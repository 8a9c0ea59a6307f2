// Package app wires the decode service together: configuration, logging,
// telemetry, the websocket hub, the report store and the HTTP server. It is
// the only package that knows about every other one.
package app
