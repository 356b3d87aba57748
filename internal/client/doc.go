// ABOUTME: Package documentation for the typed invocation client.
// ABOUTME: One method per capability, mirroring the server catalogue.

// Package client is the typed façade over the concierge invoke API.
//
// Each capability gets one method whose parameter and result structs mirror
// the server-side schema field for field. The mirroring is hand-maintained;
// internal/contract has tests that fail whenever the two sides diverge in
// field name, type, or optionality.
//
// The client enforces its own timeout, longer than the server's handler
// deadline, so connection failures surface as CodeNetwork or
// CodeClientTimeout rather than hanging.
package client
