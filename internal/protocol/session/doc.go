// Package session owns per-process ITP session state and transport policy.
//
// Ownership boundary:
// - sequence/timestamp generator shared by all connection handlers
// - connect/read/write timeouts and receive limits
package session
