// Package protocol owns the ITP wire contract: packet entities built on the
// fixed 12-byte headers and the bit codec.
//
// Ownership boundary:
// - bits: arbitrary offset/width integer packing
// - schema: request and response header layouts
// - frame: header encode/decode and close-delimited message framing
// - session: sequence/timestamp generator and transport timeouts
package protocol
