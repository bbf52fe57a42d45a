// Package network owns the peer link: framed TCP transport and the single
// current-peer connection guard.
//
// Ownership boundary:
// - listen/connect/send/stop over length-framed streams
// - one serial event loop for every lifecycle event and outbound request
// - the current connection slot and its timeout-based takeover policy
//
// Packet contents belong to package protocol; what a packet means belongs to
// the caller's PacketHandler.
package network
