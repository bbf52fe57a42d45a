// Package protocol owns the application packet contract shared by robot and surface.
//
// Ownership boundary:
// - packet union and tags
// - payload encode/decode (version byte, tag byte, tlv fields)
// - per-tag field requirements
//
// Frame boundaries belong to package frame; the transport wraps every
// encoded payload in exactly one frame.
package protocol
