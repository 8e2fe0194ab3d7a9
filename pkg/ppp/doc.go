// Package ppp implements the OWB/PPP link framing used between the host and
// the keyboard pack accessory.
package ppp

// A frame on the wire looks like:
//
//   FLAG1 FLAG1 FLAG2 [header] [payload] [checksum] FLAG1
//
// FLAG1 and ESC inside header, payload and checksum are escaped as two bytes
// (ESC FLAG1_ESC, ESC ESC_ESC). The doubled leading FLAG1 lets the receiver
// tolerate the terminator of the previous frame being read as a start.
//
// The checksum is an 8-bit wrapping sum. The header carries a single scramble
// seed, and the payload is XORed with KeyTable starting at that seed. The
// scrambling only obfuscates the payload; the seed travels in the clear.
