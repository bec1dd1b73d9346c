// Package limits provides centralized size constants and validation functions
// shared by the transport reader, the message codec and the simulated peer.
//
// # Size Hierarchy
//
//   - MaxFrameSize (1 MiB): the largest top-level JSON object the transport
//     reader will assemble. Exceeding it yields ErrFrameTooLarge, which ends
//     the stream.
//
//   - MaxPlaintext: the largest request body the codec will encrypt. It is
//     derived from MaxFrameSize minus EnvelopeHeadroom, then shrunk for base64
//     expansion and the 16-byte Poly1305 tag.
//
// # Validation Functions
//
//	if err := limits.ValidatePlaintext(body); err != nil {
//	    // ErrMessageEmpty or ErrMessageTooLarge
//	}
//
//	if err := limits.ValidateFrame(frame); err != nil {
//	    // ErrMessageEmpty or ErrFrameTooLarge
//	}
package limits
