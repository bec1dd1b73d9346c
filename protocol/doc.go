// Package protocol defines the messages of the KeePassXC browser protocol:
// action names, the cleartext envelopes, the plaintext request bodies and
// the decrypted response shapes.
//
// Nothing in this package performs I/O or cryptography. The proxy package
// seals a [Request] into an [EncryptedEnvelope], and decodes what comes back
// into an [Inbound] and then into one of the [Response] types.
//
// Peers differ in how they spell some values: success flags arrive as
// "true" or true, error codes as strings or numbers. [Flag] and [Code]
// accept both forms.
package protocol
