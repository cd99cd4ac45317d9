// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import "errors"

// Packet processing errors. Handle wraps these with detail; compare with errors.Is.
var (
	// ErrMalformedPacket is returned for bad lengths, checksums or unknown payload types
	ErrMalformedPacket = errors.New("ipmi: malformed packet")
	// ErrIntegrity is returned when an integrity trailer or MD5 auth code does not verify
	ErrIntegrity = errors.New("ipmi: integrity check failed")
	// ErrDecrypt is returned when an encrypted payload cannot be decrypted
	ErrDecrypt = errors.New("ipmi: decrypt failed")
	// ErrUnknownSession is returned for packets referencing an untracked session id
	ErrUnknownSession = errors.New("ipmi: unknown session")
	// ErrUnsupportedCommand is returned by dispatch when no handler matches
	ErrUnsupportedCommand = errors.New("ipmi: unsupported command")
	// ErrNegotiation is returned when the session handshake is out of order
	ErrNegotiation = errors.New("ipmi: session negotiation failed")
)
