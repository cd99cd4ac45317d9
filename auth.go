// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import "fmt"

// PayloadType of an RMCP+ message per section 13.27.3
type PayloadType uint8

// Payload types
const (
	PayloadTypeIPMI                = PayloadType(0x00)
	PayloadTypeOpenSessionRequest  = PayloadType(0x10)
	PayloadTypeOpenSessionResponse = PayloadType(0x11)
	PayloadTypeRAKP1               = PayloadType(0x12)
	PayloadTypeRAKP2               = PayloadType(0x13)
	PayloadTypeRAKP3               = PayloadType(0x14)
	PayloadTypeRAKP4               = PayloadType(0x15)
)

const (
	payloadEncrypted     = 0x80
	payloadAuthenticated = 0x40
	payloadTypeMask      = 0x3f
)

// response returns the payload type answering t
func (t PayloadType) response() PayloadType {
	switch t {
	case PayloadTypeOpenSessionRequest, PayloadTypeRAKP1, PayloadTypeRAKP3:
		return t + 1
	}
	return t
}

func (t PayloadType) String() string {
	switch t {
	case PayloadTypeIPMI:
		return "ipmi"
	case PayloadTypeOpenSessionRequest:
		return "open-session-request"
	case PayloadTypeOpenSessionResponse:
		return "open-session-response"
	case PayloadTypeRAKP1, PayloadTypeRAKP2, PayloadTypeRAKP3, PayloadTypeRAKP4:
		return fmt.Sprintf("rakp%d", t-PayloadTypeRAKP1+1)
	}
	return fmt.Sprintf("PayloadType(%#02x)", uint8(t))
}

// Packet is the decoded view of one inbound datagram. Exactly one of
// Message, OpenSession, RAKP1 and RAKP3 is set, according to PayloadType.
type Packet struct {
	AuthType
	PayloadType
	Encrypted     bool
	Authenticated bool
	SessionID     uint32
	Sequence      uint32
	AuthCode      [16]uint8

	// Session the packet belongs to, kept after the session is closed
	Session *SessionContext

	Message     *Message
	OpenSession *OpenSessionRequest
	RAKP1       *RAKPMessage1
	RAKP3       *RAKPMessage3
}

// SessionLookup resolves BMC session ids to live sessions
type SessionLookup interface {
	Lookup(id uint32) (*SessionContext, bool)
}

// authVariant is a session wire format. The set is closed: md5Session for
// IPMI v1.5 packets and rmcpPlus for IPMI v2.0 packets.
type authVariant interface {
	// parse decodes a datagram without its RMCP header
	parse(buf []byte, sessions SessionLookup) (*Packet, error)
	// buildResponse encodes body as the reply to req
	buildResponse(req *Packet, body []byte) ([]byte, error)
	// headerFromState encodes the session header of the reply to req
	headerFromState(req *Packet, body []byte) []byte
	// bodyFromState applies the session's confidentiality to body
	bodyFromState(req *Packet, body []byte) ([]byte, error)
}

// responseSequence is the session sequence number of a reply. A zero request
// sequence is a placeholder and stays zero.
func responseSequence(seq uint32) uint32 {
	if seq == 0 {
		return 0
	}
	return seq + 1
}
