// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
)

// sessionHeader15 is the IPMI v1.5 session header. AuthCode is only present
// on the wire when AuthType is not none.
type sessionHeader15 struct {
	AuthType
	Sequence      uint32
	SessionID     uint32
	AuthCode      [16]uint8
	PayloadLength uint8
}

func (h *sessionHeader15) size() int {
	if h.AuthType == AuthTypeNone {
		return 10
	}
	return 26
}

func (h *sessionHeader15) toBytes() []byte {
	buf := make([]byte, 9, h.size())
	buf[0] = uint8(h.AuthType)
	binary.LittleEndian.PutUint32(buf[1:], h.Sequence)
	binary.LittleEndian.PutUint32(buf[5:], h.SessionID)
	if h.AuthType != AuthTypeNone {
		buf = append(buf, h.AuthCode[:]...)
	}
	return append(buf, h.PayloadLength)
}

// sessionHeader15FromBytes returns the header and its payload
func sessionHeader15FromBytes(buf []byte) (*sessionHeader15, []byte, error) {
	if len(buf) < 10 {
		return nil, nil, shortPayload("v1.5 session header", len(buf))
	}

	h := &sessionHeader15{
		AuthType:  AuthType(buf[0]),
		Sequence:  binary.LittleEndian.Uint32(buf[1:]),
		SessionID: binary.LittleEndian.Uint32(buf[5:]),
	}
	if len(buf) < h.size() {
		return nil, nil, shortPayload("v1.5 session header", len(buf))
	}
	if h.AuthType != AuthTypeNone {
		copy(h.AuthCode[:], buf[9:25])
	}
	h.PayloadLength = buf[h.size()-1]

	// a trailing legacy pad byte is tolerated
	end := h.size() + int(h.PayloadLength)
	if len(buf) < end {
		return nil, nil, fmt.Errorf("%w: payload length %d exceeds packet", ErrMalformedPacket, h.PayloadLength)
	}

	return h, buf[h.size():end], nil
}

// md5AuthCode per section 22.17.1
func md5AuthCode(password [16]uint8, sessionID uint32, payload []byte, seq uint32) [16]uint8 {
	h := md5.New()

	binaryWrite(h, password)
	binaryWrite(h, sessionID)
	binaryWrite(h, payload)
	binaryWrite(h, seq)
	binaryWrite(h, password)

	var code [16]uint8
	copy(code[:], h.Sum(nil))
	return code
}

// padPassword right-pads password with NUL to 16 bytes
func padPassword(password []byte) [16]uint8 {
	var pw [16]uint8
	copy(pw[:], password)
	return pw
}

// md5Session is the IPMI v1.5 session format, with auth type none or MD5
type md5Session struct {
	password [16]uint8
}

func (v *md5Session) parse(buf []byte, sessions SessionLookup) (*Packet, error) {
	h, payload, err := sessionHeader15FromBytes(buf)
	if err != nil {
		return nil, err
	}

	switch h.AuthType {
	case AuthTypeNone, AuthTypeMD5:
	default:
		return nil, fmt.Errorf("%w: unsupported auth type %s", ErrMalformedPacket, h.AuthType)
	}

	p := &Packet{
		AuthType:    h.AuthType,
		PayloadType: PayloadTypeIPMI,
		SessionID:   h.SessionID,
		Sequence:    h.Sequence,
		AuthCode:    h.AuthCode,
	}

	if h.SessionID != 0 {
		s, ok := sessions.Lookup(h.SessionID)
		if !ok || s.AuthType == AuthTypeRMCPPlus {
			return nil, fmt.Errorf("%w: %#08x", ErrUnknownSession, h.SessionID)
		}
		// every packet of a session carries the auth type it was opened with
		if h.AuthType != s.AuthType {
			return nil, fmt.Errorf("%w: auth type %s in %s session %#08x", ErrIntegrity, h.AuthType, s.AuthType, h.SessionID)
		}
		p.Session = s
	}

	if h.AuthType == AuthTypeMD5 {
		code := md5AuthCode(v.password, h.SessionID, payload, h.Sequence)
		if subtle.ConstantTimeCompare(code[:], h.AuthCode[:]) != 1 {
			return nil, ErrIntegrity
		}
	}

	m, err := messageFromBytes(payload)
	if err != nil {
		return nil, err
	}
	// a session is only usable for activation until it is active
	if s := p.Session; s != nil && s.State != SessionActive &&
		(m.NetFn() != NetworkFunctionApp || m.Command != CommandActivateSession) {
		return nil, fmt.Errorf("%w: %#08x not active", ErrUnknownSession, h.SessionID)
	}

	m.Session = p.Session
	p.Message = m

	return p, nil
}

func (v *md5Session) headerFromState(req *Packet, body []byte) []byte {
	h := &sessionHeader15{
		AuthType:      req.AuthType,
		Sequence:      responseSequence(req.Sequence),
		SessionID:     req.SessionID,
		PayloadLength: uint8(len(body)),
	}
	if h.AuthType == AuthTypeMD5 {
		h.AuthCode = md5AuthCode(v.password, h.SessionID, body, h.Sequence)
	}
	return h.toBytes()
}

func (v *md5Session) bodyFromState(_ *Packet, body []byte) ([]byte, error) {
	if len(body) > 0xff {
		return nil, fmt.Errorf("%w: v1.5 payload is %d bytes", ErrMalformedPacket, len(body))
	}
	return body, nil
}

func (v *md5Session) buildResponse(req *Packet, body []byte) ([]byte, error) {
	body, err := v.bodyFromState(req, body)
	if err != nil {
		return nil, err
	}
	return append(v.headerFromState(req, body), body...), nil
}
