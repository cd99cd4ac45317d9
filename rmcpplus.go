// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import (
	"encoding/binary"
	"fmt"
)

const sessionHeader20Size = 12

// sessionHeader20 is the IPMI v2.0 (RMCP+) session header
type sessionHeader20 struct {
	AuthType
	PayloadType   uint8
	SessionID     uint32
	Sequence      uint32
	PayloadLength uint16
}

func (h *sessionHeader20) toBytes() []byte {
	buf := make([]byte, sessionHeader20Size)
	buf[0] = uint8(h.AuthType)
	buf[1] = h.PayloadType
	binary.LittleEndian.PutUint32(buf[2:], h.SessionID)
	binary.LittleEndian.PutUint32(buf[6:], h.Sequence)
	binary.LittleEndian.PutUint16(buf[10:], h.PayloadLength)
	return buf
}

func sessionHeader20FromBytes(buf []byte) (*sessionHeader20, error) {
	if len(buf) < sessionHeader20Size {
		return nil, shortPayload("v2.0 session header", len(buf))
	}
	return &sessionHeader20{
		AuthType:      AuthType(buf[0]),
		PayloadType:   buf[1],
		SessionID:     binary.LittleEndian.Uint32(buf[2:]),
		Sequence:      binary.LittleEndian.Uint32(buf[6:]),
		PayloadLength: binary.LittleEndian.Uint16(buf[10:]),
	}, nil
}

func (h *sessionHeader20) payloadType() PayloadType {
	return PayloadType(h.PayloadType & payloadTypeMask)
}

func (h *sessionHeader20) encrypted() bool {
	return h.PayloadType&payloadEncrypted != 0
}

func (h *sessionHeader20) authenticated() bool {
	return h.PayloadType&payloadAuthenticated != 0
}

// rmcpPlus is the IPMI v2.0 session format
type rmcpPlus struct{}

func (v *rmcpPlus) parse(buf []byte, sessions SessionLookup) (*Packet, error) {
	h, err := sessionHeader20FromBytes(buf)
	if err != nil {
		return nil, err
	}

	p := &Packet{
		AuthType:      h.AuthType,
		PayloadType:   h.payloadType(),
		Encrypted:     h.encrypted(),
		Authenticated: h.authenticated(),
		SessionID:     h.SessionID,
		Sequence:      h.Sequence,
	}

	switch p.PayloadType {
	case PayloadTypeIPMI:
	case PayloadTypeOpenSessionRequest, PayloadTypeRAKP1, PayloadTypeRAKP3:
		if h.SessionID != 0 || p.Encrypted || p.Authenticated {
			return nil, fmt.Errorf("%w: %s outside of session setup", ErrMalformedPacket, p.PayloadType)
		}
	default:
		return nil, fmt.Errorf("%w: unknown payload type %#02x", ErrMalformedPacket, h.PayloadType)
	}

	if h.SessionID != 0 {
		s, ok := sessions.Lookup(h.SessionID)
		if !ok || s.AuthType != AuthTypeRMCPPlus || s.State != SessionActive {
			return nil, fmt.Errorf("%w: %#08x", ErrUnknownSession, h.SessionID)
		}
		p.Session = s
	}

	end := sessionHeader20Size + int(h.PayloadLength)

	if p.Authenticated {
		if p.Session == nil || !p.Session.authenticated() {
			return nil, fmt.Errorf("%w: authenticated packet without integrity keys", ErrIntegrity)
		}
		buf, err = checkTrailer(buf, p.Session.K1)
		if err != nil {
			return nil, err
		}
		if len(buf) != end {
			return nil, fmt.Errorf("%w: payload length %d does not match trailer", ErrMalformedPacket, h.PayloadLength)
		}
	} else if p.Session != nil && p.Session.authenticated() {
		return nil, fmt.Errorf("%w: unauthenticated packet in session %#08x", ErrIntegrity, h.SessionID)
	}

	if len(buf) < end {
		return nil, fmt.Errorf("%w: payload length %d exceeds packet", ErrMalformedPacket, h.PayloadLength)
	}
	payload := buf[sessionHeader20Size:end]

	if p.Encrypted {
		if p.Session == nil || !p.Session.encrypted() {
			return nil, fmt.Errorf("%w: encrypted packet without confidentiality keys", ErrDecrypt)
		}
		payload, err = decryptPayload(payload, p.Session.K2)
		if err != nil {
			return nil, err
		}
	} else if p.Session != nil && p.Session.encrypted() {
		return nil, fmt.Errorf("%w: cleartext packet in session %#08x", ErrDecrypt, h.SessionID)
	}

	switch p.PayloadType {
	case PayloadTypeIPMI:
		m, err := messageFromBytes(payload)
		if err != nil {
			return nil, err
		}
		m.Session = p.Session
		p.Message = m
	case PayloadTypeOpenSessionRequest:
		p.OpenSession = &OpenSessionRequest{}
		if err := p.OpenSession.UnmarshalBinary(payload); err != nil {
			return nil, err
		}
	case PayloadTypeRAKP1:
		p.RAKP1 = &RAKPMessage1{}
		if err := p.RAKP1.UnmarshalBinary(payload); err != nil {
			return nil, err
		}
		if p.Session, err = negotiating(sessions, p.RAKP1.BMCSessionID); err != nil {
			return nil, err
		}
	case PayloadTypeRAKP3:
		p.RAKP3 = &RAKPMessage3{}
		if err := p.RAKP3.UnmarshalBinary(payload); err != nil {
			return nil, err
		}
		if p.Session, err = negotiating(sessions, p.RAKP3.BMCSessionID); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// negotiating returns the RMCP+ session a RAKP message refers to
func negotiating(sessions SessionLookup, id uint32) (*SessionContext, error) {
	s, ok := sessions.Lookup(id)
	if !ok || s.AuthType != AuthTypeRMCPPlus {
		return nil, fmt.Errorf("%w: %#08x", ErrUnknownSession, id)
	}
	return s, nil
}

// inSession reports whether the reply to req is protected by its session
func (v *rmcpPlus) inSession(req *Packet) bool {
	return req.PayloadType == PayloadTypeIPMI && req.SessionID != 0 && req.Session != nil
}

func (v *rmcpPlus) headerFromState(req *Packet, body []byte) []byte {
	h := &sessionHeader20{
		AuthType:      AuthTypeRMCPPlus,
		PayloadType:   uint8(req.PayloadType.response()),
		PayloadLength: uint16(len(body)),
	}

	if v.inSession(req) {
		s := req.Session
		h.SessionID = s.RemoteSessionID
		h.Sequence = responseSequence(req.Sequence)
		if s.encrypted() {
			h.PayloadType |= payloadEncrypted
		}
		if s.authenticated() {
			h.PayloadType |= payloadAuthenticated
		}
	}

	return h.toBytes()
}

func (v *rmcpPlus) bodyFromState(req *Packet, body []byte) ([]byte, error) {
	if v.inSession(req) && req.Session.encrypted() {
		return encryptPayload(body, req.Session.K2)
	}
	return body, nil
}

func (v *rmcpPlus) buildResponse(req *Packet, body []byte) ([]byte, error) {
	body, err := v.bodyFromState(req, body)
	if err != nil {
		return nil, err
	}
	if len(body) > 0xffff {
		return nil, fmt.Errorf("%w: payload is %d bytes", ErrMalformedPacket, len(body))
	}

	msg := append(v.headerFromState(req, body), body...)
	if v.inSession(req) && req.Session.authenticated() {
		msg = appendTrailer(msg, req.Session.K1)
	}

	return msg, nil
}
