// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import (
	"encoding/binary"
	"fmt"
)

// RMCP+ and RAKP message status codes per section 13.24
const (
	RMCPStatusOK                              = uint8(0x00)
	RMCPStatusInsufficientResources           = uint8(0x01)
	RMCPStatusInvalidSessionID                = uint8(0x02)
	RMCPStatusInvalidAuthAlgorithm            = uint8(0x04)
	RMCPStatusInvalidIntegrityAlgorithm       = uint8(0x05)
	RMCPStatusInvalidRole                     = uint8(0x09)
	RMCPStatusUnauthorizedName                = uint8(0x0d)
	RMCPStatusInvalidIntegrityCheck           = uint8(0x0f)
	RMCPStatusInvalidConfidentialityAlgorithm = uint8(0x10)
)

const (
	algorithmPayloadSize   = 8
	openSessionRequestSize = 32
	rakpHeaderSize         = 8
	rakp1Size              = 28
	rakp2Size              = 40
	maxUsernameLength      = 16
	roleMask               = 0x0f
)

// algorithm payload types of the Open Session messages
const (
	algorithmAuthentication  = 0x00
	algorithmIntegrity       = 0x01
	algorithmConfidentiality = 0x02
)

func shortPayload(name string, n int) error {
	return fmt.Errorf("%w: %s is %d bytes", ErrMalformedPacket, name, n)
}

func putAlgorithms(buf []byte, c CipherSuite) {
	for i, alg := range []uint8{c.Authentication, c.Integrity, c.Confidentiality} {
		p := buf[i*algorithmPayloadSize:]
		p[0] = uint8(i)
		p[3] = algorithmPayloadSize
		p[4] = alg
	}
}

func algorithmsFromBytes(buf []byte) (CipherSuite, error) {
	var algs [3]uint8
	for i := range algs {
		p := buf[i*algorithmPayloadSize:]
		if p[0] != uint8(i) {
			return CipherSuite{}, fmt.Errorf("%w: algorithm payload type %d at %d", ErrMalformedPacket, p[0], i)
		}
		switch p[3] {
		case 0:
			// wildcard, the BMC picks
			algs[i] = CipherSuite3.algorithm(i)
		case algorithmPayloadSize:
			algs[i] = p[4] & 0x3f
		default:
			return CipherSuite{}, fmt.Errorf("%w: algorithm payload length %d", ErrMalformedPacket, p[3])
		}
	}
	return CipherSuite{algs[algorithmAuthentication], algs[algorithmIntegrity], algs[algorithmConfidentiality]}, nil
}

func (c CipherSuite) algorithm(i int) uint8 {
	return [...]uint8{c.Authentication, c.Integrity, c.Confidentiality}[i]
}

// OpenSessionRequest per section 13.17
type OpenSessionRequest struct {
	MessageTag      uint8
	PrivLevel       uint8
	RemoteSessionID uint32
	CipherSuite
}

// MarshalBinary encodes the request
func (r *OpenSessionRequest) MarshalBinary() ([]byte, error) {
	buf := make([]byte, openSessionRequestSize)
	buf[0] = r.MessageTag
	buf[1] = r.PrivLevel
	binary.LittleEndian.PutUint32(buf[4:], r.RemoteSessionID)
	putAlgorithms(buf[8:], r.CipherSuite)
	return buf, nil
}

// UnmarshalBinary decodes the request
func (r *OpenSessionRequest) UnmarshalBinary(buf []byte) error {
	if len(buf) < openSessionRequestSize {
		return shortPayload("open session request", len(buf))
	}
	suite, err := algorithmsFromBytes(buf[8:])
	if err != nil {
		return err
	}
	r.MessageTag = buf[0]
	r.PrivLevel = buf[1] & roleMask
	r.RemoteSessionID = binary.LittleEndian.Uint32(buf[4:])
	r.CipherSuite = suite
	return nil
}

// OpenSessionResponse per section 13.18
type OpenSessionResponse struct {
	MessageTag      uint8
	Status          uint8
	PrivLevel       uint8
	RemoteSessionID uint32
	BMCSessionID    uint32
	CipherSuite
}

// MarshalBinary encodes the response, error responses stop after the remote session id
func (r *OpenSessionResponse) MarshalBinary() ([]byte, error) {
	if r.Status != RMCPStatusOK {
		buf := make([]byte, rakpHeaderSize)
		buf[0] = r.MessageTag
		buf[1] = r.Status
		binary.LittleEndian.PutUint32(buf[4:], r.RemoteSessionID)
		return buf, nil
	}

	buf := make([]byte, 12+3*algorithmPayloadSize)
	buf[0] = r.MessageTag
	buf[1] = r.Status
	buf[2] = r.PrivLevel
	binary.LittleEndian.PutUint32(buf[4:], r.RemoteSessionID)
	binary.LittleEndian.PutUint32(buf[8:], r.BMCSessionID)
	putAlgorithms(buf[12:], r.CipherSuite)
	return buf, nil
}

// UnmarshalBinary decodes the response
func (r *OpenSessionResponse) UnmarshalBinary(buf []byte) error {
	if len(buf) < rakpHeaderSize {
		return shortPayload("open session response", len(buf))
	}
	r.MessageTag = buf[0]
	r.Status = buf[1]
	r.PrivLevel = buf[2]
	r.RemoteSessionID = binary.LittleEndian.Uint32(buf[4:])
	if r.Status != RMCPStatusOK {
		return nil
	}
	if len(buf) < 12+3*algorithmPayloadSize {
		return shortPayload("open session response", len(buf))
	}
	r.BMCSessionID = binary.LittleEndian.Uint32(buf[8:])
	suite, err := algorithmsFromBytes(buf[12:])
	if err != nil {
		return err
	}
	r.CipherSuite = suite
	return nil
}

// RAKPMessage1 per section 13.20
type RAKPMessage1 struct {
	MessageTag    uint8
	BMCSessionID  uint32
	ConsoleRandom [16]uint8
	Role          uint8
	Username      []byte
}

// MarshalBinary encodes the message
func (r *RAKPMessage1) MarshalBinary() ([]byte, error) {
	if len(r.Username) > maxUsernameLength {
		return nil, fmt.Errorf("username longer than %d bytes", maxUsernameLength)
	}
	buf := make([]byte, rakp1Size, rakp1Size+len(r.Username))
	buf[0] = r.MessageTag
	binary.LittleEndian.PutUint32(buf[4:], r.BMCSessionID)
	copy(buf[8:], r.ConsoleRandom[:])
	buf[24] = r.Role
	buf[27] = uint8(len(r.Username))
	return append(buf, r.Username...), nil
}

// UnmarshalBinary decodes the message
func (r *RAKPMessage1) UnmarshalBinary(buf []byte) error {
	if len(buf) < rakp1Size {
		return shortPayload("rakp message 1", len(buf))
	}
	n := int(buf[27])
	if n > maxUsernameLength || len(buf) < rakp1Size+n {
		return fmt.Errorf("%w: username length %d", ErrMalformedPacket, n)
	}
	r.MessageTag = buf[0]
	r.BMCSessionID = binary.LittleEndian.Uint32(buf[4:])
	copy(r.ConsoleRandom[:], buf[8:24])
	r.Role = buf[24]
	r.Username = append([]byte(nil), buf[rakp1Size:rakp1Size+n]...)
	return nil
}

// RAKPMessage2 per section 13.21
type RAKPMessage2 struct {
	MessageTag      uint8
	Status          uint8
	RemoteSessionID uint32
	BMCRandom       [16]uint8
	SystemGUID      [16]uint8
	AuthCode        []byte
}

// MarshalBinary encodes the message, error responses stop after the remote session id
func (r *RAKPMessage2) MarshalBinary() ([]byte, error) {
	buf := make([]byte, rakpHeaderSize, rakp2Size+len(r.AuthCode))
	buf[0] = r.MessageTag
	buf[1] = r.Status
	binary.LittleEndian.PutUint32(buf[4:], r.RemoteSessionID)
	if r.Status != RMCPStatusOK {
		return buf, nil
	}
	buf = append(buf, r.BMCRandom[:]...)
	buf = append(buf, r.SystemGUID[:]...)
	return append(buf, r.AuthCode...), nil
}

// UnmarshalBinary decodes the message
func (r *RAKPMessage2) UnmarshalBinary(buf []byte) error {
	if len(buf) < rakpHeaderSize {
		return shortPayload("rakp message 2", len(buf))
	}
	r.MessageTag = buf[0]
	r.Status = buf[1]
	r.RemoteSessionID = binary.LittleEndian.Uint32(buf[4:])
	if r.Status != RMCPStatusOK {
		return nil
	}
	if len(buf) < rakp2Size {
		return shortPayload("rakp message 2", len(buf))
	}
	copy(r.BMCRandom[:], buf[8:24])
	copy(r.SystemGUID[:], buf[24:40])
	r.AuthCode = append([]byte(nil), buf[rakp2Size:]...)
	return nil
}

// RAKPMessage3 per section 13.22
type RAKPMessage3 struct {
	MessageTag   uint8
	Status       uint8
	BMCSessionID uint32
	AuthCode     []byte
}

// MarshalBinary encodes the message
func (r *RAKPMessage3) MarshalBinary() ([]byte, error) {
	buf := make([]byte, rakpHeaderSize, rakpHeaderSize+len(r.AuthCode))
	buf[0] = r.MessageTag
	buf[1] = r.Status
	binary.LittleEndian.PutUint32(buf[4:], r.BMCSessionID)
	return append(buf, r.AuthCode...), nil
}

// UnmarshalBinary decodes the message
func (r *RAKPMessage3) UnmarshalBinary(buf []byte) error {
	if len(buf) < rakpHeaderSize {
		return shortPayload("rakp message 3", len(buf))
	}
	r.MessageTag = buf[0]
	r.Status = buf[1]
	r.BMCSessionID = binary.LittleEndian.Uint32(buf[4:])
	r.AuthCode = append([]byte(nil), buf[rakpHeaderSize:]...)
	return nil
}

// RAKPMessage4 per section 13.23
type RAKPMessage4 struct {
	MessageTag      uint8
	Status          uint8
	RemoteSessionID uint32
	ICV             []byte
}

// MarshalBinary encodes the message
func (r *RAKPMessage4) MarshalBinary() ([]byte, error) {
	buf := make([]byte, rakpHeaderSize, rakpHeaderSize+len(r.ICV))
	buf[0] = r.MessageTag
	buf[1] = r.Status
	binary.LittleEndian.PutUint32(buf[4:], r.RemoteSessionID)
	return append(buf, r.ICV...), nil
}

// UnmarshalBinary decodes the message
func (r *RAKPMessage4) UnmarshalBinary(buf []byte) error {
	if len(buf) < rakpHeaderSize {
		return shortPayload("rakp message 4", len(buf))
	}
	r.MessageTag = buf[0]
	r.Status = buf[1]
	r.RemoteSessionID = binary.LittleEndian.Uint32(buf[4:])
	r.ICV = append([]byte(nil), buf[rakpHeaderSize:]...)
	return nil
}
