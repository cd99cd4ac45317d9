// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import (
	"crypto/hmac"
	"encoding"
	"encoding/binary"
	"fmt"
)

// lanplus is the IPMI v2.0 transport. Sessions are negotiated with RAKP and
// cipher suite 3: HMAC-SHA1 authentication, HMAC-SHA1-96 integrity and
// AES-CBC-128 confidentiality.
type lanplus struct {
	lanConn
	session  SessionContext
	sequence uint32
	tag      uint8
	password []byte
	priv     uint8
	active   bool
}

func newLanplusTransport(c *Connection) transport {
	return &lanplus{
		lanConn:  lanConn{Connection: c},
		password: []byte(c.Password),
	}
}

func (l *lanplus) open() error {
	if err := l.dial(); err != nil {
		return err
	}

	l.priv = PrivLevelAdmin
	l.lun = 0

	return l.openSession()
}

func (l *lanplus) close() error {
	var err error
	if l.active {
		err = l.send(&Request{
			NetworkFunctionApp,
			CommandCloseSession,
			&CloseSessionRequest{SessionID: l.session.BMCSessionID},
		}, &CloseSessionResponse{})
		l.active = false
	}

	l.hangup()

	return err
}

func (l *lanplus) send(req *Request, res Response) error {
	if err := l.sendRMCP(l.packet(req)); err != nil {
		return err
	}

	m, err := l.recvMessage()
	if err != nil {
		return err
	}

	return m.Response(res)
}

func (l *lanplus) nextSequence() uint32 {
	l.sequence++
	if l.sequence == 0 {
		l.sequence++
	}
	return l.sequence
}

// packet encodes r as an IPMI payload, protected once the session is active
func (l *lanplus) packet(r *Request) []byte {
	payload := l.message(r).toBytes()

	h := &sessionHeader20{
		AuthType:    AuthTypeRMCPPlus,
		PayloadType: uint8(PayloadTypeIPMI),
	}

	if !l.active {
		h.PayloadLength = uint16(len(payload))
		return append(h.toBytes(), payload...)
	}

	s := &l.session
	h.SessionID = s.BMCSessionID
	h.Sequence = l.nextSequence()

	if s.encrypted() {
		var err error
		payload, err = encryptPayload(payload, s.K2)
		if err != nil {
			// K2 is always long enough for AES-128
			panic(err)
		}
		h.PayloadType |= payloadEncrypted
	}
	if s.authenticated() {
		h.PayloadType |= payloadAuthenticated
	}
	h.PayloadLength = uint16(len(payload))

	msg := append(h.toBytes(), payload...)
	if s.authenticated() {
		msg = appendTrailer(msg, s.K1)
	}

	return msg
}

// recvPayload returns the next payload of the given type, decrypted and verified
func (l *lanplus) recvPayload(t PayloadType) ([]byte, error) {
	buf, err := l.recvRMCP()
	if err != nil {
		return nil, err
	}

	h, err := sessionHeader20FromBytes(buf)
	if err != nil {
		return nil, err
	}
	if h.AuthType != AuthTypeRMCPPlus {
		return nil, fmt.Errorf("%w: auth type %s in v2.0 session", ErrMalformedPacket, h.AuthType)
	}
	if h.payloadType() != t {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrMalformedPacket, h.payloadType(), t)
	}

	s := &l.session
	if h.authenticated() {
		if !s.authenticated() || s.K1 == nil {
			return nil, fmt.Errorf("%w: authenticated payload before key exchange", ErrIntegrity)
		}
		if buf, err = checkTrailer(buf, s.K1); err != nil {
			return nil, err
		}
	}

	end := sessionHeader20Size + int(h.PayloadLength)
	if len(buf) < end {
		return nil, fmt.Errorf("%w: payload length %d exceeds packet", ErrMalformedPacket, h.PayloadLength)
	}
	payload := buf[sessionHeader20Size:end]

	if h.encrypted() {
		if s.K2 == nil {
			return nil, fmt.Errorf("%w: encrypted payload before key exchange", ErrDecrypt)
		}
		return decryptPayload(payload, s.K2)
	}

	return payload, nil
}

func (l *lanplus) recvMessage() (*Message, error) {
	payload, err := l.recvPayload(PayloadTypeIPMI)
	if err != nil {
		return nil, err
	}
	return messageFromBytes(payload)
}

// exchange sends a session setup payload and decodes the reply into res
func (l *lanplus) exchange(t PayloadType, req encoding.BinaryMarshaler, res encoding.BinaryUnmarshaler) error {
	payload, err := req.MarshalBinary()
	if err != nil {
		return err
	}

	h := &sessionHeader20{
		AuthType:      AuthTypeRMCPPlus,
		PayloadType:   uint8(t),
		PayloadLength: uint16(len(payload)),
	}
	if err := l.sendRMCP(append(h.toBytes(), payload...)); err != nil {
		return err
	}

	buf, err := l.recvPayload(t.response())
	if err != nil {
		return err
	}

	return res.UnmarshalBinary(buf)
}

func (l *lanplus) openSession() error {
	if err := l.ping(); err != nil {
		return err
	}

	if err := l.getAuthCapabilities(); err != nil {
		return err
	}

	if err := l.openSessionRequest(); err != nil {
		return err
	}

	if err := l.rakp(); err != nil {
		return err
	}

	l.active = true

	req := &Request{
		NetworkFunctionApp,
		CommandSetSessionPrivilegeLevel,
		&SessionPrivilegeLevelRequest{PrivLevel: l.priv},
	}
	res := &SessionPrivilegeLevelResponse{}
	if err := l.send(req, res); err != nil {
		return err
	}
	l.priv = res.NewPrivilegeLevel

	return nil
}

func (l *lanplus) getAuthCapabilities() error {
	req := &Request{
		NetworkFunctionApp,
		CommandGetAuthCapabilities,
		&AuthCapabilitiesRequest{
			ChannelNumber: channelExtendedCapabilities | channelCurrent,
			PrivLevel:     l.priv,
		},
	}
	res := &AuthCapabilitiesResponse{}

	if err := l.send(req, res); err != nil {
		return err
	}

	if res.ExtCapabilities&ExtCapabilitiesIPMIv20 == 0 {
		return fmt.Errorf("%w: BMC does not support IPMI v2.0", ErrNegotiation)
	}

	return nil
}

func (l *lanplus) openSessionRequest() error {
	s := &l.session
	s.AuthType = AuthTypeRMCPPlus
	s.CipherSuite = CipherSuite3
	for s.RemoteSessionID == 0 {
		s.RemoteSessionID = binary.LittleEndian.Uint32(randomBytes(4))
	}

	l.tag++
	req := &OpenSessionRequest{
		MessageTag:      l.tag,
		PrivLevel:       l.priv,
		RemoteSessionID: s.RemoteSessionID,
		CipherSuite:     s.CipherSuite,
	}
	res := &OpenSessionResponse{}

	if err := l.exchange(PayloadTypeOpenSessionRequest, req, res); err != nil {
		return err
	}

	if res.Status != RMCPStatusOK {
		return fmt.Errorf("%w: open session status %#02x", ErrNegotiation, res.Status)
	}
	if res.RemoteSessionID != s.RemoteSessionID || res.CipherSuite != s.CipherSuite {
		return fmt.Errorf("%w: open session response does not match request", ErrNegotiation)
	}

	s.BMCSessionID = res.BMCSessionID
	s.State = SessionOpenRequested

	return nil
}

// rakp runs messages 1 through 4 and derives the session keys
func (l *lanplus) rakp() error {
	s := &l.session
	copy(s.ConsoleRandom[:], randomBytes(len(s.ConsoleRandom)))
	s.Role = l.priv
	s.Username = []byte(l.Username)

	l.tag++
	rakp1 := &RAKPMessage1{
		MessageTag:    l.tag,
		BMCSessionID:  s.BMCSessionID,
		ConsoleRandom: s.ConsoleRandom,
		Role:          s.Role,
		Username:      s.Username,
	}
	rakp2 := &RAKPMessage2{}

	if err := l.exchange(PayloadTypeRAKP1, rakp1, rakp2); err != nil {
		return err
	}
	if rakp2.Status != RMCPStatusOK {
		return fmt.Errorf("%w: rakp2 status %#02x", ErrNegotiation, rakp2.Status)
	}

	s.BMCRandom = rakp2.BMCRandom
	s.SystemGUID = rakp2.SystemGUID
	if !hmac.Equal(rakp2.AuthCode, s.rakp2AuthCode(l.password)) {
		return fmt.Errorf("%w: rakp2 auth code", ErrIntegrity)
	}
	s.State = SessionRakp1Received

	l.tag++
	rakp3 := &RAKPMessage3{
		MessageTag:   l.tag,
		BMCSessionID: s.BMCSessionID,
		AuthCode:     s.rakp3AuthCode(l.password),
	}
	rakp4 := &RAKPMessage4{}

	if err := l.exchange(PayloadTypeRAKP3, rakp3, rakp4); err != nil {
		return err
	}
	if rakp4.Status != RMCPStatusOK {
		return fmt.Errorf("%w: rakp4 status %#02x", ErrNegotiation, rakp4.Status)
	}

	if err := s.deriveKeys(l.password); err != nil {
		return err
	}
	if !hmac.Equal(rakp4.ICV, s.ICV) {
		return fmt.Errorf("%w: rakp4 integrity check value", ErrIntegrity)
	}
	s.State = SessionActive

	return nil
}
