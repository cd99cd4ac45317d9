/*
Copyright (c) 2014 VMware, Inc. All Rights Reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ipmi

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

const defaultTimeout = 5 * time.Second

// lanConn is the UDP plumbing shared by the lan and lanplus transports
type lanConn struct {
	*Connection
	conn    net.Conn
	rqSeq   uint8
	lun     uint8
	timeout time.Duration
}

func (l *lanConn) dial() error {
	// TODO: support more than just udp4
	addr := net.JoinHostPort(l.Hostname, strconv.Itoa(l.Port))
	conn, err := net.Dial("udp4", addr)
	if err != nil {
		return err
	}
	l.conn = conn

	l.timeout = l.Timeout
	if l.timeout == 0 {
		l.timeout = defaultTimeout
	}

	return nil
}

func (l *lanConn) hangup() {
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
}

func (l *lanConn) sendPacket(buf []byte) error {
	_, err := l.conn.Write(buf)
	return err
}

func (l *lanConn) recvPacket() ([]byte, error) {
	buf := make([]byte, ipmiBufSize)

	err := l.conn.SetReadDeadline(time.Now().Add(l.timeout))
	if err != nil {
		return nil, err
	}

	n, err := l.conn.Read(buf)
	if err != nil {
		return nil, err
	}

	return buf[:n], nil
}

// sendRMCP wraps an IPMI session packet in an RMCP header and sends it
func (l *lanConn) sendRMCP(packet []byte) error {
	return l.sendPacket(newRMCPHeader(rmcpClassIPMI).wrap(packet))
}

// recvRMCP returns the next IPMI session packet, RMCP header stripped
func (l *lanConn) recvRMCP() ([]byte, error) {
	buf, err := l.recvPacket()
	if err != nil {
		return nil, err
	}

	header, err := rmcpHeaderFromBytes(buf)
	if err != nil {
		return nil, err
	}

	if header.Class != rmcpClassIPMI {
		return nil, header.unsupportedClass()
	}

	return buf[rmcpHeaderSize:], nil
}

func (l *lanConn) nextRqSeq() uint8 {
	l.rqSeq++
	return l.rqSeq << 2
}

// message builds the IPMI message of r. Group extension requests carry the
// signature as the first data byte.
func (l *lanConn) message(r *Request) *Message {
	m := &Message{
		ipmiHeader: ipmiHeader{
			RsAddr:     bmcSlaveAddr,
			NetFnRsLUN: uint8(r.NetworkFunction)<<2 | l.lun&3,
			Command:    r.Command,
			RqAddr:     remoteSWID,
			RqSeq:      l.nextRqSeq(),
		},
		Data: messageDataToBytes(r.Data),
	}

	if m.hasSignature() && len(m.Data) > 0 {
		m.Signature = m.Data[0]
		m.Data = m.Data[1:]
	}

	return m
}

func (l *lanConn) ping() error {
	msg := &asfMessage{
		rmcpHeader: &rmcpHeader{
			Version:            rmcpVersion1,
			Class:              rmcpClassASF,
			RMCPSequenceNumber: 0xff,
		},
		asfHeader: &asfHeader{
			IANAEnterpriseNumber: asfIANA,
			MessageType:          asfMessageTypePing,
		},
	}

	if err := l.sendPacket(msg.toBytes(nil)); err != nil {
		return err
	}

	buf, err := l.recvPacket()
	if err != nil {
		return err
	}
	m, err := asfMessageFromBytes(buf)
	if err != nil {
		return err
	}
	if m.MessageType != asfMessageTypePong {
		return m.unsupportedMessageType()
	}

	pong := &asfPong{}
	if err := m.response(pong); err != nil {
		return err
	}
	if !pong.valid() {
		return errors.New("IPMI not supported")
	}

	return nil
}

// lan is the IPMI v1.5 transport, authenticating with MD5 when the BMC offers it
type lan struct {
	lanConn
	authType  AuthType
	sessionID uint32
	sequence  uint32
	active    bool
	password  [16]uint8
	username  [16]uint8
	priv      uint8
}

func newLanTransport(c *Connection) transport {
	l := &lan{lanConn: lanConn{Connection: c}}

	copy(l.username[:], c.Username)
	l.password = padPassword([]byte(c.Password))

	return l
}

func (l *lan) open() error {
	if err := l.dial(); err != nil {
		return err
	}

	l.priv = PrivLevelAdmin
	l.lun = 0

	return l.openSession()
}

func (l *lan) close() error {
	var err error
	if l.active {
		err = l.closeSession()
		l.active = false
	}

	l.hangup()

	return err
}

func (l *lan) send(req *Request, res Response) error {
	if err := l.sendRMCP(l.packet(req)); err != nil {
		return err
	}

	m, err := l.recvMessage()
	if err != nil {
		return err
	}

	return m.Response(res)
}

func (l *lan) nextSequence() uint32 {
	if l.sequence != 0 {
		l.sequence++
	}
	return l.sequence
}

// packet encodes r in a v1.5 session header
func (l *lan) packet(r *Request) []byte {
	payload := l.message(r).toBytes()

	h := &sessionHeader15{
		AuthType:      AuthTypeNone,
		Sequence:      l.nextSequence(),
		SessionID:     l.sessionID,
		PayloadLength: uint8(len(payload)),
	}

	if l.active {
		h.AuthType = l.authType
	}
	if h.AuthType == AuthTypeMD5 {
		h.AuthCode = md5AuthCode(l.password, h.SessionID, payload, h.Sequence)
	}

	return append(h.toBytes(), payload...)
}

func (l *lan) recvMessage() (*Message, error) {
	buf, err := l.recvRMCP()
	if err != nil {
		return nil, err
	}

	h, payload, err := sessionHeader15FromBytes(buf)
	if err != nil {
		return nil, err
	}

	if h.AuthType == AuthTypeMD5 {
		code := md5AuthCode(l.password, h.SessionID, payload, h.Sequence)
		if subtle.ConstantTimeCompare(code[:], h.AuthCode[:]) != 1 {
			return nil, ErrIntegrity
		}
	}

	return messageFromBytes(payload)
}

func (l *lan) openSession() error {
	if err := l.ping(); err != nil {
		return err
	}

	if err := l.getAuthCapabilities(); err != nil {
		return err
	}

	res, err := l.getSessionChallenge()
	if err != nil {
		return err
	}

	if err := l.activateSession(res); err != nil {
		return err
	}

	return l.setSessionPriv()
}

func (l *lan) getAuthCapabilities() error {
	req := &Request{
		NetworkFunctionApp,
		CommandGetAuthCapabilities,
		&AuthCapabilitiesRequest{
			ChannelNumber: channelCurrent,
			PrivLevel:     l.priv,
		},
	}
	res := &AuthCapabilitiesResponse{}

	if err := l.send(req, res); err != nil {
		return err
	}

	for _, t := range []AuthType{AuthTypeMD5, AuthTypeNone} {
		if res.AuthTypeSupport&t.Support() != 0 {
			l.authType = t
			return nil
		}
	}

	return fmt.Errorf("%w: BMC did not offer a supported auth type (%#02x)", ErrNegotiation, res.AuthTypeSupport)
}

func (l *lan) getSessionChallenge() (*SessionChallengeResponse, error) {
	req := &Request{
		NetworkFunctionApp,
		CommandGetSessionChallenge,
		&SessionChallengeRequest{
			AuthType: l.authType,
			Username: l.username,
		},
	}
	res := &SessionChallengeResponse{}

	if err := l.send(req, res); err != nil {
		return nil, err
	}

	l.sessionID = res.TemporarySessionID
	return res, nil
}

func (l *lan) activateSession(sc *SessionChallengeResponse) error {
	req := &Request{
		NetworkFunctionApp,
		CommandActivateSession,
		&ActivateSessionRequest{
			AuthType:  l.authType,
			PrivLevel: l.priv,
			AuthCode:  sc.Challenge,
			InSeq:     binary.LittleEndian.Uint32(randomBytes(4)),
		},
	}
	res := &ActivateSessionResponse{}

	l.active = true

	if err := l.send(req, res); err != nil {
		l.active = false
		return err
	}

	l.sessionID = res.SessionID
	l.authType = res.AuthType
	l.sequence = res.InboundSeq

	return nil
}

func (l *lan) setSessionPriv() error {
	req := &Request{
		NetworkFunctionApp,
		CommandSetSessionPrivilegeLevel,
		&SessionPrivilegeLevelRequest{
			PrivLevel: l.priv,
		},
	}
	res := &SessionPrivilegeLevelResponse{}

	if err := l.send(req, res); err != nil {
		return err
	}

	l.priv = res.NewPrivilegeLevel

	return nil
}

func (l *lan) closeSession() error {
	req := &Request{
		NetworkFunctionApp,
		CommandCloseSession,
		&CloseSessionRequest{
			SessionID: l.sessionID,
		},
	}

	return l.send(req, &CloseSessionResponse{})
}
