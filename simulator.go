// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import (
	"bytes"
	"context"
	"crypto/hmac"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vmware/ipmisim/sdr"
)

const (
	defaultUsername       = "admin"
	defaultPassword       = "password"
	defaultSessionLimit   = 32
	defaultSessionTimeout = 60 * time.Second
)

// handlerKey addresses a command handler. Signature is only set for group
// extension commands.
type handlerKey struct {
	NetworkFunction
	Command
	Signature uint8
}

// Option configures a Simulator
type Option func(*Simulator)

// WithState replaces the default BMC state
func WithState(state *State) Option {
	return func(s *Simulator) {
		s.state = state
	}
}

// WithSDR sets the sensor data record repository
func WithSDR(store *sdr.Store) Option {
	return func(s *Simulator) {
		s.sdr = store
	}
}

// WithCredentials sets the user name and password of the BMC user
func WithCredentials(username, password string) Option {
	return func(s *Simulator) {
		s.users[LoginUserID] = username
		s.password = []byte(password)
	}
}

// WithLogger sets the logger, the default discards everything
func WithLogger(log zerolog.Logger) Option {
	return func(s *Simulator) {
		s.log = log
	}
}

// WithMetrics sets the collectors updated by the simulator
func WithMetrics(m *Metrics) Option {
	return func(s *Simulator) {
		s.metrics = m
	}
}

// WithSessionLimit sets the maximum number of concurrent sessions
func WithSessionLimit(n int) Option {
	return func(s *Simulator) {
		s.sessionLimit = n
	}
}

// WithSessionTimeout sets the idle time after which a session is evicted
func WithSessionTimeout(d time.Duration) Option {
	return func(s *Simulator) {
		s.sessionTimeout = d
	}
}

// WithInvalidCommandResponses answers unsupported commands with
// ErrInvalidCommand instead of staying silent
func WithInvalidCommandResponses() Option {
	return func(s *Simulator) {
		s.invalidCommandResponses = true
	}
}

// Simulator for IPMI. Handle is safe for concurrent use, packets are
// processed one at a time. Handlers run with the simulator locked and must
// not call back into the Simulator.
type Simulator struct {
	wg   sync.WaitGroup
	addr net.UDPAddr
	conn *net.UDPConn

	// mu guards everything below. Lock order: mu, then the session table,
	// then the SDR store.
	mu       sync.Mutex
	state    *State
	sdr      *sdr.Store
	handlers map[handlerKey]Handler
	sessions *SessionTable
	users    map[uint8]string
	password []byte
	powerIdx int
	now      func() time.Time

	log                     zerolog.Logger
	metrics                 *Metrics
	sessionLimit            int
	sessionTimeout          time.Duration
	invalidCommandResponses bool

	md5      md5Session
	rmcpPlus rmcpPlus
}

// NewSimulator constructs a Simulator with the given addr
func NewSimulator(addr net.UDPAddr, opts ...Option) *Simulator {
	s := &Simulator{
		addr:           addr,
		users:          map[uint8]string{LoginUserID: defaultUsername},
		password:       []byte(defaultPassword),
		now:            time.Now,
		log:            zerolog.Nop(),
		sessionLimit:   defaultSessionLimit,
		sessionTimeout: defaultSessionTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.state == nil {
		s.state = DefaultState()
	}
	if s.sdr == nil {
		s.sdr, _ = sdr.NewStore(nil)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	s.md5.password = padPassword(s.password)
	s.sessions = NewSessionTable(s.sessionLimit, s.sessionTimeout, s.sessionRemoved)

	s.handlers = map[handlerKey]Handler{
		{NetworkFunctionApp, CommandGetDeviceID, 0}:              s.deviceID,
		{NetworkFunctionApp, CommandGetSystemGUID, 0}:            s.systemGUID,
		{NetworkFunctionApp, CommandGetAuthCapabilities, 0}:      s.authCapabilities,
		{NetworkFunctionApp, CommandGetSessionChallenge, 0}:      s.sessionChallenge,
		{NetworkFunctionApp, CommandActivateSession, 0}:          s.sessionActivate,
		{NetworkFunctionApp, CommandSetSessionPrivilegeLevel, 0}: s.sessionPrivilege,
		{NetworkFunctionApp, CommandCloseSession, 0}:             s.sessionClose,
		{NetworkFunctionApp, CommandSetUserName, 0}:              s.setUserName,
		{NetworkFunctionApp, CommandGetUserName, 0}:              s.getUserName,

		{NetworkFunctionChassis, CommandChassisStatus, 0}:        s.chassisStatus,
		{NetworkFunctionChassis, CommandChassisControl, 0}:       s.chassisControl,
		{NetworkFunctionChassis, CommandChassisIdentify, 0}:      s.chassisIdentify,
		{NetworkFunctionChassis, CommandSetSystemBootOptions, 0}: s.setBootOptions,
		{NetworkFunctionChassis, CommandGetSystemBootOptions, 0}: s.getBootOptions,

		{NetworkFunctionStorage, CommandGetFRUInventoryAreaInfo, 0}: s.fruInventoryAreaInfo,
		{NetworkFunctionStorage, CommandReadFRUData, 0}:             s.readFRUData,
		{NetworkFunctionStorage, CommandGetSDRRepositoryInfo, 0}:    s.sdrRepositoryInfo,
		{NetworkFunctionStorage, CommandReserveSDRRepository, 0}:    s.reserveSDRRepository,
		{NetworkFunctionStorage, CommandGetSDR, 0}:                  s.getSDR,

		{NetworkFunctionSensorEvent, CommandGetSensorThresholds, 0}: s.sensorThresholds,
		{NetworkFunctionSensorEvent, CommandGetSensorReading, 0}:    s.sensorReading,

		{NetworkFunctionGroupExtension, CommandGetDCMICapabilities, SignatureDCMI}: s.dcmiCapabilities,
		{NetworkFunctionGroupExtension, CommandGetPowerReading, SignatureDCMI}:     s.powerReading,
		{NetworkFunctionGroupExtension, CommandGetMcIDString, SignatureDCMI}:       s.getMcIDString,
		{NetworkFunctionGroupExtension, CommandSetMcIDString, SignatureDCMI}:       s.setMcIDString,
	}

	for gc := range s.state.GroupCapabilities {
		key := handlerKey{NetworkFunctionGroupExtension, gc.Command, gc.Signature}
		if _, ok := s.handlers[key]; !ok {
			s.handlers[key] = s.groupCapability
		}
	}

	return s
}

// SetHandler sets the command handler for the given netfn and command
func (s *Simulator) SetHandler(netfn NetworkFunction, command Command, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[handlerKey{netfn, command, 0}] = handler
}

// SetGroupHandler sets the handler of a group extension command
func (s *Simulator) SetGroupHandler(signature uint8, command Command, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[handlerKey{NetworkFunctionGroupExtension, command, signature}] = handler
}

// NewConnection to this Simulator instance
func (s *Simulator) NewConnection() *Connection {
	addr := s.LocalAddr()
	return &Connection{
		Hostname:  addr.IP.String(),
		Port:      addr.Port,
		Username:  s.users[LoginUserID],
		Password:  string(s.password),
		Interface: "lanplus",
	}
}

// LocalAddr returns the address the server is bound to.
func (s *Simulator) LocalAddr() *net.UDPAddr {
	if s.conn != nil {
		return s.conn.LocalAddr().(*net.UDPAddr)
	}
	return nil
}

// Sessions returns the number of live sessions
func (s *Simulator) Sessions() int {
	return s.sessions.Len()
}

// Run the Simulator.
func (s *Simulator) Run() error {
	var err error
	s.conn, err = net.ListenUDP("udp4", &s.addr)
	if err != nil {
		return err
	}

	s.log.Info().Str("addr", s.LocalAddr().String()).Msg("simulator listening")

	s.wg.Add(1)

	go func() {
		_ = s.serve()
		s.wg.Done()
	}()

	return nil
}

// Stop the Simulator, removing the sessions still open.
func (s *Simulator) Stop() {
	_ = s.conn.Close()
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions.Close()
}

// ListenAndServe runs the Simulator until ctx is done
func (s *Simulator) ListenAndServe(ctx context.Context) error {
	if err := s.Run(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

func (s *Simulator) serve() error {
	buf := make([]byte, ipmiBufSize)

	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			return err // conn closed
		}

		response := s.datagram(buf[:n])
		if len(response) == 0 {
			continue
		}

		_, err = s.conn.WriteTo(response, addr)
		if err != nil {
			return err // conn closed
		}
	}
}

// datagram answers one RMCP datagram, nil for no reply
func (s *Simulator) datagram(buf []byte) []byte {
	header, err := rmcpHeaderFromBytes(buf)
	if err != nil {
		s.dropped(err)
		return nil
	}

	switch header.Class {
	case rmcpClassASF:
		m, err := asfMessageFromBytes(buf)
		if err != nil {
			s.dropped(err)
			return nil
		}
		pong, err := m.pong()
		if err != nil {
			s.dropped(err)
			return nil
		}
		return pong
	case rmcpClassIPMI:
		response, err := s.Handle(buf[rmcpHeaderSize:])
		if err != nil || len(response) == 0 {
			return nil
		}
		return newRMCPHeader(rmcpClassIPMI).wrap(response)
	default:
		s.dropped(header.unsupportedClass())
		return nil
	}
}

// Handle processes one IPMI session packet, the RMCP header already
// stripped, and returns the response packet. A nil response with a nil error
// means no reply; unsupported commands return ErrUnsupportedCommand.
func (s *Simulator) Handle(buf []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.variant(buf)
	if err != nil {
		s.dropped(err)
		return nil, err
	}

	p, err := v.parse(buf, s.sessions)
	if err != nil {
		s.dropped(err)
		return nil, err
	}

	var body []byte
	switch p.PayloadType {
	case PayloadTypeIPMI:
		body, err = s.dispatch(p.Message)
	case PayloadTypeOpenSessionRequest:
		body, err = s.openSession(p)
	case PayloadTypeRAKP1:
		body, err = s.rakp1(p)
	case PayloadTypeRAKP3:
		body, err = s.rakp3(p)
	}

	switch {
	case errors.Is(err, ErrUnsupportedCommand):
		s.metrics.packet(resultSilent)
		s.log.Debug().Err(err).Msg("no response")
		return nil, err
	case err != nil:
		s.dropped(err)
		return nil, err
	case body == nil:
		s.metrics.packet(resultSilent)
		return nil, nil
	}

	response, err := v.buildResponse(p, body)
	if err != nil {
		s.dropped(err)
		return nil, err
	}

	s.metrics.packet(resultHandled)
	return response, nil
}

func (s *Simulator) variant(buf []byte) (authVariant, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("%w: empty packet", ErrMalformedPacket)
	}
	switch AuthType(buf[0]) {
	case AuthTypeRMCPPlus:
		return &s.rmcpPlus, nil
	case AuthTypeNone, AuthTypeMD5:
		return &s.md5, nil
	}
	return nil, fmt.Errorf("%w: unsupported auth type %s", ErrMalformedPacket, AuthType(buf[0]))
}

func (s *Simulator) dropped(err error) {
	s.metrics.packet(resultDropped)
	s.log.Debug().Err(err).Msg("dropped packet")
}

// dispatch runs the handler of m and returns the encoded response message
func (s *Simulator) dispatch(m *Message) ([]byte, error) {
	key := handlerKey{m.NetFn(), m.Command, 0}
	if m.hasSignature() {
		key.Signature = m.Signature
	}

	var res Response
	if handler, ok := s.handlers[key]; ok {
		s.metrics.command(key.NetworkFunction, key.Command)
		res = handler(m)
		if res == nil {
			return nil, nil
		}
	} else {
		s.log.Info().
			Uint8("netfn", uint8(key.NetworkFunction)).
			Uint8("cmd", uint8(key.Command)).
			Uint8("sig", key.Signature).
			Msg("unsupported command")
		if !s.invalidCommandResponses {
			return nil, fmt.Errorf("%w: netfn %#02x cmd %#02x", ErrUnsupportedCommand, uint8(key.NetworkFunction), uint8(key.Command))
		}
		res = ErrInvalidCommand
	}

	return m.response(messageDataToBytes(res)).toBytes(), nil
}

// sessionRemoved runs for every session leaving the table. It is called with
// the table locked and must not touch the table or the session.
func (s *Simulator) sessionRemoved(sc *SessionContext) {
	s.sdr.Release(sc.BMCSessionID)
	s.metrics.SessionsActive.Dec()
	s.log.Info().Uint32("session_id", sc.BMCSessionID).Msg("session removed")
}

func (s *Simulator) addSession(sc *SessionContext) error {
	if err := s.sessions.Add(sc); err != nil {
		return err
	}
	s.metrics.SessionsActive.Inc()
	s.log.Info().
		Uint32("session_id", sc.BMCSessionID).
		Stringer("auth_type", sc.AuthType).
		Msg("session created")
	return nil
}

func (s *Simulator) openSession(p *Packet) ([]byte, error) {
	req := p.OpenSession
	res := &OpenSessionResponse{
		MessageTag:      req.MessageTag,
		RemoteSessionID: req.RemoteSessionID,
	}

	priv := req.PrivLevel
	if priv == PrivLevelNone {
		priv = PrivLevelAdmin
	}

	switch {
	case req.RemoteSessionID == 0:
		res.Status = RMCPStatusInvalidSessionID
	case priv > PrivLevelAdmin:
		res.Status = RMCPStatusInvalidRole
	default:
		res.Status = req.CipherSuite.status()
	}
	if res.Status != RMCPStatusOK {
		return res.MarshalBinary()
	}

	sc := &SessionContext{
		RemoteSessionID: req.RemoteSessionID,
		AuthType:        AuthTypeRMCPPlus,
		State:           SessionOpenRequested,
		PrivilegeLevel:  priv,
		SystemGUID:      s.state.GUID,
		CipherSuite:     req.CipherSuite,
	}
	if err := s.addSession(sc); err != nil {
		res.Status = RMCPStatusInsufficientResources
		return res.MarshalBinary()
	}

	res.PrivLevel = priv
	res.BMCSessionID = sc.BMCSessionID
	res.CipherSuite = sc.CipherSuite

	return res.MarshalBinary()
}

func (s *Simulator) rakp1(p *Packet) ([]byte, error) {
	sc, req := p.Session, p.RAKP1
	if sc.State != SessionOpenRequested {
		return nil, fmt.Errorf("%w: rakp1 for session %#08x in state %s", ErrNegotiation, sc.BMCSessionID, sc.State)
	}

	res := &RAKPMessage2{
		MessageTag:      req.MessageTag,
		RemoteSessionID: sc.RemoteSessionID,
	}

	switch {
	case !bytes.Equal(req.Username, []byte(s.users[LoginUserID])):
		res.Status = RMCPStatusUnauthorizedName
	case req.Role&roleMask > PrivLevelAdmin:
		res.Status = RMCPStatusInvalidRole
	}
	if res.Status != RMCPStatusOK {
		s.sessions.Remove(sc.BMCSessionID)
		return res.MarshalBinary()
	}

	sc.ConsoleRandom = req.ConsoleRandom
	copy(sc.BMCRandom[:], randomBytes(len(sc.BMCRandom)))
	sc.Role = req.Role
	sc.Username = req.Username
	if priv := req.Role & roleMask; priv != PrivLevelNone {
		sc.PrivilegeLevel = priv
	}
	sc.State = SessionRakp1Received

	res.BMCRandom = sc.BMCRandom
	res.SystemGUID = sc.SystemGUID
	res.AuthCode = sc.rakp2AuthCode(s.password)

	return res.MarshalBinary()
}

func (s *Simulator) rakp3(p *Packet) ([]byte, error) {
	sc, req := p.Session, p.RAKP3
	if sc.State != SessionRakp1Received {
		return nil, fmt.Errorf("%w: rakp3 for session %#08x in state %s", ErrNegotiation, sc.BMCSessionID, sc.State)
	}

	if req.Status != RMCPStatusOK {
		s.sessions.Remove(sc.BMCSessionID)
		return nil, fmt.Errorf("%w: rakp3 status %#02x", ErrNegotiation, req.Status)
	}

	res := &RAKPMessage4{
		MessageTag:      req.MessageTag,
		RemoteSessionID: sc.RemoteSessionID,
	}

	if !hmac.Equal(req.AuthCode, sc.rakp3AuthCode(s.password)) {
		s.sessions.Remove(sc.BMCSessionID)
		res.Status = RMCPStatusInvalidIntegrityCheck
		return res.MarshalBinary()
	}

	if err := sc.deriveKeys(s.password); err != nil {
		return nil, err
	}
	sc.State = SessionActive
	res.ICV = sc.ICV

	s.log.Info().Uint32("session_id", sc.BMCSessionID).Msg("session active")

	return res.MarshalBinary()
}

// request decodes the message data into data, reattaching the signature of
// group extension requests
func (m *Message) request(data interface{}) CompletionCode {
	buf := m.Data
	if m.hasSignature() {
		buf = append([]byte{m.Signature}, buf...)
	}

	err := messageDataFromBytes(buf, data)
	if err == nil {
		return CommandCompleted
	}

	var cc CompletionCode
	if errors.As(err, &cc) {
		return cc
	}
	return ErrInvalidPacket
}

// sessionID is the BMC session id of the session m arrived on, 0 outside of one
func (m *Message) sessionID() uint32 {
	if m.Session == nil {
		return 0
	}
	return m.Session.BMCSessionID
}
