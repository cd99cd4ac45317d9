// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// SessionState of a session negotiation
type SessionState int

// Session states
const (
	SessionUnbound SessionState = iota
	SessionOpenRequested
	SessionRakp1Received
	SessionActive
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionUnbound:
		return "unbound"
	case SessionOpenRequested:
		return "open-requested"
	case SessionRakp1Received:
		return "rakp1-received"
	case SessionActive:
		return "active"
	case SessionClosed:
		return "closed"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

// RMCP+ algorithms per section 13.28
const (
	AuthRAKPNone             = uint8(0x00)
	AuthRAKPHMACSHA1         = uint8(0x01)
	IntegrityNone            = uint8(0x00)
	IntegrityHMACSHA196      = uint8(0x01)
	ConfidentialityNone      = uint8(0x00)
	ConfidentialityAESCBC128 = uint8(0x01)
)

// CipherSuite is the negotiated algorithm triplet of an RMCP+ session
type CipherSuite struct {
	Authentication  uint8
	Integrity       uint8
	Confidentiality uint8
}

// CipherSuite3 is RAKP-HMAC-SHA1, HMAC-SHA1-96, AES-CBC-128
var CipherSuite3 = CipherSuite{AuthRAKPHMACSHA1, IntegrityHMACSHA196, ConfidentialityAESCBC128}

// status returns the RMCP+ status code rejecting an unsupported suite
func (c CipherSuite) status() uint8 {
	switch {
	case c.Authentication != AuthRAKPHMACSHA1:
		return RMCPStatusInvalidAuthAlgorithm
	case c.Integrity != IntegrityNone && c.Integrity != IntegrityHMACSHA196:
		return RMCPStatusInvalidIntegrityAlgorithm
	case c.Confidentiality != ConfidentialityNone && c.Confidentiality != ConfidentialityAESCBC128:
		return RMCPStatusInvalidConfidentialityAlgorithm
	}
	return RMCPStatusOK
}

// SessionContext is the negotiation and key state of one session
type SessionContext struct {
	RemoteSessionID uint32
	BMCSessionID    uint32
	AuthType        AuthType
	State           SessionState
	PrivilegeLevel  uint8
	// Role is the requested maximum privilege byte of RAKP1, lookup bit included
	Role          uint8
	ConsoleRandom [16]byte
	BMCRandom     [16]byte
	SystemGUID    [16]byte
	CipherSuite
	Username []byte
	// Challenge of an IPMI v1.5 session
	Challenge [16]byte

	SIK []byte
	K1  []byte
	K2  []byte
	ICV []byte
}

func (s *SessionContext) authenticated() bool {
	return s.AuthType == AuthTypeRMCPPlus && s.Integrity == IntegrityHMACSHA196
}

func (s *SessionContext) encrypted() bool {
	return s.AuthType == AuthTypeRMCPPlus && s.Confidentiality == ConfidentialityAESCBC128
}

func (s *SessionContext) userBytes() []byte {
	return append([]byte{s.Role, uint8(len(s.Username))}, s.Username...)
}

// rakp2AuthCode is the key exchange auth code of RAKP message 2
func (s *SessionContext) rakp2AuthCode(password []byte) []byte {
	return hmacSHA1(password,
		le32(s.RemoteSessionID),
		le32(s.BMCSessionID),
		s.ConsoleRandom[:],
		s.BMCRandom[:],
		s.SystemGUID[:],
		s.userBytes())
}

// rakp3AuthCode is the key exchange auth code expected in RAKP message 3
func (s *SessionContext) rakp3AuthCode(password []byte) []byte {
	return hmacSHA1(password,
		s.BMCRandom[:],
		le32(s.RemoteSessionID),
		s.userBytes())
}

// deriveKeys computes SIK, ICV, K1 and K2 in that order. Keys are set once.
func (s *SessionContext) deriveKeys(password []byte) error {
	if s.SIK != nil {
		return fmt.Errorf("%w: session %#08x already keyed", ErrNegotiation, s.BMCSessionID)
	}

	s.SIK = hmacSHA1(password, s.ConsoleRandom[:], s.BMCRandom[:], s.userBytes())
	s.ICV = hmacSHA1(s.SIK, s.ConsoleRandom[:], le32(s.BMCSessionID), s.SystemGUID[:])[:authCodeSize]
	s.K1 = hmacSHA1(s.SIK, bytes.Repeat([]byte{0x01}, 20))
	s.K2 = hmacSHA1(s.SIK, bytes.Repeat([]byte{0x02}, 20))

	return nil
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// ErrSessionLimit is returned when the session table is full
var ErrSessionLimit = errors.New("ipmi: session limit reached")

// SessionTable holds the live sessions, keyed by BMC session id. Sessions idle
// for longer than the table's timeout are evicted.
type SessionTable struct {
	mu       sync.Mutex
	cache    *expirable.LRU[uint32, *SessionContext]
	limit    int
	onRemove atomic.Pointer[func(*SessionContext)]
}

// NewSessionTable creates a table of at most limit sessions. onRemove is called
// for every session leaving the table, closed or expired.
//
// The eviction goroutine of the underlying LRU never exits. Close empties the
// table and detaches onRemove, so the goroutine only retains the table itself.
func NewSessionTable(limit int, timeout time.Duration, onRemove func(*SessionContext)) *SessionTable {
	t := &SessionTable{limit: limit}
	if onRemove != nil {
		t.onRemove.Store(&onRemove)
	}

	t.cache = expirable.NewLRU[uint32, *SessionContext](limit, t.evicted, timeout)

	return t
}

func (t *SessionTable) evicted(_ uint32, s *SessionContext) {
	if f := t.onRemove.Load(); f != nil {
		(*f)(s)
	}
}

// Close removes every session, calling onRemove for each, then detaches onRemove
func (t *SessionTable) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cache.Purge()
	t.onRemove.Store(nil)
}

// Add allocates a fresh, non-zero BMC session id for s and stores it
func (t *SessionTable) Add(s *SessionContext) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.limit > 0 && t.cache.Len() >= t.limit {
		return ErrSessionLimit
	}

	for {
		id := binary.LittleEndian.Uint32(randomBytes(4))
		if id == 0 || t.cache.Contains(id) {
			continue
		}
		s.BMCSessionID = id
		t.cache.Add(id, s)
		return nil
	}
}

// Lookup returns the live session with the given id, restarting its idle timer
func (t *SessionTable) Lookup(id uint32) (*SessionContext, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.cache.Get(id)
	if ok {
		t.cache.Add(id, s)
	}
	return s, ok
}

// Remove drops the session from the table
func (t *SessionTable) Remove(id uint32) bool {
	return t.cache.Remove(id)
}

// Len returns the number of live sessions
func (t *SessionTable) Len() int {
	return t.cache.Len()
}
