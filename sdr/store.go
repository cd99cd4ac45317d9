// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

// Package sdr implements an in-memory Sensor Data Record repository with
// reservations and cyclic sensor readings.
package sdr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Store errors
var (
	ErrInvalidReservation = errors.New("sdr: invalid reservation")
	ErrRecordNotFound     = errors.New("sdr: record not found")
	ErrInvalidEntry       = errors.New("sdr: invalid entry")
)

const (
	// LastRecordID terminates the next record id chain
	LastRecordID = 0xffff
	// NoReservation is accepted by GetEntry without validation
	NoReservation = 0x0000
	// ReadAll as length reads the remainder of a record
	ReadAll = 0xff

	// SDR version 1.5 (BCD)
	repositoryVersion = 0x51
	// reserve supported
	defaultOperationSupport = 0x02

	eventMessagesEnabled = 0xc0
	thresholdsNominal    = 0xc0
	thresholdSize        = 7
)

type record struct {
	Entry
	raw          []uint8
	nextReadIdx  int
	nextRecordID uint16
}

// Store is a Sensor Data Record repository. It is safe for concurrent use.
type Store struct {
	mu           sync.Mutex
	records      []*record
	byID         map[uint16]*record
	bySensor     map[uint8]*record
	reservations map[uint16]uint32
	reservation  uint16

	freeSpace        uint16
	additionTime     uint32
	eraseTime        uint32
	operationSupport uint8
}

// Option configures a Store
type Option func(*Store)

// WithFreeSpace sets the free space reported by RepositoryInfo
func WithFreeSpace(n uint16) Option {
	return func(s *Store) {
		s.freeSpace = n
	}
}

// WithTimestamps sets the most recent addition and erase timestamps
func WithTimestamps(addition, erase time.Time) Option {
	return func(s *Store) {
		s.additionTime = uint32(addition.Unix())
		s.eraseTime = uint32(erase.Unix())
	}
}

// WithOperationSupport sets the operation support bitmap of RepositoryInfo
func WithOperationSupport(b uint8) Option {
	return func(s *Store) {
		s.operationSupport = b
	}
}

// NewStore loads entries in traversal order. Readings are converted to raw
// values once, using the conversion factors of full sensor records.
func NewStore(entries []Entry, opts ...Option) (*Store, error) {
	now := uint32(time.Now().Unix())
	s := &Store{
		byID:             make(map[uint16]*record, len(entries)),
		bySensor:         make(map[uint8]*record),
		reservations:     make(map[uint16]uint32),
		freeSpace:        0xffff,
		additionTime:     now,
		eraseTime:        now,
		operationSupport: defaultOperationSupport,
	}

	for _, opt := range opts {
		opt(s)
	}

	for i := range entries {
		e := entries[i]
		if len(e.Data) < HeaderSize {
			return nil, fmt.Errorf("%w: record %#04x is %d bytes", ErrInvalidEntry, e.ID, len(e.Data))
		}
		if e.ID == 0 {
			e.ID, _ = e.header()
		}
		if _, ok := s.byID[e.ID]; ok || e.ID == LastRecordID {
			return nil, fmt.Errorf("%w: duplicate record id %#04x", ErrInvalidEntry, e.ID)
		}

		r := &record{Entry: e}

		conv, ok := ParseConversion(e.Data)
		if !ok {
			conv = identity
		}
		for _, v := range e.Readings {
			r.raw = append(r.raw, conv.Raw(v))
		}

		if n, ok := e.SensorNumber(); ok {
			if _, dup := s.bySensor[n]; !dup {
				s.bySensor[n] = r
			}
		}

		if len(s.records) > 0 {
			s.records[len(s.records)-1].nextRecordID = e.ID
		}
		r.nextRecordID = LastRecordID

		s.records = append(s.records, r)
		s.byID[e.ID] = r
	}

	return s, nil
}

// Len returns the number of records
func (s *Store) Len() int {
	return len(s.records)
}

// RepositoryInfo returns the Get SDR Repository Info response data per section 33.9
func (s *Store) RepositoryInfo() []byte {
	buf := make([]byte, 14)
	buf[0] = repositoryVersion
	binary.LittleEndian.PutUint16(buf[1:], uint16(len(s.records)))
	binary.LittleEndian.PutUint16(buf[3:], s.freeSpace)
	binary.LittleEndian.PutUint32(buf[5:], s.additionTime)
	binary.LittleEndian.PutUint32(buf[9:], s.eraseTime)
	buf[13] = s.operationSupport
	return buf
}

// Reserve allocates a reservation id bound to session. Ids wrap at 0xffff,
// skipping NoReservation.
func (s *Store) Reserve(session uint32) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reservation++
	if s.reservation == NoReservation {
		s.reservation++
	}
	s.reservations[s.reservation] = session

	return s.reservation
}

// Release drops all reservations held by session
func (s *Store) Release(session uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, owner := range s.reservations {
		if owner == session {
			delete(s.reservations, id)
		}
	}
}

// GetEntry returns the next record id followed by length bytes of the record
// starting at offset. Record id 0x0000 addresses the first record.
func (s *Store) GetEntry(reservation uint16, session uint32, recordID uint16, offset, length uint8) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reservation != NoReservation {
		owner, ok := s.reservations[reservation]
		if !ok || owner != session {
			return nil, ErrInvalidReservation
		}
	}

	var r *record
	if recordID == 0 && len(s.records) > 0 {
		r = s.records[0]
	} else {
		r = s.byID[recordID]
	}
	if r == nil {
		return nil, ErrRecordNotFound
	}

	start := int(offset)
	if start > len(r.Data) {
		start = len(r.Data)
	}
	end := len(r.Data)
	if length != ReadAll && start+int(length) < end {
		end = start + int(length)
	}

	buf := make([]byte, 2, 2+end-start)
	binary.LittleEndian.PutUint16(buf, r.nextRecordID)
	return append(buf, r.Data[start:end]...), nil
}

// SensorReading returns the next reading of the sensor followed by the event
// message and threshold status bytes. It returns nil if power is off, the
// sensor is unknown or has no readings.
func (s *Store) SensorReading(number uint8, powerOn bool) []byte {
	if !powerOn {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.bySensor[number]
	if !ok || len(r.raw) == 0 {
		return nil
	}

	reading := r.raw[r.nextReadIdx]
	r.nextReadIdx = (r.nextReadIdx + 1) % len(r.raw)

	return []byte{reading, eventMessagesEnabled, thresholdsNominal}
}

// SensorThreshold returns an all-zero thresholds response for any sensor
// number. Thresholds are not simulated.
func (s *Store) SensorThreshold(_ uint8) []byte {
	return make([]byte, thresholdSize)
}

// Conversion returns the conversion factors of the sensor
func (s *Store) Conversion(number uint8) (Conversion, bool) {
	r, ok := s.bySensor[number]
	if !ok {
		return Conversion{}, false
	}
	if c, ok := ParseConversion(r.Data); ok {
		return c, true
	}
	return identity, true
}
