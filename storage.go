// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import (
	"encoding/binary"
	"time"
)

const (
	fruAccessByBytes = 0x00
	// most FRU bytes a single Read FRU Data returns
	fruReadMax = 0x40
)

// SDRRepositoryInfoRequest per section 33.9
type SDRRepositoryInfoRequest struct{}

// SDRRepositoryInfoResponse per section 33.9
type SDRRepositoryInfoResponse struct {
	CompletionCode
	Version          uint8
	RecordCount      uint16
	FreeSpace        uint16
	LastAddition     uint32
	LastErase        uint32
	OperationSupport uint8
}

// LastAdditionTime returns the most recent addition timestamp
func (r *SDRRepositoryInfoResponse) LastAdditionTime() time.Time {
	return time.Unix(int64(r.LastAddition), 0).UTC()
}

// ReserveSDRRepositoryRequest per section 33.11
type ReserveSDRRepositoryRequest struct{}

// ReserveSDRRepositoryResponse per section 33.11
type ReserveSDRRepositoryResponse struct {
	CompletionCode
	ReservationID uint16
}

// GetSDRRequest per section 33.12
type GetSDRRequest struct {
	ReservationID uint16
	RecordID      uint16
	Offset        uint8
	Count         uint8
}

// GetSDRResponse per section 33.12
type GetSDRResponse struct {
	CompletionCode
	NextRecordID uint16
	Data         []uint8
}

// MarshalBinary encodes the variable length record data
func (r *GetSDRResponse) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 3, 3+len(r.Data))
	buf[0] = byte(r.CompletionCode)
	binary.LittleEndian.PutUint16(buf[1:], r.NextRecordID)
	return append(buf, r.Data...), nil
}

// UnmarshalBinary decodes the variable length record data
func (r *GetSDRResponse) UnmarshalBinary(buf []byte) error {
	if len(buf) < 3 {
		return ErrShortPacket
	}
	r.CompletionCode = CompletionCode(buf[0])
	r.NextRecordID = binary.LittleEndian.Uint16(buf[1:])
	r.Data = append([]uint8(nil), buf[3:]...)
	return nil
}

// FRUInventoryAreaInfoRequest per section 34.1
type FRUInventoryAreaInfoRequest struct {
	DeviceID uint8
}

// FRUInventoryAreaInfoResponse per section 34.1
type FRUInventoryAreaInfoResponse struct {
	CompletionCode
	AreaSize uint16
	Access   uint8
}

// ReadFRUDataRequest per section 34.2
type ReadFRUDataRequest struct {
	DeviceID uint8
	Offset   uint16
	Count    uint8
}

// ReadFRUDataResponse per section 34.2
type ReadFRUDataResponse struct {
	CompletionCode
	Count uint8
	Data  []uint8
}

// MarshalBinary encodes the variable length FRU data
func (r *ReadFRUDataResponse) MarshalBinary() ([]byte, error) {
	buf := []byte{byte(r.CompletionCode), uint8(len(r.Data))}
	return append(buf, r.Data...), nil
}

// UnmarshalBinary decodes the variable length FRU data
func (r *ReadFRUDataResponse) UnmarshalBinary(buf []byte) error {
	if len(buf) < 2 {
		return ErrShortPacket
	}
	r.CompletionCode = CompletionCode(buf[0])
	r.Count = buf[1]
	if len(buf) < 2+int(r.Count) {
		return ErrShortPacket
	}
	r.Data = append([]uint8(nil), buf[2:2+int(r.Count)]...)
	return nil
}
