// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import "strings"

const (
	// MaxMcIDStringLen is the longest management controller id string
	MaxMcIDStringLen = 64
	// mcIDChunkLen is the most a single get or set carries
	mcIDChunkLen = 16

	dcmiMajorVersion = 0x01
	dcmiMinorVersion = 0x05
	dcmiRevision     = 0x02

	// power measurement is active
	dcmiPowerStateActive = 0x40
	dcmiPowerModeSystem  = 0x01
)

// DCMI capability parameters per DCMI section 6.1.1
const (
	DCMICapSupportedCapabilities = uint8(0x01)
	DCMICapPlatformAttributes    = uint8(0x02)
	DCMICapManageabilityAccess   = uint8(0x03)
	DCMICapEnhancedPowerStats    = uint8(0x05)
)

// GetMcIDStringRequest per DCMI section 6.4.6.1
type GetMcIDStringRequest struct {
	GroupExtensionID uint8
	Offset           uint8
	NumBytes         uint8
}

// GetMcIDStringResponse per DCMI section 6.4.6.1
type GetMcIDStringResponse struct {
	CompletionCode
	GroupExtensionID uint8
	// NumBytes is the total length of the id string
	NumBytes uint8
	Data     string
}

// MarshalBinary encodes the variable length Data
func (r *GetMcIDStringResponse) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 3+len(r.Data))
	buf[0] = byte(r.CompletionCode)
	buf[1] = r.GroupExtensionID
	buf[2] = r.NumBytes
	copy(buf[3:], r.Data)
	return buf, nil
}

// UnmarshalBinary decodes the variable length Data, trimming NUL padding
func (r *GetMcIDStringResponse) UnmarshalBinary(buf []byte) error {
	if len(buf) < 3 {
		return ErrShortPacket
	}
	r.CompletionCode = CompletionCode(buf[0])
	r.GroupExtensionID = buf[1]
	r.NumBytes = buf[2]
	r.Data = strings.TrimRight(string(buf[3:]), "\000")
	return nil
}

// SetMcIDStringRequest per DCMI section 6.4.6.2
type SetMcIDStringRequest struct {
	GroupExtensionID uint8
	Offset           uint8
	NumBytes         uint8
	Data             string
}

// MarshalBinary encodes Data, NUL padded to NumBytes
func (r *SetMcIDStringRequest) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 3+int(r.NumBytes))
	buf[0] = r.GroupExtensionID
	buf[1] = r.Offset
	buf[2] = r.NumBytes
	copy(buf[3:], r.Data)
	return buf, nil
}

// UnmarshalBinary decodes the variable length Data
func (r *SetMcIDStringRequest) UnmarshalBinary(buf []byte) error {
	if len(buf) < 3 {
		return ErrShortPacket
	}
	r.GroupExtensionID = buf[0]
	r.Offset = buf[1]
	r.NumBytes = buf[2]
	if len(buf) < 3+int(r.NumBytes) {
		return ErrShortPacket
	}
	r.Data = string(buf[3 : 3+int(r.NumBytes)])
	return nil
}

// SetMcIDStringResponse per DCMI section 6.4.6.2
type SetMcIDStringResponse struct {
	CompletionCode
	GroupExtensionID  uint8
	LastOffsetWritten uint8
}

// DCMICapabilitiesRequest per DCMI section 6.1.1
type DCMICapabilitiesRequest struct {
	GroupExtensionID uint8
	Param            uint8
}

// DCMICapabilitiesResponse per DCMI section 6.1.1
type DCMICapabilitiesResponse struct {
	CompletionCode
	GroupExtensionID uint8
	MajorVersion     uint8
	MinorVersion     uint8
	Revision         uint8
	Data             []uint8
}

// MarshalBinary encodes the variable length parameter data
func (r *DCMICapabilitiesResponse) MarshalBinary() ([]byte, error) {
	buf := []byte{byte(r.CompletionCode), r.GroupExtensionID, r.MajorVersion, r.MinorVersion, r.Revision}
	return append(buf, r.Data...), nil
}

// UnmarshalBinary decodes the variable length parameter data
func (r *DCMICapabilitiesResponse) UnmarshalBinary(buf []byte) error {
	if len(buf) < 5 {
		return ErrShortPacket
	}
	r.CompletionCode = CompletionCode(buf[0])
	r.GroupExtensionID = buf[1]
	r.MajorVersion = buf[2]
	r.MinorVersion = buf[3]
	r.Revision = buf[4]
	r.Data = append([]uint8(nil), buf[5:]...)
	return nil
}

// PowerReadingRequest per DCMI section 6.6.1
type PowerReadingRequest struct {
	GroupExtensionID uint8
	Mode             uint8
	ModeAttributes   uint8
	Reserved         uint8
}

// PowerReadingResponse per DCMI section 6.6.1
type PowerReadingResponse struct {
	CompletionCode
	GroupExtensionID uint8
	Current          uint16
	Minimum          uint16
	Maximum          uint16
	Average          uint16
	Timestamp        uint32
	Period           uint32
	State            uint8
}

// Active reports whether power measurement is active
func (r *PowerReadingResponse) Active() bool {
	return r.State&dcmiPowerStateActive != 0
}

// PowerReading is one canned DCMI power reading, in watts
type PowerReading struct {
	Current uint16 `yaml:"current"`
	Minimum uint16 `yaml:"minimum"`
	Maximum uint16 `yaml:"maximum"`
	Average uint16 `yaml:"average"`
	// Period is the sampling period in milliseconds
	Period uint32 `yaml:"period"`
}

func (p PowerReading) response(ts uint32) *PowerReadingResponse {
	return &PowerReadingResponse{
		CompletionCode:   CommandCompleted,
		GroupExtensionID: SignatureDCMI,
		Current:          p.Current,
		Minimum:          p.Minimum,
		Maximum:          p.Maximum,
		Average:          p.Average,
		Timestamp:        ts,
		Period:           p.Period,
		State:            dcmiPowerStateActive,
	}
}

// defaultDCMICapabilities are the parameter blobs of Get DCMI Capabilities Info
func defaultDCMICapabilities() map[uint8][]byte {
	return map[uint8][]byte{
		// power management, no optional platform capabilities
		DCMICapSupportedCapabilities: {0x00, 0x01, 0x07},
		// SEL overwrite, 0x0040 entries, temperature sampling 1s
		DCMICapPlatformAttributes: {0x40, 0x80, 0x00, 0x00, 0x01},
		// primary LAN channel 1
		DCMICapManageabilityAccess: {0x01, 0xff, 0xff},
		DCMICapEnhancedPowerStats:  {0x01, 0x00, 0x00},
	}
}
