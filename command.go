// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import (
	"encoding/binary"
	"fmt"
)

// NetworkFunction identifies the functional class of an IPMI message
type NetworkFunction uint8

// Network Function Codes per section 5.1
const (
	NetworkFunctionChassis        = NetworkFunction(0x00)
	NetworkFunctionSensorEvent    = NetworkFunction(0x04)
	NetworkFunctionApp            = NetworkFunction(0x06)
	NetworkFunctionStorage        = NetworkFunction(0x0a)
	NetworkFunctionGroupExtension = NetworkFunction(0x2c)
)

// Group extension signatures, the first data byte of netfn 0x2c requests
const (
	SignaturePICMG = uint8(0x00)
	SignatureVITA  = uint8(0x03)
	SignatureDCMI  = uint8(0xdc)
)

// Command fields on an IPMI message
type Command uint8

// Command Number Assignments (table G-1)
const (
	CommandGetDeviceID              = Command(0x01)
	CommandGetSystemGUID            = Command(0x37)
	CommandGetAuthCapabilities      = Command(0x38)
	CommandGetSessionChallenge      = Command(0x39)
	CommandActivateSession          = Command(0x3a)
	CommandSetSessionPrivilegeLevel = Command(0x3b)
	CommandCloseSession             = Command(0x3c)
	CommandSetUserName              = Command(0x45)
	CommandGetUserName              = Command(0x46)

	CommandChassisStatus        = Command(0x01)
	CommandChassisControl       = Command(0x02)
	CommandChassisIdentify      = Command(0x04)
	CommandSetSystemBootOptions = Command(0x08)
	CommandGetSystemBootOptions = Command(0x09)

	CommandGetFRUInventoryAreaInfo = Command(0x10)
	CommandReadFRUData             = Command(0x11)
	CommandGetSDRRepositoryInfo    = Command(0x20)
	CommandReserveSDRRepository    = Command(0x22)
	CommandGetSDR                  = Command(0x23)

	CommandGetSensorThresholds = Command(0x27)
	CommandGetSensorReading    = Command(0x2d)
)

// Group extension commands, qualified by signature
const (
	CommandGetPICMGProperties           = Command(0x00)
	CommandGetTargetUpgradeCapabilities = Command(0x2e)
	CommandGetVSOCapabilities           = Command(0x00)
	CommandGetDCMICapabilities          = Command(0x01)
	CommandGetPowerReading              = Command(0x02)
	CommandGetMcIDString                = Command(0x09)
	CommandSetMcIDString                = Command(0x0a)
)

// AuthType of the IPMI v1.5 session header per section 13.6
type AuthType uint8

// Authentication types
const (
	AuthTypeNone     = AuthType(0x00)
	AuthTypeMD2      = AuthType(0x01)
	AuthTypeMD5      = AuthType(0x02)
	AuthTypePassword = AuthType(0x04)
	AuthTypeOEM      = AuthType(0x05)
	AuthTypeRMCPPlus = AuthType(0x06)
)

// Support returns the AuthTypeSupport bit of t
func (t AuthType) Support() uint8 {
	return 1 << t
}

func (t AuthType) String() string {
	switch t {
	case AuthTypeNone:
		return "none"
	case AuthTypeMD2:
		return "md2"
	case AuthTypeMD5:
		return "md5"
	case AuthTypePassword:
		return "password"
	case AuthTypeOEM:
		return "oem"
	case AuthTypeRMCPPlus:
		return "rmcp+"
	}
	return fmt.Sprintf("AuthType(%d)", uint8(t))
}

// Privilege levels per section 6.8
const (
	PrivLevelNone     = uint8(0x00)
	PrivLevelCallback = uint8(0x01)
	PrivLevelUser     = uint8(0x02)
	PrivLevelOperator = uint8(0x03)
	PrivLevelAdmin    = uint8(0x04)
	PrivLevelOEM      = uint8(0x05)
)

// Request structure
type Request struct {
	NetworkFunction
	Command
	Data interface{}
}

// Response to an IPMI request must include at least a CompletionCode
type Response interface {
	Code() uint8
}

// Handler processes a request message. A nil Response sends no reply.
type Handler func(*Message) Response

// DeviceIDRequest per section 20.1
type DeviceIDRequest struct{}

// DeviceIDResponse per section 20.1
type DeviceIDResponse struct {
	CompletionCode
	DeviceID                uint8
	DeviceRevision          uint8
	FirmwareRevision1       uint8
	FirmwareRevision2       uint8
	IPMIVersion             uint8
	AdditionalDeviceSupport uint8
	ManufacturerID          OemID
	ProductID               uint16
	AuxFirmwareRevision     [4]uint8
}

// MarshalBinary encodes the 3 byte manufacturer id
func (r *DeviceIDResponse) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 16)
	buf[0] = byte(r.CompletionCode)
	buf[1] = r.DeviceID
	buf[2] = r.DeviceRevision
	buf[3] = r.FirmwareRevision1
	buf[4] = r.FirmwareRevision2
	buf[5] = r.IPMIVersion
	buf[6] = r.AdditionalDeviceSupport
	putUint24(buf[7:], uint32(r.ManufacturerID))
	binary.LittleEndian.PutUint16(buf[10:], r.ProductID)
	copy(buf[12:], r.AuxFirmwareRevision[:])
	return buf, nil
}

// UnmarshalBinary decodes the response, the aux firmware revision is optional
func (r *DeviceIDResponse) UnmarshalBinary(buf []byte) error {
	if len(buf) < 12 {
		return ErrShortPacket
	}
	r.CompletionCode = CompletionCode(buf[0])
	r.DeviceID = buf[1]
	r.DeviceRevision = buf[2]
	r.FirmwareRevision1 = buf[3]
	r.FirmwareRevision2 = buf[4]
	r.IPMIVersion = buf[5]
	r.AdditionalDeviceSupport = buf[6]
	r.ManufacturerID = OemID(uint24(buf[7:]))
	r.ProductID = binary.LittleEndian.Uint16(buf[10:])
	copy(r.AuxFirmwareRevision[:], buf[12:])
	return nil
}

// SystemGUIDRequest per section 22.14
type SystemGUIDRequest struct{}

// SystemGUIDResponse per section 22.14
type SystemGUIDResponse struct {
	CompletionCode
	GUID [16]uint8
}

// AuthCapabilitiesRequest per section 22.13
type AuthCapabilitiesRequest struct {
	ChannelNumber uint8
	PrivLevel     uint8
}

// AuthCapabilitiesResponse per section 22.13
type AuthCapabilitiesResponse struct {
	CompletionCode
	ChannelNumber   uint8
	AuthTypeSupport uint8
	Status          uint8
	ExtCapabilities uint8
	OEMID           [3]uint8
	OEMAux          uint8
}

// Channel authentication capability bits
const (
	// requested in ChannelNumber and reported in AuthTypeSupport
	channelExtendedCapabilities = 0x80
	channelCurrent              = 0x0e

	ExtCapabilitiesIPMIv15 = 0x01
	ExtCapabilitiesIPMIv20 = 0x02
)

// SessionChallengeRequest per section 22.16
type SessionChallengeRequest struct {
	AuthType
	Username [16]uint8
}

// SessionChallengeResponse per section 22.16
type SessionChallengeResponse struct {
	CompletionCode
	TemporarySessionID uint32
	Challenge          [16]uint8
}

// ActivateSessionRequest per section 22.17
type ActivateSessionRequest struct {
	AuthType
	PrivLevel uint8
	AuthCode  [16]uint8
	InSeq     uint32
}

// ActivateSessionResponse per section 22.17
type ActivateSessionResponse struct {
	CompletionCode
	AuthType
	SessionID  uint32
	InboundSeq uint32
	MaxPriv    uint8
}

// SessionPrivilegeLevelRequest per section 22.18
type SessionPrivilegeLevelRequest struct {
	PrivLevel uint8
}

// SessionPrivilegeLevelResponse per section 22.18
type SessionPrivilegeLevelResponse struct {
	CompletionCode
	NewPrivilegeLevel uint8
}

// CloseSessionRequest per section 22.19
type CloseSessionRequest struct {
	SessionID uint32
}

// CloseSessionResponse per section 22.19
type CloseSessionResponse struct {
	CompletionCode
}

func putUint24(b []byte, v uint32) {
	b[0] = uint8(v)
	b[1] = uint8(v >> 8)
	b[2] = uint8(v >> 16)
}

func uint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}
