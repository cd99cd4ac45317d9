// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import "github.com/google/uuid"

// DeviceIdentity is the Get Device ID response of the simulated BMC
type DeviceIdentity struct {
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

// ChassisState is the power, identify and boot state of the simulated chassis
type ChassisState struct {
	PowerOn       bool
	RestorePolicy uint8
	// LastPowerEvent holds the PowerEvent bits
	LastPowerEvent uint8
	// MiscState holds the misc chassis bits, identify state included
	MiscState  uint8
	FrontPanel uint8
	BootDevice BootDevice
}

func (c *ChassisState) status() *ChassisStatusResponse {
	power := (c.RestorePolicy & 0x03) << 5
	if c.PowerOn {
		power |= SystemPower
	}
	return &ChassisStatusResponse{
		CompletionCode:    CommandCompleted,
		PowerState:        power,
		LastPowerEvent:    c.LastPowerEvent,
		State:             c.MiscState,
		FrontControlPanel: c.FrontPanel,
	}
}

// control applies a power control selector. Cycle, reset and diag interrupt
// are accepted without a state change.
func (c *ChassisState) control(ctl ChassisControl) bool {
	switch ctl {
	case ControlPowerDown, ControlPowerAcpiSoft:
		c.PowerOn = false
	case ControlPowerUp:
		c.PowerOn = true
	case ControlPowerCycle, ControlPowerHardReset, ControlPowerPulseDiag:
		return true
	default:
		return false
	}
	c.LastPowerEvent = PowerEventCommand
	return true
}

func (c *ChassisState) identify(state uint8) {
	c.MiscState = c.MiscState&^IdentifyStateMask | IdentifySupported | state<<4
}

// ChannelAuth is the Get Channel Authentication Capabilities response data
type ChannelAuth struct {
	ChannelNumber   uint8
	AuthTypeSupport uint8
	Status          uint8
	ExtCapabilities uint8
	OEMID           [3]uint8
	OEMAux          uint8
}

// State is the simulated BMC state. It is owned by a Simulator once passed
// to WithState.
type State struct {
	Device      DeviceIdentity
	Chassis     ChassisState
	ChannelAuth ChannelAuth
	GUID        [16]uint8
	// McID is the DCMI management controller id string
	McID string
	// GroupCapabilities are static PICMG and VITA responses
	GroupCapabilities map[GroupCommand][]byte
	// DCMICapabilities are keyed by capability parameter
	DCMICapabilities map[uint8][]byte
	// PowerReadings rotate, one per Get Power Reading
	PowerReadings []PowerReading
	// FRU inventory images keyed by FRU device id
	FRU map[uint8][]byte
}

// DefaultState returns a powered on BMC with a fresh system GUID
func DefaultState() *State {
	return &State{
		Device: DeviceIdentity{
			DeviceID:                0x20,
			DeviceRevision:          0x01,
			FirmwareRevision1:       0x02,
			FirmwareRevision2:       0x09,
			IPMIVersion:             0x51,
			AdditionalDeviceSupport: 0xbf,
			ManufacturerID:          OemUnknown,
			ProductID:               0x0001,
		},
		Chassis: ChassisState{
			PowerOn:        true,
			RestorePolicy:  PowerRestorePolicyPrevious,
			LastPowerEvent: PowerEventUnknown,
			MiscState:      IdentifySupported,
		},
		ChannelAuth: ChannelAuth{
			ChannelNumber: 0x01,
			AuthTypeSupport: channelExtendedCapabilities |
				AuthTypeNone.Support() | AuthTypeMD5.Support(),
			// non-null user names enabled
			Status:          0x04,
			ExtCapabilities: ExtCapabilitiesIPMIv15 | ExtCapabilitiesIPMIv20,
		},
		GUID:              uuid.New(),
		McID:              "ipmisim",
		GroupCapabilities: defaultGroupCapabilities(),
		DCMICapabilities:  defaultDCMICapabilities(),
		PowerReadings: []PowerReading{
			{Current: 220, Minimum: 180, Maximum: 260, Average: 215, Period: 1000},
		},
		FRU: map[uint8][]byte{},
	}
}
