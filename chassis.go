// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import "fmt"

// ChassisControl is the power control selector of a Chassis Control request
type ChassisControl uint8

// BootDevice is the boot device selector of the boot flags parameter, bits 5:2
type BootDevice uint8

// Chassis Control per section 28.3
const (
	ControlPowerDown      = ChassisControl(0x0)
	ControlPowerUp        = ChassisControl(0x1)
	ControlPowerCycle     = ChassisControl(0x2)
	ControlPowerHardReset = ChassisControl(0x3)
	ControlPowerPulseDiag = ChassisControl(0x4)
	ControlPowerAcpiSoft  = ChassisControl(0x5)
)

// Boot device selectors per section 28.13, table 28-14
const (
	BootDeviceNone         = BootDevice(0x0)
	BootDevicePxe          = BootDevice(0x1)
	BootDeviceDisk         = BootDevice(0x2)
	BootDeviceSafe         = BootDevice(0x3)
	BootDeviceDiag         = BootDevice(0x4)
	BootDeviceCdrom        = BootDevice(0x5)
	BootDeviceBios         = BootDevice(0x6)
	BootDeviceRemoteFloppy = BootDevice(0x7)
	BootDeviceRemoteCdrom  = BootDevice(0x8)
	BootDeviceRemoteDisk   = BootDevice(0xb)
	BootDeviceFloppy       = BootDevice(0xf)
)

// Current power state bits
const (
	SystemPower       = 0x1
	PowerOverload     = 0x2
	PowerInterlock    = 0x4
	MainPowerFault    = 0x8
	PowerControlFault = 0x10

	PowerRestorePolicyAlwaysOff = 0x0
	PowerRestorePolicyPrevious  = 0x1
	PowerRestorePolicyAlwaysOn  = 0x2
	PowerRestorePolicyUnknown   = 0x3
)

// Last power event bits
const (
	PowerEventUnknown   = 0x0
	PowerEventAcFailed  = 0x1
	PowerEventOverload  = 0x2
	PowerEventInterlock = 0x4
	PowerEventFault     = 0x8
	PowerEventCommand   = 0x10
)

// Misc chassis state bits
const (
	ChassisIntrusion  = 0x1
	FrontPanelLockout = 0x2
	DriveFault        = 0x4
	CoolingFanFault   = 0x8

	// bits 5:4 hold the identify state, valid when IdentifySupported is set
	IdentifyStateMask = 0x30
	IdentifySupported = 0x40
)

// Chassis identify states
const (
	IdentifyOff        = 0x0
	IdentifyTimed      = 0x1
	IdentifyIndefinite = 0x2
)

// Front panel button bits
const (
	SleepButtonDisable  = 0x80
	DiagButtonDisable   = 0x40
	ResetButtonDisable  = 0x20
	PowerButtonDisable  = 0x10
	SleepButtonDisabled = 0x08
	DiagButtonDisabled  = 0x04
	ResetButtonDisabled = 0x02
	PowerButtonDisabled = 0x01
)

// Boot option parameter selectors per section 28.13
const (
	BootParamSetInProgress = 0x00
	BootParamSvcPartSelect = 0x01
	BootParamSvcPartScan   = 0x02
	BootParamFlagValid     = 0x03
	BootParamInfoAck       = 0x04
	BootParamBootFlags     = 0x05
	BootParamInitInfo      = 0x06
	BootParamInitMbox      = 0x07

	bootParamVersion   = 0x01
	bootParamInvalid   = 0x80
	bootFlagsValid     = 0x80
	bootFlagsSize      = 5
	bootDeviceShift    = 2
	bootDeviceMask     = 0x0f
	identifyForceOn    = 0x01
	identifyDefaultSec = 15
)

// ChassisStatusRequest per section 28.2
type ChassisStatusRequest struct{}

// ChassisStatusResponse per section 28.2
type ChassisStatusResponse struct {
	CompletionCode
	PowerState        uint8
	LastPowerEvent    uint8
	State             uint8
	FrontControlPanel uint8
}

// IsSystemPowerOn reports the system power bit
func (s *ChassisStatusResponse) IsSystemPowerOn() bool {
	return (s.PowerState & SystemPower) == SystemPower
}

func (s *ChassisStatusResponse) String() string {
	if s.IsSystemPowerOn() {
		return "on"
	}
	return "off"
}

// PowerRestorePolicy returns bits 6:5 of the power state
func (s *ChassisStatusResponse) PowerRestorePolicy() uint8 {
	return (s.PowerState & 0x60) >> 5
}

// IdentifyState returns the chassis identify state, bits 5:4 of the misc state
func (s *ChassisStatusResponse) IdentifyState() uint8 {
	return (s.State & IdentifyStateMask) >> 4
}

// ChassisControlRequest per section 28.3
type ChassisControlRequest struct {
	ChassisControl
}

// ChassisControlResponse per section 28.3
type ChassisControlResponse struct {
	CompletionCode
}

// ChassisIdentifyRequest per section 28.5. Both fields are optional on the wire.
type ChassisIdentifyRequest struct {
	Interval uint8
	Force    bool
}

// MarshalBinary encodes the interval and force flag
func (r *ChassisIdentifyRequest) MarshalBinary() ([]byte, error) {
	force := uint8(0)
	if r.Force {
		force = identifyForceOn
	}
	return []byte{r.Interval, force}, nil
}

// UnmarshalBinary decodes the request, an empty request is a 15 second identify
func (r *ChassisIdentifyRequest) UnmarshalBinary(buf []byte) error {
	r.Interval = identifyDefaultSec
	r.Force = false
	if len(buf) > 0 {
		r.Interval = buf[0]
	}
	if len(buf) > 1 {
		r.Force = buf[1]&identifyForceOn != 0
	}
	return nil
}

// state returns the identify state the request leads to
func (r *ChassisIdentifyRequest) state() uint8 {
	switch {
	case r.Force:
		return IdentifyIndefinite
	case r.Interval == 0:
		return IdentifyOff
	}
	return IdentifyTimed
}

// ChassisIdentifyResponse per section 28.5
type ChassisIdentifyResponse struct {
	CompletionCode
}

// SetSystemBootOptionsRequest per section 28.12
type SetSystemBootOptionsRequest struct {
	Param uint8
	Data  []uint8
}

// MarshalBinary encodes the parameter selector and data
func (r *SetSystemBootOptionsRequest) MarshalBinary() ([]byte, error) {
	return append([]byte{r.Param}, r.Data...), nil
}

// UnmarshalBinary decodes the parameter selector and data
func (r *SetSystemBootOptionsRequest) UnmarshalBinary(buf []byte) error {
	if len(buf) == 0 {
		return ErrShortPacket
	}
	r.Param = buf[0] & 0x7f
	r.Data = append([]uint8(nil), buf[1:]...)
	return nil
}

// SetSystemBootOptionsResponse per section 28.12
type SetSystemBootOptionsResponse struct {
	CompletionCode
}

// SystemBootOptionsRequest per section 28.13
type SystemBootOptionsRequest struct {
	Param    uint8
	SetSel   uint8
	BlockSel uint8
}

// SystemBootOptionsResponse per section 28.13
type SystemBootOptionsResponse struct {
	CompletionCode
	Version uint8
	Param   uint8
	Data    []uint8
}

// MarshalBinary encodes the response
func (r *SystemBootOptionsResponse) MarshalBinary() ([]byte, error) {
	buf := []byte{uint8(r.CompletionCode), r.Version, r.Param}
	return append(buf, r.Data...), nil
}

// UnmarshalBinary decodes the response
func (r *SystemBootOptionsResponse) UnmarshalBinary(buf []byte) error {
	if len(buf) < 3 {
		return ErrShortPacket
	}
	r.CompletionCode = CompletionCode(buf[0])
	r.Version = buf[1]
	r.Param = buf[2] & 0x7f
	r.Data = append([]uint8(nil), buf[3:]...)
	return nil
}

// BootDeviceSelector returns the device of a boot flags parameter
func (r *SystemBootOptionsResponse) BootDeviceSelector() BootDevice {
	if r.Param != BootParamBootFlags || len(r.Data) < 2 {
		return BootDeviceNone
	}
	return BootDevice((r.Data[1] >> bootDeviceShift) & bootDeviceMask)
}

// bootFlags is the boot flags parameter data selecting dev for the next boot
func bootFlags(dev BootDevice) []uint8 {
	return []uint8{bootFlagsValid, uint8(dev) << bootDeviceShift, 0x00, 0x00, 0x00}
}

func (d BootDevice) String() string {
	switch d {
	case BootDeviceNone:
		return "none"
	case BootDevicePxe:
		return "pxe"
	case BootDeviceDisk:
		return "disk"
	case BootDeviceSafe:
		return "safe"
	case BootDeviceDiag:
		return "diag"
	case BootDeviceCdrom:
		return "cdrom"
	case BootDeviceBios:
		return "bios"
	case BootDeviceRemoteFloppy:
		return "remote-floppy"
	case BootDeviceRemoteCdrom:
		return "remote-cdrom"
	case BootDeviceRemoteDisk:
		return "remote-disk"
	case BootDeviceFloppy:
		return "floppy"
	}
	return fmt.Sprintf("BootDevice(%d)", uint8(d))
}

// ParseBootDevice returns the device with the given name
func ParseBootDevice(name string) (BootDevice, error) {
	for d := BootDeviceNone; d <= BootDeviceFloppy; d++ {
		if d.String() == name {
			return d, nil
		}
	}
	return BootDeviceNone, fmt.Errorf("unknown boot device: %s", name)
}

func (c ChassisControl) String() string {
	switch c {
	case ControlPowerDown:
		return "down"
	case ControlPowerUp:
		return "up"
	case ControlPowerCycle:
		return "cycle"
	case ControlPowerHardReset:
		return "reset"
	case ControlPowerPulseDiag:
		return "diag"
	case ControlPowerAcpiSoft:
		return "acpi"
	}
	return fmt.Sprintf("ChassisControl(%d)", uint8(c))
}
