// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import (
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vmware/ipmisim/sdr"
)

// Connection properties for a Client
type Connection struct {
	Path      string
	Hostname  string
	Port      int
	Username  string
	Password  string
	Interface string
	// Timeout of a single request, 5s when zero
	Timeout time.Duration
	// Retries of a request that timed out
	Retries uint64
}

// Client provides common high level functionality around the underlying transport
type Client struct {
	transport
	retries uint64
	wait    time.Duration
}

// NewClient creates a new Client with the given Connection properties
func NewClient(c *Connection) (*Client, error) {
	t, err := newTransport(c)
	if err != nil {
		return nil, err
	}
	return &Client{
		transport: t,
		retries:   c.Retries,
		wait:      100 * time.Millisecond,
	}, nil
}

// Open a new IPMI session
func (c *Client) Open() error {
	return c.open()
}

// Close the IPMI session
func (c *Client) Close() error {
	return c.close()
}

// Send a Request and unmarshal to given Response type. Requests that time out
// are resent up to Connection.Retries times.
func (c *Client) Send(req *Request, res Response) error {
	op := func() error {
		err := c.send(req, res)
		var nerr net.Error
		if err != nil && !(errors.As(err, &nerr) && nerr.Timeout()) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.wait), c.retries)
	return backoff.Retry(op, b)
}

// DeviceID returns the Get Device ID response of the BMC
func (c *Client) DeviceID() (*DeviceIDResponse, error) {
	r := &Request{
		NetworkFunctionApp,
		CommandGetDeviceID,
		&DeviceIDRequest{},
	}
	res := &DeviceIDResponse{}
	return res, c.Send(r, res)
}

// ChassisStatus returns the current power and chassis state
func (c *Client) ChassisStatus() (*ChassisStatusResponse, error) {
	r := &Request{
		NetworkFunctionChassis,
		CommandChassisStatus,
		&ChassisStatusRequest{},
	}
	res := &ChassisStatusResponse{}
	return res, c.Send(r, res)
}

// Control sends a chassis power control command
func (c *Client) Control(ctl ChassisControl) error {
	r := &Request{
		NetworkFunctionChassis,
		CommandChassisControl,
		&ChassisControlRequest{ctl},
	}
	return c.Send(r, &ChassisControlResponse{})
}

// Identify turns on the chassis identify light for interval seconds, or
// until turned off when force is set
func (c *Client) Identify(interval uint8, force bool) error {
	r := &Request{
		NetworkFunctionChassis,
		CommandChassisIdentify,
		&ChassisIdentifyRequest{Interval: interval, Force: force},
	}
	return c.Send(r, &ChassisIdentifyResponse{})
}

func (c *Client) setBootParam(param uint8, data ...uint8) error {
	r := &Request{
		NetworkFunctionChassis,
		CommandSetSystemBootOptions,
		&SetSystemBootOptionsRequest{
			Param: param,
			Data:  data,
		},
	}
	return c.Send(r, &SetSystemBootOptionsResponse{})
}

// SetBootDevice is a wrapper around SetSystemBootOptionsRequest to configure the BootDevice
// per section 28.12 - table 28
func (c *Client) SetBootDevice(dev BootDevice) error {
	useProgress := true
	// set set-in-progress flag
	err := c.setBootParam(BootParamSetInProgress, 0x01)
	if err != nil {
		useProgress = false
	}

	err = c.setBootParam(BootParamInfoAck, 0x01, 0x01)
	if err != nil {
		if useProgress {
			// set-in-progress = set-complete
			_ = c.setBootParam(BootParamSetInProgress, 0x00)
		}
		return err
	}

	err = c.setBootParam(BootParamBootFlags, bootFlags(dev)...)
	if err == nil {
		if useProgress {
			// set-in-progress = commit-write
			_ = c.setBootParam(BootParamSetInProgress, 0x02)
		}
	}

	if useProgress {
		// set-in-progress = set-complete
		_ = c.setBootParam(BootParamSetInProgress, 0x00)
	}

	return err
}

// GetBootDevice returns the boot device selector of the boot flags parameter
func (c *Client) GetBootDevice() (BootDevice, error) {
	r := &Request{
		NetworkFunctionChassis,
		CommandGetSystemBootOptions,
		&SystemBootOptionsRequest{Param: BootParamBootFlags},
	}
	res := &SystemBootOptionsResponse{}
	if err := c.Send(r, res); err != nil {
		return 0, err
	}
	return res.BootDeviceSelector(), nil
}

// SDRRepositoryInfo returns the record count and timestamps of the SDR repository
func (c *Client) SDRRepositoryInfo() (*SDRRepositoryInfoResponse, error) {
	r := &Request{
		NetworkFunctionStorage,
		CommandGetSDRRepositoryInfo,
		&SDRRepositoryInfoRequest{},
	}
	res := &SDRRepositoryInfoResponse{}
	return res, c.Send(r, res)
}

func (c *Client) reserveSDRRepository() (uint16, error) {
	r := &Request{
		NetworkFunctionStorage,
		CommandReserveSDRRepository,
		&ReserveSDRRepositoryRequest{},
	}
	res := &ReserveSDRRepositoryResponse{}
	return res.ReservationID, c.Send(r, res)
}

// sdrChunk is the number of record bytes read per Get SDR request
const sdrChunk = 16

// ListSDR reads every record of the SDR repository, header included
func (c *Client) ListSDR() ([][]byte, error) {
	resv, err := c.reserveSDRRepository()
	if err != nil {
		return nil, err
	}

	var records [][]byte
	id := uint16(0)

	for id != sdr.LastRecordID {
		var record []byte
		next := id

		// the header carries the length of the record body
		for size := sdr.HeaderSize; len(record) < size; {
			n := size - len(record)
			if n > sdrChunk {
				n = sdrChunk
			}

			r := &Request{
				NetworkFunctionStorage,
				CommandGetSDR,
				&GetSDRRequest{
					ReservationID: resv,
					RecordID:      id,
					Offset:        uint8(len(record)),
					Count:         uint8(n),
				},
			}
			res := &GetSDRResponse{}
			if err := c.Send(r, res); err != nil {
				return nil, err
			}
			if len(res.Data) == 0 {
				return nil, ErrShortPacket
			}

			record = append(record, res.Data...)
			next = res.NextRecordID
			if len(record) >= sdr.HeaderSize {
				size = sdr.HeaderSize + int(record[sdr.HeaderSize-1])
			}
		}

		records = append(records, record)
		id = next
	}

	return records, nil
}

// GetSensorReading returns the raw reading of a sensor
func (c *Client) GetSensorReading(number uint8) (*SensorReadingResponse, error) {
	r := &Request{
		NetworkFunctionSensorEvent,
		CommandGetSensorReading,
		&SensorReadingRequest{SensorNumber: number},
	}
	res := &SensorReadingResponse{}
	return res, c.Send(r, res)
}

// PowerReading returns the DCMI system power statistics
func (c *Client) PowerReading() (*PowerReadingResponse, error) {
	r := &Request{
		NetworkFunctionGroupExtension,
		CommandGetPowerReading,
		&PowerReadingRequest{
			GroupExtensionID: SignatureDCMI,
			Mode:             dcmiPowerModeSystem,
		},
	}
	res := &PowerReadingResponse{}
	return res, c.Send(r, res)
}

// McID returns the DCMI management controller id string
func (c *Client) McID() (string, error) {
	var id string

	for {
		r := &Request{
			NetworkFunctionGroupExtension,
			CommandGetMcIDString,
			&GetMcIDStringRequest{
				GroupExtensionID: SignatureDCMI,
				Offset:           uint8(len(id)),
				NumBytes:         mcIDChunkLen,
			},
		}
		res := &GetMcIDStringResponse{}
		if err := c.Send(r, res); err != nil {
			return "", err
		}

		id += res.Data
		if len(res.Data) == 0 || len(id) >= int(res.NumBytes) {
			return id, nil
		}
	}
}

// SetMcID writes the DCMI management controller id string
func (c *Client) SetMcID(id string) error {
	if len(id) > MaxMcIDStringLen {
		return ErrParamRange
	}

	// the trailing NUL terminates the string
	buf := append([]byte(id), 0)
	if len(buf) > MaxMcIDStringLen {
		buf = buf[:MaxMcIDStringLen]
	}

	for off := 0; off < len(buf); off += mcIDChunkLen {
		end := off + mcIDChunkLen
		if end > len(buf) {
			end = len(buf)
		}
		r := &Request{
			NetworkFunctionGroupExtension,
			CommandSetMcIDString,
			&SetMcIDStringRequest{
				GroupExtensionID: SignatureDCMI,
				Offset:           uint8(off),
				NumBytes:         uint8(end - off),
				Data:             string(buf[off:end]),
			},
		}
		if err := c.Send(r, &SetMcIDStringResponse{}); err != nil {
			return err
		}
	}

	return nil
}
