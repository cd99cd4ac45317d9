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
	"encoding/binary"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmware/ipmisim/sdr"
)

// testFullSensorRecord builds a full sensor record with M = 1, so raw
// readings equal their unit values
func testFullSensorRecord(id uint16, number uint8) []byte {
	data := make([]byte, 48)
	binary.LittleEndian.PutUint16(data, id)
	data[2] = 0x51
	data[3] = sdr.RecordTypeFullSensor
	data[4] = uint8(len(data) - sdr.HeaderSize)
	data[7] = number
	data[24] = 1
	return data
}

// testMessage encodes an IPMI request message, the first data byte of group
// extension requests being the signature
func testMessage(netfn NetworkFunction, cmd Command, data ...uint8) []byte {
	m := &Message{
		ipmiHeader: ipmiHeader{
			RsAddr:     bmcSlaveAddr,
			NetFnRsLUN: uint8(netfn) << 2,
			RqAddr:     remoteSWID,
			RqSeq:      0x04,
			Command:    cmd,
		},
		Data: data,
	}
	if m.hasSignature() {
		m.Signature = data[0]
		m.Data = data[1:]
	}
	return m.toBytes()
}

// testPacket15 wraps payload in a v1.5 session header, MD5 authenticated
// when sid is set
func testPacket15(password string, sid, seq uint32, payload []byte) []byte {
	h := &sessionHeader15{
		SessionID:     sid,
		Sequence:      seq,
		PayloadLength: uint8(len(payload)),
	}
	if sid != 0 {
		h.AuthType = AuthTypeMD5
		h.AuthCode = md5AuthCode(padPassword([]byte(password)), sid, payload, seq)
	}
	return append(h.toBytes(), payload...)
}

// testPacketNone encodes payload in an unauthenticated v1.5 header for session sid
func testPacketNone(sid uint32, payload []byte) []byte {
	h := &sessionHeader15{
		AuthType:      AuthTypeNone,
		SessionID:     sid,
		PayloadLength: uint8(len(payload)),
	}
	return append(h.toBytes(), payload...)
}

// handle sends a sessionless request and returns the response message
func handle(t *testing.T, s *Simulator, netfn NetworkFunction, cmd Command, data ...uint8) *Message {
	t.Helper()
	return handleIn(t, s, 0, netfn, cmd, data...)
}

// handleIn sends a request on an MD5 session and returns the response message
func handleIn(t *testing.T, s *Simulator, sid uint32, netfn NetworkFunction, cmd Command, data ...uint8) *Message {
	t.Helper()

	buf, err := s.Handle(testPacket15(string(s.password), sid, 0, testMessage(netfn, cmd, data...)))
	require.NoError(t, err)
	require.NotNil(t, buf)

	_, payload, err := sessionHeader15FromBytes(buf)
	require.NoError(t, err)
	m, err := messageFromBytes(payload)
	require.NoError(t, err)
	assert.Equal(t, netfn+1, m.NetFn())
	assert.Equal(t, cmd, m.Command)

	return m
}

// activate opens an MD5 session over Handle and returns its id
func activate(t *testing.T, s *Simulator) uint32 {
	t.Helper()

	username := make([]byte, 16)
	copy(username, s.users[LoginUserID])
	m := handle(t, s, NetworkFunctionApp, CommandGetSessionChallenge, append([]byte{uint8(AuthTypeMD5)}, username...)...)
	challenge := &SessionChallengeResponse{}
	require.NoError(t, m.Response(challenge))

	data := []byte{uint8(AuthTypeMD5), PrivLevelAdmin}
	data = append(data, challenge.Challenge[:]...)
	data = append(data, 1, 0, 0, 0)
	m = handleIn(t, s, challenge.TemporarySessionID, NetworkFunctionApp, CommandActivateSession, data...)
	res := &ActivateSessionResponse{}
	require.NoError(t, m.Response(res))
	require.Equal(t, challenge.TemporarySessionID, res.SessionID)

	return res.SessionID
}

func TestSimulator(t *testing.T) {
	s := newTestSimulator(t)

	c := s.NewConnection()
	c.Timeout = time.Second
	client, err := NewClient(c)
	assert.NoError(t, err)
	err = client.Open()
	assert.NoError(t, err)

	for _, cmd := range []Command{CommandChassisControl, CommandSetSystemBootOptions} {
		s.SetHandler(NetworkFunctionChassis, cmd, func(*Message) Response {
			return ErrUnspecified
		})
	}

	err = client.SetBootDevice(BootDevicePxe)
	assert.Error(t, err)

	err = client.Control(ControlPowerCycle)
	assert.Error(t, err)

	var calledControl, calledOptions atomic.Bool

	s.SetHandler(NetworkFunctionChassis, CommandChassisControl, func(m *Message) Response {
		calledControl.Store(true)
		assert.Equal(t, c.Username, string(m.Session.Username))
		return CommandCompleted
	})

	s.SetHandler(NetworkFunctionChassis, CommandSetSystemBootOptions, func(m *Message) Response {
		calledOptions.Store(true)
		assert.Equal(t, c.Username, string(m.Session.Username))
		return CommandCompleted
	})

	err = client.SetBootDevice(BootDevicePxe)
	assert.NoError(t, err)
	assert.True(t, calledOptions.Load())
	err = client.Control(ControlPowerCycle)
	assert.NoError(t, err)
	assert.True(t, calledControl.Load())

	client.Close()
}

func TestUnsupportedCommand(t *testing.T) {
	req := testPacket15("", 0, 0, testMessage(NetworkFunction(0x30), Command(0x01)))

	s := NewSimulator(net.UDPAddr{})
	buf, err := s.Handle(req)
	assert.ErrorIs(t, err, ErrUnsupportedCommand)
	assert.Nil(t, buf)

	s = NewSimulator(net.UDPAddr{}, WithInvalidCommandResponses())
	m := handle(t, s, NetworkFunction(0x30), Command(0x01))
	assert.Equal(t, ErrInvalidCommand, m.CompletionCode())

	// unknown group extension signatures are unsupported too
	m = handle(t, s, NetworkFunctionGroupExtension, CommandGetDCMICapabilities, 0x42, 0x01)
	assert.Equal(t, ErrInvalidCommand, m.CompletionCode())

	// a handler without a response stays silent
	s.SetHandler(NetworkFunctionApp, CommandGetDeviceID, func(*Message) Response { return nil })
	buf, err = s.Handle(testPacket15("", 0, 0, testMessage(NetworkFunctionApp, CommandGetDeviceID)))
	assert.NoError(t, err)
	assert.Nil(t, buf)
}

func TestDatagram(t *testing.T) {
	s := NewSimulator(net.UDPAddr{})

	ping := []byte{0x06, 0x00, 0xff, 0x06, 0x00, 0x00, 0x11, 0xbe, 0x80, 0x17, 0x00, 0x00}
	pong := s.datagram(ping)
	require.Len(t, pong, rmcpHeaderSize+asfHeaderSize+asfPongSize)
	assert.Equal(t, uint8(asfMessageTypePong), pong[8])
	assert.Equal(t, uint8(0x17), pong[9])
	assert.Equal(t, uint8(asfEntitiesIPMI), pong[20])

	req := newRMCPHeader(rmcpClassIPMI).wrap(testPacket15("", 0, 0, testMessage(NetworkFunctionApp, CommandGetDeviceID)))
	res := s.datagram(req)
	require.NotNil(t, res)
	assert.Equal(t, uint8(rmcpClassIPMI), res[3])

	tests := []struct {
		should string
		buf    []byte
	}{
		{"should drop short datagrams", []byte{0x06, 0x00}},
		{"should drop unsupported classes", []byte{0x06, 0x00, 0xff, 0x08, 0x00}},
		{"should drop unsupported auth types", []byte{0x06, 0x00, 0xff, 0x07, 0x01, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"should drop truncated ipmi messages", []byte{0x06, 0x00, 0xff, 0x07, 0x00, 0, 0, 0, 0, 0, 0, 0, 0, 0x03}},
	}

	for _, test := range tests {
		assert.Nil(t, s.datagram(test.buf), test.should)
	}
}

func TestSessionLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewSimulator(net.UDPAddr{}, WithMetrics(NewMetrics(reg)))

	sid := activate(t, s)
	assert.Equal(t, 1, s.Sessions())
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.SessionsActive))

	// privilege level query
	m := handleIn(t, s, sid, NetworkFunctionApp, CommandSetSessionPrivilegeLevel, PrivLevelNone)
	priv := &SessionPrivilegeLevelResponse{}
	assert.NoError(t, m.Response(priv))
	assert.Equal(t, PrivLevelAdmin, priv.NewPrivilegeLevel)

	m = handleIn(t, s, sid, NetworkFunctionApp, CommandSetSessionPrivilegeLevel, PrivLevelOEM)
	assert.Equal(t, ErrInvalidPacket, m.CompletionCode())

	// wrong password
	_, err := s.Handle(testPacket15("wrong", sid, 0, testMessage(NetworkFunctionApp, CommandGetDeviceID)))
	assert.ErrorIs(t, err, ErrIntegrity)

	// closing an unknown session
	m = handleIn(t, s, sid, NetworkFunctionApp, CommandCloseSession, 0x01, 0x02, 0x03, 0x04)
	assert.Equal(t, ErrInvalidSessionID, m.CompletionCode())

	sidBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(sidBytes, sid)
	m = handleIn(t, s, sid, NetworkFunctionApp, CommandCloseSession, sidBytes...)
	assert.Equal(t, CommandCompleted, m.CompletionCode())
	assert.Equal(t, 0, s.Sessions())
	assert.Equal(t, float64(0), testutil.ToFloat64(s.metrics.SessionsActive))

	_, err = s.Handle(testPacket15(string(s.password), sid, 0, testMessage(NetworkFunctionApp, CommandGetDeviceID)))
	assert.ErrorIs(t, err, ErrUnknownSession)

	assert.Equal(t, float64(2), testutil.ToFloat64(s.metrics.Packets.WithLabelValues(resultDropped)))
	assert.Equal(t, float64(2), testutil.ToFloat64(s.metrics.Commands.WithLabelValues("0x06", "0x3c")))
}

func TestSessionActivation(t *testing.T) {
	s := NewSimulator(net.UDPAddr{}, WithSessionLimit(1))

	username := make([]byte, 16)
	copy(username, "nobody")
	m := handle(t, s, NetworkFunctionApp, CommandGetSessionChallenge, append([]byte{uint8(AuthTypeMD5)}, username...)...)
	assert.Equal(t, ErrInvalidUsername, m.CompletionCode())

	copy(username, defaultUsername+"\000")
	m = handle(t, s, NetworkFunctionApp, CommandGetSessionChallenge, append([]byte{uint8(AuthTypePassword)}, username...)...)
	assert.Equal(t, ErrInvalidPacket, m.CompletionCode())

	m = handle(t, s, NetworkFunctionApp, CommandGetSessionChallenge, append([]byte{uint8(AuthTypeMD5)}, username...)...)
	challenge := &SessionChallengeResponse{}
	require.NoError(t, m.Response(challenge))
	sid := challenge.TemporarySessionID

	// the table is full
	m = handle(t, s, NetworkFunctionApp, CommandGetSessionChallenge, append([]byte{uint8(AuthTypeMD5)}, username...)...)
	assert.Equal(t, ErrNodeBusy, m.CompletionCode())

	// only activation is allowed before the session is active
	_, err := s.Handle(testPacket15(defaultPassword, sid, 0, testMessage(NetworkFunctionApp, CommandGetDeviceID)))
	assert.ErrorIs(t, err, ErrUnknownSession)

	bad := []byte{uint8(AuthTypeMD5), PrivLevelAdmin}
	bad = append(bad, make([]byte, 16)...)
	bad = append(bad, 1, 0, 0, 0)
	m = handleIn(t, s, sid, NetworkFunctionApp, CommandActivateSession, bad...)
	assert.Equal(t, ErrInvalidPacket, m.CompletionCode())

	good := []byte{uint8(AuthTypeMD5), PrivLevelNone}
	good = append(good, challenge.Challenge[:]...)
	good = append(good, 1, 0, 0, 0)

	// the challenge alone does not activate an MD5 session
	_, err = s.Handle(testPacketNone(sid, testMessage(NetworkFunctionApp, CommandActivateSession, good...)))
	assert.ErrorIs(t, err, ErrIntegrity)

	m = handleIn(t, s, sid, NetworkFunctionApp, CommandActivateSession, good...)
	res := &ActivateSessionResponse{}
	require.NoError(t, m.Response(res))
	assert.Equal(t, PrivLevelAdmin, res.MaxPriv)
	assert.NotZero(t, res.InboundSeq)

	// nor does an active one accept unauthenticated commands
	_, err = s.Handle(testPacketNone(sid, testMessage(NetworkFunctionChassis, CommandChassisControl, uint8(ControlPowerDown))))
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.True(t, s.state.Chassis.PowerOn)

	// a second activation is refused
	m = handleIn(t, s, sid, NetworkFunctionApp, CommandActivateSession, good...)
	assert.Equal(t, ErrInvalidSessionID, m.CompletionCode())
}

func TestSessionTimeout(t *testing.T) {
	s := NewSimulator(net.UDPAddr{}, WithSessionTimeout(50*time.Millisecond))

	sid := activate(t, s)
	assert.Equal(t, 1, s.Sessions())

	// polling Lookup would keep the session alive
	assert.Eventually(t, func() bool {
		return s.Sessions() == 0
	}, time.Second, 10*time.Millisecond)

	_, err := s.Handle(testPacket15(defaultPassword, sid, 0, testMessage(NetworkFunctionApp, CommandGetDeviceID)))
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestResponseSequence(t *testing.T) {
	s := NewSimulator(net.UDPAddr{})
	sid := activate(t, s)

	tests := []struct {
		should string
		seq    uint32
		expect uint32
	}{
		{"should keep a zero sequence", 0, 0},
		{"should increment the sequence", 41, 42},
		{"should wrap the sequence", 0xffffffff, 0},
	}

	for _, test := range tests {
		buf, err := s.Handle(testPacket15(defaultPassword, sid, test.seq, testMessage(NetworkFunctionApp, CommandGetDeviceID)))
		require.NoError(t, err, test.should)
		h, _, err := sessionHeader15FromBytes(buf)
		require.NoError(t, err, test.should)
		assert.Equal(t, test.expect, h.Sequence, test.should)
		assert.Equal(t, sid, h.SessionID, test.should)
		assert.Equal(t, AuthTypeMD5, h.AuthType, test.should)
	}
}

func TestAppCommands(t *testing.T) {
	state := DefaultState()
	state.Device.ManufacturerID = OemSupermicro
	s := NewSimulator(net.UDPAddr{}, WithState(state))

	m := handle(t, s, NetworkFunctionApp, CommandGetDeviceID)
	dir := &DeviceIDResponse{}
	require.NoError(t, m.Response(dir))
	assert.Equal(t, OemSupermicro, dir.ManufacturerID)
	assert.Equal(t, uint8(0x51), dir.IPMIVersion)

	m = handle(t, s, NetworkFunctionApp, CommandGetSystemGUID)
	guid := &SystemGUIDResponse{}
	require.NoError(t, m.Response(guid))
	assert.Equal(t, state.GUID, guid.GUID)

	tests := []struct {
		should  string
		channel uint8
		support uint8
		ext     uint8
	}{
		{"should report v1.5 capabilities", channelCurrent, AuthTypeNone.Support() | AuthTypeMD5.Support(), 0},
		{"should report v2.0 capabilities", channelExtendedCapabilities | channelCurrent, 0x80 | AuthTypeNone.Support() | AuthTypeMD5.Support(), ExtCapabilitiesIPMIv15 | ExtCapabilitiesIPMIv20},
	}

	for _, test := range tests {
		m = handle(t, s, NetworkFunctionApp, CommandGetAuthCapabilities, test.channel, PrivLevelAdmin)
		res := &AuthCapabilitiesResponse{}
		require.NoError(t, m.Response(res), test.should)
		assert.Equal(t, test.support, res.AuthTypeSupport, test.should)
		assert.Equal(t, test.ext, res.ExtCapabilities, test.should)
	}

	m = handle(t, s, NetworkFunctionApp, CommandGetAuthCapabilities)
	assert.Equal(t, ErrShortPacket, m.CompletionCode())
}

func TestUserNames(t *testing.T) {
	s := NewSimulator(net.UDPAddr{})

	name := func(id uint8, username string) []byte {
		buf := make([]byte, 1+MaxUsernameLen)
		buf[0] = id
		copy(buf[1:], username)
		return buf
	}

	tests := []struct {
		should string
		data   []byte
		expect CompletionCode
	}{
		{"should set a user name", name(3, "operator"), CommandCompleted},
		{"should rename the login user", name(LoginUserID, "root"), CommandCompleted},
		{"should refuse the anonymous user", name(1, "anon"), ErrParamRange},
		{"should refuse user ids beyond the table", name(MaxUsers+1, "x"), ErrParamRange},
		{"should refuse short requests", []byte{3, 'x'}, ErrShortPacket},
	}

	for _, test := range tests {
		m := handle(t, s, NetworkFunctionApp, CommandSetUserName, test.data...)
		assert.Equal(t, test.expect, m.CompletionCode(), test.should)
	}

	m := handle(t, s, NetworkFunctionApp, CommandGetUserName, 3)
	res := &GetUserNameResponse{}
	require.NoError(t, m.Response(res))
	assert.Equal(t, "operator", res.Username)

	m = handle(t, s, NetworkFunctionApp, CommandGetUserName, 0)
	assert.Equal(t, ErrParamRange, m.CompletionCode())

	// the renamed login opens sessions
	activate(t, s)
}

func TestChassisCommands(t *testing.T) {
	s := NewSimulator(net.UDPAddr{})

	status := func() *ChassisStatusResponse {
		m := handle(t, s, NetworkFunctionChassis, CommandChassisStatus)
		res := &ChassisStatusResponse{}
		require.NoError(t, m.Response(res))
		return res
	}

	assert.True(t, status().IsSystemPowerOn())

	controls := []struct {
		should string
		ctl    ChassisControl
		expect CompletionCode
		on     bool
	}{
		{"should power down", ControlPowerDown, CommandCompleted, false},
		{"should power up", ControlPowerUp, CommandCompleted, true},
		{"should accept a power cycle", ControlPowerCycle, CommandCompleted, true},
		{"should soft power off", ControlPowerAcpiSoft, CommandCompleted, false},
		{"should refuse unknown controls", ChassisControl(0x0e), ErrInvalidPacket, false},
	}

	for _, test := range controls {
		m := handle(t, s, NetworkFunctionChassis, CommandChassisControl, uint8(test.ctl))
		assert.Equal(t, test.expect, m.CompletionCode(), test.should)
		res := status()
		assert.Equal(t, test.on, res.IsSystemPowerOn(), test.should)
		assert.Equal(t, uint8(PowerEventCommand), res.LastPowerEvent, test.should)
	}

	identify := []struct {
		should string
		data   []byte
		expect uint8
	}{
		{"should identify for the default interval", nil, IdentifyTimed},
		{"should turn identify off", []byte{0}, IdentifyOff},
		{"should identify for an interval", []byte{30}, IdentifyTimed},
		{"should force identify on", []byte{0, identifyForceOn}, IdentifyIndefinite},
	}

	for _, test := range identify {
		m := handle(t, s, NetworkFunctionChassis, CommandChassisIdentify, test.data...)
		assert.Equal(t, CommandCompleted, m.CompletionCode(), test.should)
		assert.Equal(t, test.expect, status().IdentifyState(), test.should)
	}
}

func TestBootOptions(t *testing.T) {
	s := NewSimulator(net.UDPAddr{})

	tests := []struct {
		should string
		data   []byte
		expect CompletionCode
	}{
		{"should set the boot device", append([]byte{BootParamBootFlags}, bootFlags(BootDeviceCdrom)...), CommandCompleted},
		{"should refuse short boot flags", []byte{BootParamBootFlags, bootFlagsValid, 0x14}, ErrShortPacket},
		{"should ignore other parameters", []byte{BootParamSetInProgress, 0x01}, CommandCompleted},
		{"should ignore info acknowledge", []byte{BootParamInfoAck, 0x01, 0x01}, CommandCompleted},
	}

	for _, test := range tests {
		m := handle(t, s, NetworkFunctionChassis, CommandSetSystemBootOptions, test.data...)
		assert.Equal(t, test.expect, m.CompletionCode(), test.should)
	}

	m := handle(t, s, NetworkFunctionChassis, CommandGetSystemBootOptions, BootParamBootFlags, 0, 0)
	res := &SystemBootOptionsResponse{}
	require.NoError(t, m.Response(res))
	assert.Equal(t, []byte{0x00, 0x01, 0x05, 0x80, 0x14, 0x00, 0x00, 0x00}, m.Data)
	assert.Equal(t, BootDeviceCdrom, res.BootDeviceSelector())

	m = handle(t, s, NetworkFunctionChassis, CommandGetSystemBootOptions, BootParamInfoAck, 0, 0)
	assert.Equal(t, ErrParamNotSupported, m.CompletionCode())
}

func TestSDRCommands(t *testing.T) {
	store, err := sdr.NewStore([]sdr.Entry{
		{ID: 1, Data: testFullSensorRecord(1, 0x10), Readings: []float64{20, 21}},
		{ID: 2, Data: testFullSensorRecord(2, 0x11)},
	})
	require.NoError(t, err)

	s := NewSimulator(net.UDPAddr{}, WithSDR(store))

	m := handle(t, s, NetworkFunctionStorage, CommandGetSDRRepositoryInfo)
	info := &SDRRepositoryInfoResponse{}
	require.NoError(t, m.Response(info))
	assert.Equal(t, uint16(2), info.RecordCount)
	assert.Equal(t, uint8(0x51), info.Version)

	m = handle(t, s, NetworkFunctionStorage, CommandReserveSDRRepository)
	resv := &ReserveSDRRepositoryResponse{}
	require.NoError(t, m.Response(resv))
	assert.NotZero(t, resv.ReservationID)

	get := func(resv, id uint16, offset, count uint8) []byte {
		buf := make([]byte, 6)
		binary.LittleEndian.PutUint16(buf, resv)
		binary.LittleEndian.PutUint16(buf[2:], id)
		buf[4] = offset
		buf[5] = count
		return buf
	}

	tests := []struct {
		should string
		data   []byte
		expect CompletionCode
		next   uint16
		record []byte
	}{
		{"should read the first record header", get(resv.ReservationID, 0, 0, sdr.HeaderSize), CommandCompleted, 2, testFullSensorRecord(1, 0x10)[:sdr.HeaderSize]},
		{"should read a record remainder", get(resv.ReservationID, 2, 40, sdr.ReadAll), CommandCompleted, sdr.LastRecordID, testFullSensorRecord(2, 0x11)[40:]},
		{"should read without a reservation", get(0, 1, 7, 1), CommandCompleted, 2, []byte{0x10}},
		{"should refuse a stale reservation", get(resv.ReservationID+1, 1, 0, 5), ErrInvalidResv, 0, nil},
		{"should refuse unknown records", get(0, 9, 0, 5), ErrNoObj, 0, nil},
	}

	for _, test := range tests {
		m := handle(t, s, NetworkFunctionStorage, CommandGetSDR, test.data...)
		assert.Equal(t, test.expect, m.CompletionCode(), test.should)
		if test.expect != CommandCompleted {
			continue
		}
		res := &GetSDRResponse{}
		require.NoError(t, m.Response(res), test.should)
		assert.Equal(t, test.next, res.NextRecordID, test.should)
		assert.Equal(t, test.record, res.Data, test.should)
	}

	// readings cycle
	for _, expect := range []uint8{20, 21, 20} {
		m := handle(t, s, NetworkFunctionSensorEvent, CommandGetSensorReading, 0x10)
		res := &SensorReadingResponse{}
		require.NoError(t, m.Response(res))
		assert.Equal(t, expect, res.Reading)
		assert.True(t, res.ScanningEnabled())
	}

	m = handle(t, s, NetworkFunctionSensorEvent, CommandGetSensorReading, 0x11)
	assert.Equal(t, ErrNoObj, m.CompletionCode(), "sensor without readings")
	m = handle(t, s, NetworkFunctionSensorEvent, CommandGetSensorReading, 0x42)
	assert.Equal(t, ErrNoObj, m.CompletionCode(), "unknown sensor")

	m = handle(t, s, NetworkFunctionSensorEvent, CommandGetSensorThresholds, 0x11)
	th := &SensorThresholdsResponse{}
	require.NoError(t, m.Response(th))
	assert.Equal(t, [6]uint8{}, th.Thresholds)
	m = handle(t, s, NetworkFunctionSensorEvent, CommandGetSensorThresholds, 0x42)
	th = &SensorThresholdsResponse{}
	require.NoError(t, m.Response(th), "unknown sensor")
	assert.Equal(t, uint8(0), th.Readable)
	assert.Equal(t, [6]uint8{}, th.Thresholds)
}

func TestSDRReservationRelease(t *testing.T) {
	store, err := sdr.NewStore([]sdr.Entry{{ID: 1, Data: testFullSensorRecord(1, 0x10)}})
	require.NoError(t, err)
	s := NewSimulator(net.UDPAddr{}, WithSDR(store))

	sid := activate(t, s)
	m := handleIn(t, s, sid, NetworkFunctionStorage, CommandReserveSDRRepository)
	resv := &ReserveSDRRepositoryResponse{}
	require.NoError(t, m.Response(resv))

	_, err = store.GetEntry(resv.ReservationID, sid, 1, 0, 5)
	assert.NoError(t, err)

	sidBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(sidBytes, sid)
	handleIn(t, s, sid, NetworkFunctionApp, CommandCloseSession, sidBytes...)

	_, err = store.GetEntry(resv.ReservationID, sid, 1, 0, 5)
	assert.ErrorIs(t, err, sdr.ErrInvalidReservation)
}

func TestStopRemovesSessions(t *testing.T) {
	store, err := sdr.NewStore([]sdr.Entry{{ID: 1, Data: testFullSensorRecord(1, 0x10)}})
	require.NoError(t, err)
	metrics := NewMetrics(prometheus.NewRegistry())
	s := NewSimulator(net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}, WithSDR(store), WithMetrics(metrics))
	require.NoError(t, s.Run())

	sid := activate(t, s)
	m := handleIn(t, s, sid, NetworkFunctionStorage, CommandReserveSDRRepository)
	resv := &ReserveSDRRepositoryResponse{}
	require.NoError(t, m.Response(resv))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SessionsActive))

	s.Stop()

	assert.Equal(t, 0, s.Sessions())
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.SessionsActive))
	_, err = store.GetEntry(resv.ReservationID, sid, 1, 0, 5)
	assert.ErrorIs(t, err, sdr.ErrInvalidReservation)
}

func TestFRUCommands(t *testing.T) {
	fru := make([]byte, 100)
	for i := range fru {
		fru[i] = uint8(i)
	}
	state := DefaultState()
	state.FRU[0] = fru
	s := NewSimulator(net.UDPAddr{}, WithState(state))

	m := handle(t, s, NetworkFunctionStorage, CommandGetFRUInventoryAreaInfo, 0)
	info := &FRUInventoryAreaInfoResponse{}
	require.NoError(t, m.Response(info))
	assert.Equal(t, uint16(100), info.AreaSize)

	m = handle(t, s, NetworkFunctionStorage, CommandGetFRUInventoryAreaInfo, 1)
	assert.Equal(t, ErrNoObj, m.CompletionCode())

	tests := []struct {
		should string
		data   []byte
		expect CompletionCode
		read   []byte
	}{
		{"should read fru data", []byte{0, 10, 0, 4}, CommandCompleted, fru[10:14]},
		{"should clamp to the end of the area", []byte{0, 90, 0, 20}, CommandCompleted, fru[90:]},
		{"should clamp to the read limit", []byte{0, 0, 0, 0xff}, CommandCompleted, fru[:fruReadMax]},
		{"should refuse offsets beyond the area", []byte{0, 101, 0, 1}, ErrParamRange, nil},
		{"should refuse unknown devices", []byte{7, 0, 0, 1}, ErrNoObj, nil},
	}

	for _, test := range tests {
		m := handle(t, s, NetworkFunctionStorage, CommandReadFRUData, test.data...)
		assert.Equal(t, test.expect, m.CompletionCode(), test.should)
		if test.expect != CommandCompleted {
			continue
		}
		res := &ReadFRUDataResponse{}
		require.NoError(t, m.Response(res), test.should)
		assert.Equal(t, uint8(len(test.read)), res.Count, test.should)
		assert.Equal(t, test.read, res.Data, test.should)
	}
}

func TestGroupExtensionCommands(t *testing.T) {
	state := DefaultState()
	state.PowerReadings = []PowerReading{
		{Current: 100, Minimum: 90, Maximum: 110, Average: 100, Period: 1000},
		{Current: 200, Minimum: 90, Maximum: 210, Average: 150, Period: 1000},
	}
	s := NewSimulator(net.UDPAddr{}, WithState(state))
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	m := handle(t, s, NetworkFunctionGroupExtension, CommandGetPICMGProperties, SignaturePICMG)
	assert.Equal(t, []byte{0x00, SignaturePICMG, 0x14, 0x00, 0x00}, m.Data)

	m = handle(t, s, NetworkFunctionGroupExtension, CommandGetVSOCapabilities, SignatureVITA)
	res := &GroupResponse{}
	require.NoError(t, m.Response(res))
	assert.Equal(t, SignatureVITA, res.GroupExtensionID)
	assert.Equal(t, []byte{0x00, 0x10, 0x00, 0x00}, res.Data)

	m = handle(t, s, NetworkFunctionGroupExtension, CommandGetDCMICapabilities, SignatureDCMI, DCMICapSupportedCapabilities)
	caps := &DCMICapabilitiesResponse{}
	require.NoError(t, m.Response(caps))
	assert.Equal(t, uint8(dcmiMajorVersion), caps.MajorVersion)
	assert.Equal(t, uint8(dcmiMinorVersion), caps.MinorVersion)
	assert.Equal(t, state.DCMICapabilities[DCMICapSupportedCapabilities], caps.Data)

	m = handle(t, s, NetworkFunctionGroupExtension, CommandGetDCMICapabilities, SignatureDCMI, 0x7f)
	assert.Equal(t, ErrParamRange, m.CompletionCode())

	// power readings rotate
	for _, expect := range []uint16{100, 200, 100} {
		m := handle(t, s, NetworkFunctionGroupExtension, CommandGetPowerReading, SignatureDCMI, dcmiPowerModeSystem, 0, 0)
		res := &PowerReadingResponse{}
		require.NoError(t, m.Response(res))
		assert.Equal(t, expect, res.Current)
		assert.Equal(t, uint32(1700000000), res.Timestamp)
		assert.True(t, res.Active())
	}

	state.PowerReadings = nil
	m = handle(t, s, NetworkFunctionGroupExtension, CommandGetPowerReading, SignatureDCMI, dcmiPowerModeSystem, 0, 0)
	assert.Equal(t, ErrNoObj, m.CompletionCode())
}

func TestMcIDString(t *testing.T) {
	s := NewSimulator(net.UDPAddr{})

	get := func(offset, n uint8) *Message {
		return handle(t, s, NetworkFunctionGroupExtension, CommandGetMcIDString, SignatureDCMI, offset, n)
	}
	set := func(offset uint8, data string) *Message {
		buf := []byte{SignatureDCMI, offset, uint8(len(data))}
		return handle(t, s, NetworkFunctionGroupExtension, CommandSetMcIDString, append(buf, data...)...)
	}

	m := get(0, 16)
	res := &GetMcIDStringResponse{}
	require.NoError(t, m.Response(res))
	assert.Equal(t, "ipmisim", res.Data)
	assert.Equal(t, uint8(len("ipmisim")), res.NumBytes)

	m = set(0, "node-0001-bmc\000")
	setRes := &SetMcIDStringResponse{}
	require.NoError(t, m.Response(setRes))
	assert.Equal(t, uint8(13), setRes.LastOffsetWritten)
	assert.Equal(t, "node-0001-bmc", s.state.McID)

	m = get(5, 4)
	require.NoError(t, m.Response(res))
	assert.Equal(t, "0001", res.Data)

	tests := []struct {
		should string
		m      *Message
	}{
		{"should refuse reads beyond the string", get(14, 1)},
		{"should refuse reads over 16 bytes", get(0, 17)},
		{"should refuse writes past the maximum length", set(60, "abcdefgh")},
		{"should refuse writes over 16 bytes", set(0, "0123456789abcdefg")},
	}

	for _, test := range tests {
		assert.Equal(t, ErrParamRange, test.m.CompletionCode(), test.should)
	}
}
