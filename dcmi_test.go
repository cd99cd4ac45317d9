package ipmi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetMcIDStringRequest(t *testing.T) {
	req := &Request{
		NetworkFunctionGroupExtension,
		CommandGetMcIDString,
		&GetMcIDStringRequest{SignatureDCMI, 0, mcIDChunkLen},
	}
	raw := requestToStrings(req)
	assert.Equal(t, []string{"0x2c", "0x09", "0xdc", "0x00", "0x10"}, raw)
}

func TestGetMcIDStringResponse(t *testing.T) {
	status := &GetMcIDStringResponse{}
	err := responseFromString("dc 0c 61 62 63 64 65 66 67 68 69 6a 6b 6c 00 00 00 00", status)
	assert.NoError(t, err)
	assert.Equal(t, SignatureDCMI, status.GroupExtensionID)
	assert.Equal(t, uint8(12), status.NumBytes)
	assert.Equal(t, "abcdefghijkl", status.Data)
}

func TestSetMcIDStringRequest(t *testing.T) {
	testMcID := "abcdefghijkl"
	req := &Request{
		NetworkFunctionGroupExtension,
		CommandSetMcIDString,
		&SetMcIDStringRequest{SignatureDCMI, 0, mcIDChunkLen, testMcID},
	}
	raw := requestToStrings(req)
	assert.Equal(t, []string{"0x2c", "0x0a", "0xdc", "0x00", "0x10", "0x61", "0x62", "0x63", "0x64", "0x65", "0x66", "0x67", "0x68", "0x69", "0x6a", "0x6b", "0x6c", "0x00", "0x00", "0x00", "0x00"}, raw)

	decoded := &SetMcIDStringRequest{}
	assert.NoError(t, decoded.UnmarshalBinary([]byte{0xdc, 0x02, 0x03, 'a', 'b', 'c'}))
	assert.Equal(t, "abc", decoded.Data)
	assert.Equal(t, ErrShortPacket, decoded.UnmarshalBinary([]byte{0xdc, 0x02, 0x03, 'a'}))
}

func TestSetMcIDStringResponse(t *testing.T) {
	status := &SetMcIDStringResponse{}
	err := responseFromString("dc 0c", status)
	assert.NoError(t, err)
	assert.Equal(t, SignatureDCMI, status.GroupExtensionID)
	assert.Equal(t, uint8(0x0c), status.LastOffsetWritten)
}

func TestPowerReadingResponse(t *testing.T) {
	res := &PowerReadingResponse{}
	err := responseFromString("dc dc 00 b4 00 04 01 d7 00 00 f1 53 65 e8 03 00 00 40", res)
	assert.NoError(t, err)
	assert.Equal(t, uint16(220), res.Current)
	assert.Equal(t, uint16(180), res.Minimum)
	assert.Equal(t, uint16(260), res.Maximum)
	assert.Equal(t, uint16(215), res.Average)
	assert.Equal(t, uint32(0x6553f100), res.Timestamp)
	assert.Equal(t, uint32(1000), res.Period)
	assert.True(t, res.Active())

	p := PowerReading{Current: 220, Minimum: 180, Maximum: 260, Average: 215, Period: 1000}
	assert.Equal(t, res, p.response(0x6553f100))
}

func TestDCMICapabilitiesResponse(t *testing.T) {
	res := &DCMICapabilitiesResponse{}
	assert.Equal(t, ErrShortPacket, res.UnmarshalBinary([]byte{0x00, 0xdc}))

	err := responseFromString("dc 01 05 02 00 01 07", res)
	assert.NoError(t, err)
	assert.Equal(t, uint8(dcmiMajorVersion), res.MajorVersion)
	assert.Equal(t, uint8(dcmiMinorVersion), res.MinorVersion)
	assert.Equal(t, []uint8{0x00, 0x01, 0x07}, res.Data)
}
