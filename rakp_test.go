// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSessionRequest(t *testing.T) {
	// ipmitool style request for cipher suite 3 with maximum privilege
	buf := []byte{
		0x00, 0x00, 0x00, 0x00, 0xa4, 0xa3, 0xa2, 0xa0,
		0x00, 0x00, 0x00, 0x08, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x08, 0x01, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x00, 0x08, 0x01, 0x00, 0x00, 0x00,
	}

	req := &OpenSessionRequest{}
	require.NoError(t, req.UnmarshalBinary(buf))
	assert.Equal(t, uint32(0xa0a2a3a4), req.RemoteSessionID)
	assert.Equal(t, PrivLevelNone, req.PrivLevel)
	assert.Equal(t, CipherSuite3, req.CipherSuite)

	out, err := req.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, buf, out)

	tests := []struct {
		should string
		mutate func([]byte)
		expect CipherSuite
		err    bool
	}{
		{"should pick algorithms for wildcards", func(b []byte) { b[19], b[27] = 0, 0 }, CipherSuite3, false},
		{"should reject algorithms out of order", func(b []byte) { b[16] = 0x02 }, CipherSuite{}, true},
		{"should reject bad algorithm lengths", func(b []byte) { b[11] = 0x04 }, CipherSuite{}, true},
	}

	for _, test := range tests {
		b := append([]byte(nil), buf...)
		test.mutate(b)
		req := &OpenSessionRequest{}
		err := req.UnmarshalBinary(b)
		if test.err {
			assert.ErrorIs(t, err, ErrMalformedPacket, test.should)
			continue
		}
		assert.NoError(t, err, test.should)
		assert.Equal(t, test.expect, req.CipherSuite, test.should)
	}

	assert.ErrorIs(t, req.UnmarshalBinary(buf[:31]), ErrMalformedPacket)
}

func TestRAKPMessage1(t *testing.T) {
	_, err := (&RAKPMessage1{Username: []byte("a-very-long-user-name")}).MarshalBinary()
	assert.Error(t, err)

	buf, err := (&RAKPMessage1{MessageTag: 0x02, BMCSessionID: 0x11223344, Role: 0x14, Username: []byte("admin")}).MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, buf, rakp1Size+5)
	assert.Equal(t, []byte{0x44, 0x33, 0x22, 0x11}, buf[4:8])
	assert.Equal(t, uint8(0x14), buf[24])

	m := &RAKPMessage1{}
	require.NoError(t, m.UnmarshalBinary(buf))
	assert.Equal(t, []byte("admin"), m.Username)

	// user name length beyond the message
	buf[27] = 6
	assert.ErrorIs(t, m.UnmarshalBinary(buf), ErrMalformedPacket)
}

func TestRAKPErrorMessages(t *testing.T) {
	buf, err := (&RAKPMessage2{MessageTag: 0x07, Status: RMCPStatusUnauthorizedName, RemoteSessionID: 0x01}).MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x07, 0x0d, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}, buf)

	rakp2 := &RAKPMessage2{}
	require.NoError(t, rakp2.UnmarshalBinary(buf))
	assert.Equal(t, RMCPStatusUnauthorizedName, rakp2.Status)
	assert.ErrorIs(t, (&RAKPMessage2{}).UnmarshalBinary(append([]byte{0x07, 0x00}, make([]byte, 10)...)), ErrMalformedPacket)

	buf, err = (&OpenSessionResponse{Status: RMCPStatusInvalidRole, RemoteSessionID: 0x02}).MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, buf, rakpHeaderSize)
}
