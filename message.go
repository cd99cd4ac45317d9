// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	bmcSlaveAddr = 0x20
	remoteSWID   = 0x81
	ipmiBufSize  = 1024
)

var (
	ipmiHeaderSize = binary.Size(ipmiHeader{})
)

// ipmiHeader is laid out the same way for requests and responses:
// target address, netfn/target LUN, checksum, source address, sequence/source LUN, command.
type ipmiHeader struct {
	RsAddr     uint8
	NetFnRsLUN uint8
	Checksum   uint8
	RqAddr     uint8
	RqSeq      uint8
	Command
}

// Message encapsulates an IPMI message
type Message struct {
	ipmiHeader
	// Signature is the group extension id of group extension requests
	Signature uint8
	Data      []byte
	// Session the request arrived on, nil outside of a session
	Session *SessionContext
}

// NetFn returns the NetworkFunction portion of the NetFn/RsLUN field
func (m *Message) NetFn() NetworkFunction {
	return NetworkFunction(m.NetFnRsLUN >> 2)
}

func (m *Message) hasSignature() bool {
	return m.NetFn() == NetworkFunctionGroupExtension
}

// CompletionCode of an IPMI command response
func (m *Message) CompletionCode() CompletionCode {
	if len(m.Data) == 0 {
		return ErrShortPacket
	}
	return CompletionCode(m.Data[0])
}

// Response specific to the request IPMI command
func (m *Message) Response(data Response) error {
	if m.CompletionCode() != CommandCompleted {
		return m.CompletionCode()
	}
	return messageDataFromBytes(m.Data, data)
}

func messageFromBytes(buf []byte) (*Message, error) {
	if len(buf) < ipmiHeaderSize+1 {
		return nil, fmt.Errorf("%w: ipmi message is %d bytes", ErrMalformedPacket, len(buf))
	}

	m := &Message{
		ipmiHeader: ipmiHeader{
			RsAddr:     buf[0],
			NetFnRsLUN: buf[1],
			Checksum:   buf[2],
			RqAddr:     buf[3],
			RqSeq:      buf[4],
			Command:    Command(buf[5]),
		},
	}

	if m.headerChecksum() != m.Checksum {
		return nil, fmt.Errorf("%w: header checksum", ErrMalformedPacket)
	}

	end := len(buf) - 1
	if checksum(buf[3:end]...) != buf[end] {
		return nil, fmt.Errorf("%w: payload checksum", ErrMalformedPacket)
	}

	data := buf[ipmiHeaderSize:end]
	if m.hasSignature() {
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: missing group extension signature", ErrMalformedPacket)
		}
		m.Signature = data[0]
		data = data[1:]
	}
	m.Data = append([]byte(nil), data...)

	return m, nil
}

func (m *Message) toBytes() []byte {
	m.Checksum = m.headerChecksum()

	buf := make([]byte, 0, ipmiHeaderSize+len(m.Data)+2)
	buf = append(buf, m.RsAddr, m.NetFnRsLUN, m.Checksum, m.RqAddr, m.RqSeq, uint8(m.Command))
	if m.hasSignature() {
		buf = append(buf, m.Signature)
	}
	buf = append(buf, m.Data...)

	return append(buf, checksum(buf[3:]...))
}

// response builds the reply to m, swapping addresses and LUNs
func (m *Message) response(data []byte) *Message {
	return &Message{
		ipmiHeader: ipmiHeader{
			RsAddr:     m.RqAddr,
			NetFnRsLUN: uint8(m.NetFn()+1)<<2 | m.RqSeq&0x03,
			RqAddr:     m.RsAddr,
			RqSeq:      m.RqSeq&0xfc | m.NetFnRsLUN&0x03,
			Command:    m.Command,
		},
		Data:    data,
		Session: m.Session,
	}
}

func (m *Message) headerChecksum() uint8 {
	return checksum(m.RsAddr, m.NetFnRsLUN)
}

func checksum(b ...uint8) uint8 {
	var c uint8
	for _, x := range b {
		c += x
	}
	return -c
}

// messageDataToBytes encodes request or response data, using MarshalBinary
// for variable length types
func messageDataToBytes(data interface{}) []byte {
	if data == nil {
		return nil
	}
	if m, ok := data.(encoding.BinaryMarshaler); ok {
		buf, err := m.MarshalBinary()
		if err != nil {
			panic(err)
		}
		return buf
	}
	buf := new(bytes.Buffer)
	binaryWrite(buf, data)
	return buf.Bytes()
}

// messageDataFromBytes decodes request or response data, using UnmarshalBinary
// for variable length types
func messageDataFromBytes(buf []byte, data interface{}) error {
	if u, ok := data.(encoding.BinaryUnmarshaler); ok {
		return u.UnmarshalBinary(buf)
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, data); err != nil {
		return ErrShortPacket
	}
	return nil
}

func binaryWrite(writer io.Writer, data interface{}) {
	err := binary.Write(writer, binary.LittleEndian, data)
	if err != nil {
		// shouldn't happen to a bytes.Buffer
		panic(err)
	}
}
