// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package sdr

import (
	"encoding/binary"
	"math"
)

// Record types per section 43
const (
	RecordTypeFullSensor      = 0x01
	RecordTypeCompactSensor   = 0x02
	RecordTypeEventOnlySensor = 0x03
)

// Analog data formats (units 1, bits 7:6)
const (
	FormatUnsigned = iota
	FormatOnesComplement
	FormatTwosComplement
	FormatNone
)

// HeaderSize is the size of the record header: id, version, type and body length
const HeaderSize = 5

const (
	offsetSensorNumber = 7
	offsetUnits1       = 20
	offsetM            = 24
	offsetB            = 26
	offsetExponents    = 29
)

// Entry is one record of the repository as supplied by configuration.
// Readings are the pre-canned sensor values returned in turn by Get Sensor Reading.
type Entry struct {
	ID       uint16
	Data     []byte
	Readings []float64
}

// RecordType returns the SDR record type byte
func (e *Entry) RecordType() uint8 {
	if len(e.Data) < HeaderSize {
		return 0
	}
	return e.Data[3]
}

// SensorNumber returns the sensor number of sensor records.
func (e *Entry) SensorNumber() (uint8, bool) {
	switch e.RecordType() {
	case RecordTypeFullSensor, RecordTypeCompactSensor, RecordTypeEventOnlySensor:
		if len(e.Data) > offsetSensorNumber {
			return e.Data[offsetSensorNumber], true
		}
	}
	return 0, false
}

// Conversion holds the reading conversion factors of a full sensor record:
// value = (M*raw + B*10^BExp) * 10^RExp
type Conversion struct {
	M      int
	B      int
	BExp   int
	RExp   int
	Format int
}

// identity is used for records that carry no conversion factors
var identity = Conversion{M: 1}

// ParseConversion extracts the conversion factors from full sensor record data
func ParseConversion(data []byte) (Conversion, bool) {
	if len(data) <= offsetExponents || data[3] != RecordTypeFullSensor {
		return Conversion{}, false
	}

	m := int(data[offsetM]) | int(data[offsetM+1]&0xc0)<<2
	b := int(data[offsetB]) | int(data[offsetB+1]&0xc0)<<2

	return Conversion{
		M:      complement(m, 10),
		B:      complement(b, 10),
		RExp:   complement(int(data[offsetExponents]>>4), 4),
		BExp:   complement(int(data[offsetExponents]&0x0f), 4),
		Format: int(data[offsetUnits1] >> 6),
	}, true
}

func complement(value, size int) int {
	if value&(1<<(uint(size)-1)) != 0 {
		value -= 1 << uint(size)
	}
	return value
}

// Value converts a raw reading to its unit value
func (c Conversion) Value(raw uint8) float64 {
	x := int(raw)
	switch c.Format {
	case FormatOnesComplement:
		if raw&0x80 != 0 {
			x = -int(^raw & 0x7f)
		}
	case FormatTwosComplement:
		x = int(int8(raw))
	}
	return (float64(c.M)*float64(x) + float64(c.B)*math.Pow10(c.BExp)) * math.Pow10(c.RExp)
}

// Raw converts a unit value to the nearest raw reading, clamped to the
// range of the record's data format.
func (c Conversion) Raw(value float64) uint8 {
	m := c.M
	if m == 0 {
		m = 1
	}
	x := math.Round((value/math.Pow10(c.RExp) - float64(c.B)*math.Pow10(c.BExp)) / float64(m))

	switch c.Format {
	case FormatOnesComplement:
		x = math.Max(-127, math.Min(127, x))
		if x < 0 {
			return ^uint8(-x)
		}
		return uint8(x)
	case FormatTwosComplement:
		x = math.Max(-128, math.Min(127, x))
		return uint8(int8(x))
	default:
		return uint8(math.Max(0, math.Min(255, x)))
	}
}

// header returns the record id encoded in the record data, if present
func (e *Entry) header() (uint16, bool) {
	if len(e.Data) < HeaderSize {
		return 0, false
	}
	return binary.LittleEndian.Uint16(e.Data), true
}
