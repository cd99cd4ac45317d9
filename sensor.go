// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

// SensorReadingRequest per section 35.14
type SensorReadingRequest struct {
	SensorNumber uint8
}

// SensorReadingResponse per section 35.14
type SensorReadingResponse struct {
	CompletionCode
	Reading uint8
	// Status holds the event message and scanning enable bits
	Status uint8
	// Thresholds is the threshold comparison status
	Thresholds uint8
}

// ScanningEnabled reports whether the sensor is scanning
func (r *SensorReadingResponse) ScanningEnabled() bool {
	return r.Status&0x40 != 0
}

// SensorThresholdsRequest per section 35.9
type SensorThresholdsRequest struct {
	SensorNumber uint8
}

// SensorThresholdsResponse per section 35.9
type SensorThresholdsResponse struct {
	CompletionCode
	// Readable is the mask of thresholds present in the response
	Readable uint8
	// lower non-critical, lower critical, lower non-recoverable, then upper
	Thresholds [6]uint8
}
