// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

// groupCapability answers PICMG and VITA requests with their static blob
func (s *Simulator) groupCapability(m *Message) Response {
	blob, ok := s.state.GroupCapabilities[GroupCommand{m.Signature, m.Command}]
	if !ok {
		return ErrInvalidCommand
	}

	return &GroupResponse{
		CompletionCode:   CommandCompleted,
		GroupExtensionID: m.Signature,
		Data:             blob,
	}
}

func (s *Simulator) dcmiCapabilities(m *Message) Response {
	req := &DCMICapabilitiesRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	blob, ok := s.state.DCMICapabilities[req.Param]
	if !ok {
		return ErrParamRange
	}

	return &DCMICapabilitiesResponse{
		CompletionCode:   CommandCompleted,
		GroupExtensionID: SignatureDCMI,
		MajorVersion:     dcmiMajorVersion,
		MinorVersion:     dcmiMinorVersion,
		Revision:         dcmiRevision,
		Data:             blob,
	}
}

// powerReading returns the next reading, rotating through the configured list
func (s *Simulator) powerReading(m *Message) Response {
	req := &PowerReadingRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	if req.Mode != dcmiPowerModeSystem {
		return ErrInvalidPacket
	}

	readings := s.state.PowerReadings
	if len(readings) == 0 {
		return ErrNoObj
	}

	s.powerIdx %= len(readings)
	p := readings[s.powerIdx]
	s.powerIdx = (s.powerIdx + 1) % len(readings)

	return p.response(uint32(s.now().Unix()))
}

func (s *Simulator) getMcIDString(m *Message) Response {
	req := &GetMcIDStringRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	id := s.state.McID
	if int(req.Offset) > len(id) || req.NumBytes > mcIDChunkLen {
		return ErrParamRange
	}

	end := int(req.Offset) + int(req.NumBytes)
	if end > len(id) {
		end = len(id)
	}

	return &GetMcIDStringResponse{
		CompletionCode:   CommandCompleted,
		GroupExtensionID: SignatureDCMI,
		NumBytes:         uint8(len(id)),
		Data:             id[req.Offset:end],
	}
}

func (s *Simulator) setMcIDString(m *Message) Response {
	req := &SetMcIDStringRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	end := int(req.Offset) + int(req.NumBytes)
	if req.NumBytes == 0 || req.NumBytes > mcIDChunkLen || end > MaxMcIDStringLen {
		return ErrParamRange
	}

	buf := make([]byte, MaxMcIDStringLen)
	copy(buf, s.state.McID)
	copy(buf[req.Offset:], req.Data)
	// the string ends at the first NUL
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	s.state.McID = string(buf[:n])

	return &SetMcIDStringResponse{
		CompletionCode:    CommandCompleted,
		GroupExtensionID:  SignatureDCMI,
		LastOffsetWritten: uint8(end - 1),
	}
}
