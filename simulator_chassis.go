// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

func (s *Simulator) chassisStatus(*Message) Response {
	return s.state.Chassis.status()
}

func (s *Simulator) chassisControl(m *Message) Response {
	req := &ChassisControlRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	ctl := req.ChassisControl & 0x0f
	if !s.state.Chassis.control(ctl) {
		return ErrInvalidPacket
	}

	s.log.Info().
		Stringer("control", ctl).
		Bool("power_on", s.state.Chassis.PowerOn).
		Msg("chassis control")

	return &ChassisControlResponse{CompletionCode: CommandCompleted}
}

func (s *Simulator) chassisIdentify(m *Message) Response {
	req := &ChassisIdentifyRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	s.state.Chassis.identify(req.state())

	return &ChassisIdentifyResponse{CompletionCode: CommandCompleted}
}

func (s *Simulator) setBootOptions(m *Message) Response {
	req := &SetSystemBootOptionsRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	// other parameters are accepted and ignored
	if req.Param == BootParamBootFlags {
		if len(req.Data) < bootFlagsSize {
			return ErrShortPacket
		}
		s.state.Chassis.BootDevice = BootDevice((req.Data[1] >> bootDeviceShift) & bootDeviceMask)
		s.log.Info().Stringer("device", s.state.Chassis.BootDevice).Msg("boot device set")
	}

	return &SetSystemBootOptionsResponse{CompletionCode: CommandCompleted}
}

func (s *Simulator) getBootOptions(m *Message) Response {
	req := &SystemBootOptionsRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	if req.Param&0x7f != BootParamBootFlags {
		return ErrParamNotSupported
	}

	return &SystemBootOptionsResponse{
		CompletionCode: CommandCompleted,
		Version:        bootParamVersion,
		Param:          BootParamBootFlags,
		Data:           bootFlags(s.state.Chassis.BootDevice),
	}
}
