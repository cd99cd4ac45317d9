// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import (
	"bytes"
	"encoding/binary"
)

func (s *Simulator) deviceID(*Message) Response {
	d := s.state.Device
	return &DeviceIDResponse{
		CompletionCode:          CommandCompleted,
		DeviceID:                d.DeviceID,
		DeviceRevision:          d.DeviceRevision,
		FirmwareRevision1:       d.FirmwareRevision1,
		FirmwareRevision2:       d.FirmwareRevision2,
		IPMIVersion:             d.IPMIVersion,
		AdditionalDeviceSupport: d.AdditionalDeviceSupport,
		ManufacturerID:          d.ManufacturerID,
		ProductID:               d.ProductID,
		AuxFirmwareRevision:     d.AuxFirmwareRevision,
	}
}

func (s *Simulator) systemGUID(*Message) Response {
	return &SystemGUIDResponse{
		CompletionCode: CommandCompleted,
		GUID:           s.state.GUID,
	}
}

func (s *Simulator) authCapabilities(m *Message) Response {
	req := &AuthCapabilitiesRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	auth := s.state.ChannelAuth
	res := &AuthCapabilitiesResponse{
		CompletionCode:  CommandCompleted,
		ChannelNumber:   auth.ChannelNumber,
		AuthTypeSupport: auth.AuthTypeSupport,
		Status:          auth.Status,
		ExtCapabilities: auth.ExtCapabilities,
		OEMID:           auth.OEMID,
		OEMAux:          auth.OEMAux,
	}

	// IPMI v1.5 consoles get v1.5 data only
	if req.ChannelNumber&channelExtendedCapabilities == 0 {
		res.AuthTypeSupport &^= channelExtendedCapabilities
		res.ExtCapabilities = 0
	}

	return res
}

func (s *Simulator) sessionChallenge(m *Message) Response {
	req := &SessionChallengeRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	switch req.AuthType {
	case AuthTypeNone, AuthTypeMD5:
	default:
		return ErrInvalidPacket
	}

	username := bytes.TrimRight(req.Username[:], "\000")
	if !bytes.Equal(username, []byte(s.users[LoginUserID])) {
		return ErrInvalidUsername
	}

	sc := &SessionContext{
		AuthType:       req.AuthType,
		State:          SessionOpenRequested,
		PrivilegeLevel: PrivLevelUser,
		Username:       username,
		SystemGUID:     s.state.GUID,
	}
	copy(sc.Challenge[:], randomBytes(len(sc.Challenge)))

	if err := s.addSession(sc); err != nil {
		return ErrNodeBusy
	}

	return &SessionChallengeResponse{
		CompletionCode:     CommandCompleted,
		TemporarySessionID: sc.BMCSessionID,
		Challenge:          sc.Challenge,
	}
}

func (s *Simulator) sessionActivate(m *Message) Response {
	req := &ActivateSessionRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	sc := m.Session
	if sc == nil || sc.AuthType == AuthTypeRMCPPlus || sc.State != SessionOpenRequested {
		return ErrInvalidSessionID
	}
	if req.AuthType != sc.AuthType || req.AuthCode != sc.Challenge {
		return ErrInvalidPacket
	}

	priv := req.PrivLevel
	if priv == PrivLevelNone {
		priv = PrivLevelAdmin
	}
	if priv > PrivLevelAdmin {
		return ErrParamRange
	}

	var seq uint32
	for seq == 0 {
		seq = binary.LittleEndian.Uint32(randomBytes(4))
	}

	sc.State = SessionActive
	sc.PrivilegeLevel = priv

	return &ActivateSessionResponse{
		CompletionCode: CommandCompleted,
		AuthType:       sc.AuthType,
		SessionID:      sc.BMCSessionID,
		InboundSeq:     seq,
		MaxPriv:        priv,
	}
}

func (s *Simulator) sessionPrivilege(m *Message) Response {
	req := &SessionPrivilegeLevelRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	sc := m.Session
	if sc == nil || sc.State != SessionActive {
		return ErrInvalidSessionID
	}

	switch {
	case req.PrivLevel == PrivLevelNone:
		// query only
	case req.PrivLevel > PrivLevelAdmin || req.PrivLevel < PrivLevelUser:
		return ErrInvalidPacket
	default:
		sc.PrivilegeLevel = req.PrivLevel
	}

	return &SessionPrivilegeLevelResponse{
		CompletionCode:    CommandCompleted,
		NewPrivilegeLevel: sc.PrivilegeLevel,
	}
}

func (s *Simulator) sessionClose(m *Message) Response {
	req := &CloseSessionRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	if m.Session == nil {
		return ErrInvalidSessionID
	}

	id := req.SessionID
	if id == 0 {
		id = m.Session.BMCSessionID
	}

	target, ok := s.sessions.Lookup(id)
	if !ok {
		return ErrInvalidSessionID
	}

	target.State = SessionClosed
	s.sessions.Remove(id)

	return CommandCompleted
}

func (s *Simulator) getUserName(m *Message) Response {
	req := &GetUserNameRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	if req.UserID == 0 || req.UserID > MaxUsers {
		return ErrParamRange
	}

	return &GetUserNameResponse{
		CompletionCode: CommandCompleted,
		Username:       s.users[req.UserID],
	}
}

func (s *Simulator) setUserName(m *Message) Response {
	req := &SetUserNameRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	// user 1 is the anonymous user, its name is fixed
	if req.UserID <= 1 || req.UserID > MaxUsers {
		return ErrParamRange
	}

	s.users[req.UserID] = req.Username

	return CommandCompleted
}
