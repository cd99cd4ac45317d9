// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import (
	"encoding/binary"
	"errors"

	"github.com/vmware/ipmisim/sdr"
)

func (s *Simulator) sdrRepositoryInfo(*Message) Response {
	res := &SDRRepositoryInfoResponse{}
	if err := messageDataFromBytes(append([]byte{0}, s.sdr.RepositoryInfo()...), res); err != nil {
		return ErrUnspecified
	}
	return res
}

func (s *Simulator) reserveSDRRepository(m *Message) Response {
	return &ReserveSDRRepositoryResponse{
		CompletionCode: CommandCompleted,
		ReservationID:  s.sdr.Reserve(m.sessionID()),
	}
}

func (s *Simulator) getSDR(m *Message) Response {
	req := &GetSDRRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	data, err := s.sdr.GetEntry(req.ReservationID, m.sessionID(), req.RecordID, req.Offset, req.Count)
	switch {
	case errors.Is(err, sdr.ErrInvalidReservation):
		return ErrInvalidResv
	case errors.Is(err, sdr.ErrRecordNotFound):
		return ErrNoObj
	case err != nil:
		return ErrUnspecified
	}

	return &GetSDRResponse{
		CompletionCode: CommandCompleted,
		NextRecordID:   binary.LittleEndian.Uint16(data),
		Data:           data[2:],
	}
}

func (s *Simulator) sensorReading(m *Message) Response {
	req := &SensorReadingRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	data := s.sdr.SensorReading(req.SensorNumber, s.state.Chassis.PowerOn)
	if data == nil {
		return ErrNoObj
	}

	return &SensorReadingResponse{
		CompletionCode: CommandCompleted,
		Reading:        data[0],
		Status:         data[1],
		Thresholds:     data[2],
	}
}

func (s *Simulator) sensorThresholds(m *Message) Response {
	req := &SensorThresholdsRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	data := s.sdr.SensorThreshold(req.SensorNumber)
	res := &SensorThresholdsResponse{
		CompletionCode: CommandCompleted,
		Readable:       data[0],
	}
	copy(res.Thresholds[:], data[1:])

	return res
}

func (s *Simulator) fruInventoryAreaInfo(m *Message) Response {
	req := &FRUInventoryAreaInfoRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	fru, ok := s.state.FRU[req.DeviceID]
	if !ok {
		return ErrNoObj
	}

	return &FRUInventoryAreaInfoResponse{
		CompletionCode: CommandCompleted,
		AreaSize:       uint16(len(fru)),
		Access:         fruAccessByBytes,
	}
}

func (s *Simulator) readFRUData(m *Message) Response {
	req := &ReadFRUDataRequest{}
	if cc := m.request(req); cc != CommandCompleted {
		return cc
	}

	fru, ok := s.state.FRU[req.DeviceID]
	if !ok {
		return ErrNoObj
	}

	start := int(req.Offset)
	if start > len(fru) {
		return ErrParamRange
	}
	end := start + int(req.Count)
	if req.Count > fruReadMax {
		end = start + fruReadMax
	}
	if end > len(fru) {
		end = len(fru)
	}

	return &ReadFRUDataResponse{
		CompletionCode: CommandCompleted,
		Count:          uint8(end - start),
		Data:           fru[start:end],
	}
}
