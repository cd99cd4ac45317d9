// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

// GroupCommand addresses a group extension command by signature and command
type GroupCommand struct {
	Signature uint8
	Command
}

// GroupRequest is a group extension request carrying opaque data after the
// signature byte
type GroupRequest struct {
	GroupExtensionID uint8
	Data             []uint8
}

// MarshalBinary encodes the signature and data
func (r *GroupRequest) MarshalBinary() ([]byte, error) {
	return append([]byte{r.GroupExtensionID}, r.Data...), nil
}

// GroupResponse is a group extension response: completion code, signature and
// opaque data. PICMG, VITA and DCMI capability commands answer with one.
type GroupResponse struct {
	CompletionCode
	GroupExtensionID uint8
	Data             []uint8
}

// MarshalBinary encodes the response
func (r *GroupResponse) MarshalBinary() ([]byte, error) {
	buf := []byte{byte(r.CompletionCode), r.GroupExtensionID}
	return append(buf, r.Data...), nil
}

// UnmarshalBinary decodes the response
func (r *GroupResponse) UnmarshalBinary(buf []byte) error {
	if len(buf) < 2 {
		return ErrShortPacket
	}
	r.CompletionCode = CompletionCode(buf[0])
	r.GroupExtensionID = buf[1]
	r.Data = append([]uint8(nil), buf[2:]...)
	return nil
}

// defaultGroupCapabilities are the static PICMG and VITA capability blobs,
// the bytes following the signature of a successful response
func defaultGroupCapabilities() map[GroupCommand][]byte {
	return map[GroupCommand][]byte{
		// PICMG 3.0 extension version 1.4, max FRU device id 0, IPM controller FRU 0
		{SignaturePICMG, CommandGetPICMGProperties}: {0x14, 0x00, 0x00},
		// HPM.1 version 0, IPMC global capabilities, timeouts, component mask
		{SignaturePICMG, CommandGetTargetUpgradeCapabilities}: {0x00, 0x0c, 0x05, 0x05, 0x05, 0x05, 0x01},
		// VSO 1.0, IPMB-L, max FRU device id 0, FRU id 0
		{SignatureVITA, CommandGetVSOCapabilities}: {0x00, 0x10, 0x00, 0x00},
	}
}
