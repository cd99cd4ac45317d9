/*
Copyright (c) 2014 VMware, Inc. All Rights Reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ipmi

import "strings"

const (
	// MaxUsernameLen is the size of the user name field
	MaxUsernameLen = 16
	// MaxUsers is the number of user ids of the LAN channel
	MaxUsers = 16
	// LoginUserID is the user id holding the configured credentials
	LoginUserID = 2
)

// GetUserNameRequest per section 22.29
type GetUserNameRequest struct {
	UserID byte
}

// GetUserNameResponse per section 22.29
type GetUserNameResponse struct {
	CompletionCode
	Username string
}

// SetUserNameRequest per section 22.28
type SetUserNameRequest struct {
	UserID   byte
	Username string
}

// SetUserNameResponse per section 22.28
type SetUserNameResponse struct {
	CompletionCode
}

// MarshalBinary encodes the user id
func (r *GetUserNameRequest) MarshalBinary() ([]byte, error) {
	return []byte{r.UserID & 0x3f}, nil
}

// UnmarshalBinary decodes the user id
func (r *GetUserNameRequest) UnmarshalBinary(buf []byte) error {
	if len(buf) == 0 {
		return ErrShortPacket
	}
	if len(buf) > 1 {
		return ErrLongPacket
	}
	r.UserID = buf[0] & 0x3f
	return nil
}

// MarshalBinary encodes the name NUL padded
func (r *GetUserNameResponse) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 1+MaxUsernameLen)
	buf[0] = byte(r.CompletionCode)
	copy(buf[1:], r.Username)
	return buf, nil
}

// UnmarshalBinary decodes the name, trimming NUL padding
func (r *GetUserNameResponse) UnmarshalBinary(buf []byte) error {
	if len(buf) < 1+MaxUsernameLen {
		return ErrShortPacket
	}
	r.CompletionCode = CompletionCode(buf[0])
	r.Username = strings.TrimRight(string(buf[1:1+MaxUsernameLen]), "\000")
	return nil
}

// MarshalBinary encodes the user id and name NUL padded
func (r *SetUserNameRequest) MarshalBinary() ([]byte, error) {
	if len(r.Username) > MaxUsernameLen {
		return nil, ErrLongPacket
	}
	buf := make([]byte, 1+MaxUsernameLen)
	buf[0] = r.UserID & 0x3f
	copy(buf[1:], r.Username)
	return buf, nil
}

// UnmarshalBinary decodes the user id and name
func (r *SetUserNameRequest) UnmarshalBinary(buf []byte) error {
	if len(buf) < 1+MaxUsernameLen {
		return ErrShortPacket
	}
	if len(buf) > 1+MaxUsernameLen {
		return ErrLongPacket
	}
	r.UserID = buf[0] & 0x3f
	r.Username = strings.TrimRight(string(buf[1:]), "\000")
	return nil
}
