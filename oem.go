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

import (
	"fmt"
	"strconv"
	"strings"
)

// OemID aka IANA assigned Enterprise Number per:
// http://www.iana.org/assignments/enterprise-numbers/enterprise-numbers
// Only the low 20 bits are significant, encoded on the wire as 3 bytes.
type OemID uint32

// IANA assigned manufacturer IDs of common BMC vendors
const (
	OemUnknown        = OemID(0)
	OemIBM            = OemID(2)
	OemHP             = OemID(11)
	OemSun            = OemID(42)
	OemIntel          = OemID(343)
	OemDell           = OemID(674)
	OemHuawei         = OemID(2011)
	OemQuanta         = OemID(7244)
	OemFujitsuSiemens = OemID(10368)
	OemSupermicro     = OemID(10876)
	OemGoogle         = OemID(11129)
	OemPICMG          = OemID(12634)
	OemKontron        = OemID(15000)
	OemLenovo         = OemID(19046)
	OemAMI            = OemID(20974)
)

// maxOemID is the largest id that fits the 3 byte wire encoding
const maxOemID = 0xfffff

type oemName struct {
	key  string // short name accepted by ParseOemID
	name string
}

var oemNames = map[OemID]oemName{
	OemUnknown:        {"unknown", "Unknown"},
	OemIBM:            {"ibm", "IBM"},
	OemHP:             {"hp", "Hewlett-Packard"},
	OemSun:            {"sun", "Sun Microsystems"},
	OemIntel:          {"intel", "Intel Corporation"},
	OemDell:           {"dell", "Dell Inc"},
	OemHuawei:         {"huawei", "Huawei"},
	OemQuanta:         {"quanta", "Quanta"},
	OemFujitsuSiemens: {"fujitsu", "Fujitsu Siemens"},
	OemSupermicro:     {"supermicro", "Supermicro"},
	OemGoogle:         {"google", "Google"},
	OemPICMG:          {"picmg", "PICMG"},
	OemKontron:        {"kontron", "Kontron"},
	OemLenovo:         {"lenovo", "Lenovo"},
	OemAMI:            {"ami", "AMI"},
}

// ParseOemID accepts a vendor short name such as "dell", or a decimal or
// 0x prefixed enterprise number
func ParseOemID(s string) (OemID, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	for id, n := range oemNames {
		if n.key == s {
			return id, nil
		}
	}

	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil || n > maxOemID {
		return OemUnknown, fmt.Errorf("invalid manufacturer id: %q", s)
	}

	return OemID(n), nil
}

func (id OemID) String() string {
	if n, ok := oemNames[id]; ok {
		return n.name
	}
	return fmt.Sprintf("Unknown (%d)", id)
}
