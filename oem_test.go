// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOEM(t *testing.T) {
	assert.Equal(t, "Dell Inc", OemDell.String())
	assert.Equal(t, "Hewlett-Packard", OemHP.String())
	assert.Equal(t, "Unknown (99)", OemID(99).String())
}

func TestParseOemID(t *testing.T) {
	tests := []struct {
		should string
		input  string
		expect OemID
		err    bool
	}{
		{"should parse a vendor name", "dell", OemDell, false},
		{"should ignore case", " Supermicro ", OemSupermicro, false},
		{"should parse a decimal id", "674", OemDell, false},
		{"should parse a hex id", "0x2a2", OemDell, false},
		{"should accept unlisted ids", "99", OemID(99), false},
		{"should reject unknown names", "acme", OemUnknown, true},
		{"should reject ids above 20 bits", "0x100000", OemUnknown, true},
	}

	for _, test := range tests {
		id, err := ParseOemID(test.input)
		if test.err {
			assert.Error(t, err, test.should)
			continue
		}
		assert.NoError(t, err, test.should)
		assert.Equal(t, test.expect, id, test.should)
	}
}
