// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompletionCode(t *testing.T) {
	assert.Error(t, ErrInvalidCommand)
	assert.Equal(t, uint8(0xcb), ErrNoObj.Code())
	assert.Equal(t, "Requested sensor, data, or record not present", ErrNoObj.Error())
	assert.Equal(t, "Completion Code: 7E", CompletionCode(0x7e).Error())
}
