// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmware/ipmisim/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		should string
		format string
		level  string
		expect zerolog.Level
		err    bool
	}{
		{"should create a console logger", "console", "info", zerolog.InfoLevel, false},
		{"should create a json logger", "json", "debug", zerolog.DebugLevel, false},
		{"should reject unknown formats", "syslog", "info", zerolog.InfoLevel, true},
		{"should reject unknown levels", "json", "loud", zerolog.InfoLevel, true},
	}

	for _, test := range tests {
		log, err := newLogger(test.format, test.level)
		if test.err {
			assert.Error(t, err, test.should)
			continue
		}
		assert.NoError(t, err, test.should)
		assert.Equal(t, test.expect, log.GetLevel(), test.should)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bmc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: 127.0.0.1:1623\n"), 0o640))

	tests := []struct {
		should  string
		opts    options
		changed bool
		expect  string
	}{
		{"should use the flag without a config file", options{Listen: ":1624"}, false, ":1624"},
		{"should use the config file listen address", options{ConfigFile: path, Listen: config.DefaultListen}, false, "127.0.0.1:1623"},
		{"should let the flag override the config file", options{ConfigFile: path, Listen: ":1625"}, true, ":1625"},
	}

	for _, test := range tests {
		opts := test.opts
		cfg, err := loadConfig(&opts, test.changed)
		require.NoError(t, err, test.should)
		assert.Equal(t, test.expect, cfg.Listen, test.should)
	}

	_, err := loadConfig(&options{Listen: "nowhere"}, true)
	assert.Error(t, err)

	_, err = loadConfig(&options{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")}, false)
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "version: "+Version+"\n", out.String())
}
