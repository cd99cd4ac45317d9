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
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const defaultToolPath = "ipmitool"

// ipmitool reports failed raw commands as "... rsp=0xcb): ..."
var toolCompletionCode = regexp.MustCompile(`rsp=0x([0-9a-fA-F]{2})`)

// tool sends every request through a separate "ipmitool raw" run over
// lanplus, cipher suite 3. Sessions live only as long as one run.
type tool struct {
	*Connection
}

func newToolTransport(c *Connection) transport {
	return &tool{Connection: c}
}

func (t *tool) open() error {
	return nil
}

func (t *tool) close() error {
	return nil
}

func (t *tool) send(req *Request, res Response) error {
	out, err := t.raw(requestToBytes(req))
	if err != nil {
		return err
	}
	return responseFromBytes(out, res)
}

func (t *tool) options() []string {
	opts := []string{
		"-H", t.Hostname,
		"-U", t.Username,
		"-P", t.Password,
		"-I", "lanplus",
		// newer ipmitool releases default to suite 17, which needs SHA-256
		"-C", "3",
	}

	if t.Port != 0 {
		opts = append(opts, "-p", strconv.Itoa(t.Port))
	}
	if t.Timeout != 0 {
		opts = append(opts, "-N", strconv.Itoa(int(t.Timeout.Seconds())))
	}
	if t.Retries != 0 {
		opts = append(opts, "-R", strconv.FormatUint(t.Retries, 10))
	}

	return opts
}

// deadline bounds a whole ipmitool run, retries included
func (t *tool) deadline() time.Duration {
	timeout := t.Timeout
	if timeout < time.Second {
		timeout = defaultTimeout
	}
	return timeout*time.Duration(t.Retries+1) + 5*time.Second
}

func (t *tool) raw(msg []byte) ([]byte, error) {
	path := t.Path
	if path == "" {
		path = defaultToolPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.deadline())
	defer cancel()

	args := append(t.options(), "raw")
	args = append(args, rawEncode(msg)...)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if m := toolCompletionCode.FindStringSubmatch(stderr.String()); m != nil {
			cc, _ := strconv.ParseUint(m[1], 16, 8)
			return nil, CompletionCode(cc)
		}
		return nil, fmt.Errorf("%s raw %x: %s (%w)", path, msg, strings.TrimSpace(stderr.String()), err)
	}

	return rawDecode(stdout.String())
}

// requestToBytes is the netfn, command and data of r, as given to ipmitool raw
func requestToBytes(r *Request) []byte {
	return append([]byte{uint8(r.NetworkFunction), uint8(r.Command)}, messageDataToBytes(r.Data)...)
}

func requestToStrings(r *Request) []string {
	return rawEncode(requestToBytes(r))
}

// responseFromBytes decodes the data printed by ipmitool raw, which only
// prints responses that completed normally
func responseFromBytes(msg []byte, r Response) error {
	return messageDataFromBytes(append([]byte{uint8(CommandCompleted)}, msg...), r)
}

func responseFromString(s string, r Response) error {
	msg, err := rawDecode(s)
	if err != nil {
		return err
	}
	return responseFromBytes(msg, r)
}

// rawDecode parses the hex bytes printed by ipmitool raw, which wraps long
// responses over several lines
func rawDecode(data string) ([]byte, error) {
	var buf []byte
	for _, s := range strings.Fields(data) {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: ipmitool output %q", ErrMalformedPacket, s)
		}
		buf = append(buf, b...)
	}
	return buf, nil
}

// rawEncode formats each byte as a separate ipmitool argument
func rawEncode(data []byte) []string {
	args := make([]string, len(data))
	for i, b := range data {
		args[i] = fmt.Sprintf("0x%02x", b)
	}
	return args
}
