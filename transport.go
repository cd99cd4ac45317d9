// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import "fmt"

// DefaultInterface is used when Connection.Interface is empty
const DefaultInterface = "lanplus"

type transport interface {
	open() error
	close() error
	send(*Request, Response) error
}

// transports by Connection.Interface
var transports = map[string]func(*Connection) transport{
	"lan":     newLanTransport,
	"lanplus": newLanplusTransport,
	"tool":    newToolTransport,
}

func newTransport(c *Connection) (transport, error) {
	intf := c.Interface
	if intf == "" {
		intf = DefaultInterface
	}

	newT, ok := transports[intf]
	if !ok {
		return nil, fmt.Errorf("unsupported interface: %s", c.Interface)
	}

	return newT(c), nil
}
