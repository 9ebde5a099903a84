// Package mdns announces the receiver on the local network so array
// operators can enumerate live stations without keeping an address list.
package mdns

import (
	"fmt"

	"github.com/grandcat/zeroconf"
)

const service = "_corx._tcp"

// Announce registers the receiver as a zeroconf service. The returned
// function withdraws the registration.
func Announce(instance string, port int, txt []string) (func(), error) {
	server, err := zeroconf.Register(instance, service, "local.", port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	return server.Shutdown, nil
}
