// Package discovery advertises the status page over mDNS so it can be found
// on the lab network without knowing the host's address.
package discovery

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the DNS-SD service type of the status page.
	ServiceType = "_lockfeedback._tcp"
	// Domain is the mDNS domain.
	Domain = "local."
)

// Advertiser registers one service instance.
type Advertiser struct {
	mu     sync.Mutex
	server *zeroconf.Server
}

// Start registers instance on port with the given TXT records.
// Calling Start on a running Advertiser is a no-op.
func (a *Advertiser) Start(instance string, port int, txt []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		return nil
	}
	if port <= 0 {
		return fmt.Errorf("discovery: invalid port %d", port)
	}

	server, err := zeroconf.Register(instance, ServiceType, Domain, port, txt, nil)
	if err != nil {
		return fmt.Errorf("discovery: register %s: %w", instance, err)
	}
	a.server = server
	log.Printf("discovery: advertising %s.%s%s on port %d", instance, ServiceType, Domain, port)
	return nil
}

// Running reports whether the service is registered.
func (a *Advertiser) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// Shutdown withdraws the registration. Safe to call more than once.
func (a *Advertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
}

// TXT builds sorted key=value TXT records, skipping empty values.
func TXT(fields map[string]string) []string {
	out := make([]string, 0, len(fields))
	for k, v := range fields {
		if k == "" || v == "" {
			continue
		}
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
