/*
Package discovery advertises the relay on the local network over mDNS so LAN
clients can find it without configuration.
*/
package discovery

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"
)

const (
	// DefaultService is the advertised service type.
	DefaultService = "_relaychat._tcp"
	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."
	// DefaultVersion is the protocol version advertised in TXT records.
	DefaultVersion = 1
)

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error)

// Config describes the advertisement.
type Config struct {
	Instance string
	Service  string
	Domain   string
	Port     int
	Version  int

	// Paths advertised in TXT records.
	WebSocketPath string
	UploadPath    string

	registerFn registerFunc
}

func (c Config) withDefaults() Config {
	out := c
	if out.Service == "" {
		out.Service = DefaultService
	}
	if out.Domain == "" {
		out.Domain = DefaultDomain
	}
	if out.Version == 0 {
		out.Version = DefaultVersion
	}
	if out.registerFn == nil {
		out.registerFn = zeroconf.Register
	}
	return out
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Instance) == "" {
		return errors.New("instance name is required")
	}
	if c.Port <= 0 {
		return errors.New("port must be > 0")
	}
	return nil
}

func (c Config) txt() []string {
	txt := []string{"version=" + strconv.Itoa(c.Version)}
	if c.WebSocketPath != "" {
		txt = append(txt, "ws="+c.WebSocketPath)
	}
	if c.UploadPath != "" {
		txt = append(txt, "upload="+c.UploadPath)
	}
	return txt
}

// Announcer keeps an mDNS registration alive until Stop.
type Announcer struct {
	server *zeroconf.Server
}

// Announce registers the service on all interfaces.
func Announce(config Config) (*Announcer, error) {
	cfg := config.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	server, err := cfg.registerFn(cfg.Instance, cfg.Service, cfg.Domain, cfg.Port, cfg.txt(), nil)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}
	return &Announcer{server: server}, nil
}

// Stop withdraws the advertisement.
func (a *Announcer) Stop() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
}
