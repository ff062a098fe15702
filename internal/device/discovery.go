package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog"
)

// ErrNotDiscovered is returned when no device answered the mDNS browse.
var ErrNotDiscovered = errors.New("device not found on the local network")

// Discovery defaults.
const (
	DefaultHostname       = "GreenStack"
	DefaultService        = "_http._tcp"
	DefaultDomain         = "local."
	DefaultDiscoverWindow = 5 * time.Second
)

// DiscoverConfig holds configuration for mDNS discovery.
type DiscoverConfig struct {
	// Hostname is the name the device announces itself with.
	Hostname string

	// Service is the DNS-SD service type browsed for.
	Service string

	// Domain is the mDNS domain.
	Domain string

	// Timeout bounds the browse.
	Timeout time.Duration

	Logger zerolog.Logger
}

// Discover browses the local network for the device and returns its base
// URL.
func Discover(ctx context.Context, cfg DiscoverConfig) (string, error) {
	if cfg.Hostname == "" {
		cfg.Hostname = DefaultHostname
	}
	if cfg.Service == "" {
		cfg.Service = DefaultService
	}
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultDiscoverWindow
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("initializing resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, cfg.Service, cfg.Domain, entries); err != nil {
		return "", fmt.Errorf("browsing %s: %w", cfg.Service, err)
	}

	for {
		select {
		case <-ctx.Done():
			return "", ErrNotDiscovered
		case entry, ok := <-entries:
			if !ok {
				return "", ErrNotDiscovered
			}
			cfg.Logger.Debug().
				Str("instance", entry.Instance).
				Str("host", entry.HostName).
				Int("port", entry.Port).
				Msg("mDNS entry")

			if u, ok := EntryURL(entry, cfg.Hostname); ok {
				cfg.Logger.Info().Str("url", u).Msg("discovered device")
				return u, nil
			}
		}
	}
}

// EntryURL returns the base URL of entry when it belongs to hostname.
func EntryURL(entry *zeroconf.ServiceEntry, hostname string) (string, bool) {
	if entry == nil {
		return "", false
	}

	host := strings.TrimSuffix(strings.TrimSuffix(entry.HostName, "."), ".local")
	if !strings.EqualFold(entry.Instance, hostname) && !strings.EqualFold(host, hostname) {
		return "", false
	}

	var ip net.IP
	switch {
	case len(entry.AddrIPv4) > 0:
		ip = entry.AddrIPv4[0]
	case len(entry.AddrIPv6) > 0:
		ip = entry.AddrIPv6[0]
	default:
		return "", false
	}

	hostport := ip.String()
	if entry.Port != 0 && entry.Port != 80 {
		hostport = net.JoinHostPort(hostport, strconv.Itoa(entry.Port))
	} else if ip.To4() == nil {
		hostport = "[" + hostport + "]"
	}

	u := url.URL{Scheme: "http", Host: hostport}
	return u.String(), true
}
