// Package validation checks operator-supplied settings values before
// they are persisted or pushed into a live session.
package validation

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

const (
	minBitrateKbps = 500
	maxBitrateKbps = 100000

	maxServiceTagLen = 64
)

var (
	pinPattern        = regexp.MustCompile(`^[0-9]{4,8}$`)
	serviceTagPattern = regexp.MustCompile(`^[A-Z0-9_]+$`)
)

// ValidatePIN accepts 4 to 8 digit viewer PINs. Surrounding whitespace
// is ignored, anything else is not.
func ValidatePIN(pin string) error {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return fmt.Errorf("pin is required")
	}
	if !pinPattern.MatchString(pin) {
		return fmt.Errorf("pin must be 4 to 8 digits")
	}
	return nil
}

// ValidateBitrate bounds the video bitrate in kbps. Below the floor the
// encoder produces unwatchable output, above the ceiling it saturates a
// LAN link.
func ValidateBitrate(bitrate int) error {
	if bitrate < minBitrateKbps || bitrate > maxBitrateKbps {
		return fmt.Errorf("bitrate must be between %d and %d kbps", minBitrateKbps, maxBitrateKbps)
	}
	return nil
}

// ValidatePeerManagement accepts the seat policy names a session can run
// under.
func ValidatePeerManagement(mode string) error {
	switch mode {
	case "SinglePeer", "MultiplePeersSingleControl", "MultiplePeersMultipleControl":
		return nil
	}
	return fmt.Errorf("unknown peer management mode %q", mode)
}

// ValidatePeerAddress accepts ip:port endpoints. Hostnames are rejected
// so a kick or trust decision always names one concrete peer.
func ValidatePeerAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("peer address is required")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("peer address %q: %w", addr, err)
	}
	if net.ParseIP(host) == nil {
		return fmt.Errorf("peer address host %q is not an IP literal", host)
	}
	if port == "" {
		return fmt.Errorf("peer address %q has no port", addr)
	}
	return nil
}

// ValidateURL accepts http, https, ws and wss URLs with a host.
func ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("url scheme %q is not supported", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

// ValidateServiceTag accepts discovery beacon tags. The charset excludes
// the colon so a tag can never be confused with the tag:port payload
// built from it.
func ValidateServiceTag(tag string) error {
	if tag == "" {
		return fmt.Errorf("service tag is required")
	}
	if len(tag) > maxServiceTagLen {
		return fmt.Errorf("service tag longer than %d characters", maxServiceTagLen)
	}
	if !serviceTagPattern.MatchString(tag) {
		return fmt.Errorf("service tag %q may only contain A-Z, 0-9 and _", tag)
	}
	return nil
}
