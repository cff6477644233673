// Package yeelight speaks the LAN control protocol of Yeelight lights: SSDP
// discovery, the one-shot control port exchange, and the music-mode session
// that streams color updates over a connection the light opens back to us.
package yeelight

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cybre/yeelight-audio-sync/internal/config"
)

const (
	// yeelight discover message for SSDP
	discoverMSG = "M-SEARCH * HTTP/1.1\r\nHOST: 239.255.255.250:1982\r\nMAN: \"ssdp:discover\"\r\nST: wifi_bulb\r\n"
	// how long discovery waits for replies
	discoverTimeout = time.Second * 3
	// SSDP discover address
	ssdpAddress = "239.255.255.250:1982"
	// line ending (CRLF)
	lineEnding = "\r\n"

	defaultProbeAddress = "8.8.8.8:80"
)

// DeviceInfo is what a light advertises in its discovery reply.
type DeviceInfo struct {
	Addr            netip.AddrPort
	ID              string
	Name            string
	Model           string
	FirmwareVersion string
	Power           string
	Brightness      int
	Support         []string
}

// Supports reports whether the light advertises method.
func (d DeviceInfo) Supports(method string) bool {
	for _, m := range d.Support {
		if m == method {
			return true
		}
	}
	return false
}

// Label is a short human-readable name for the light.
func (d DeviceInfo) Label() string {
	name := d.Name
	if name == "" {
		name = d.Model
	}
	if name == "" {
		return d.Addr.String()
	}
	return name + " (" + d.Addr.String() + ")"
}

// ParseAddress accepts "ip" or "ip:port". A missing port defaults to the
// control port.
func ParseAddress(address string) (netip.AddrPort, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, strconv.Itoa(config.DefaultControlPort))
	}

	addr, err := netip.ParseAddrPort(address)
	if err != nil {
		return netip.AddrPort{}, eris.Wrap(err, "failed to parse light address")
	}

	return addr, nil
}

// Discover multicasts an SSDP search and collects replies until the timeout
// or ctx ends. Lights are deduplicated by id.
func Discover(ctx context.Context) ([]DeviceInfo, error) {
	ssdpAddr, err := net.ResolveUDPAddr("udp4", ssdpAddress)
	if err != nil {
		return nil, eris.Wrap(err, "failed to resolve SSDP address")
	}

	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, eris.Wrap(err, "failed to open SSDP socket")
	}
	defer conn.Close()

	if _, err = conn.WriteToUDP([]byte(discoverMSG), ssdpAddr); err != nil {
		return nil, eris.Wrap(err, "failed to write discover message to SSDP address")
	}

	deadline := time.Now().Add(discoverTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, eris.Wrap(err, "failed to set read deadline for SSDP connection")
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	devices := make([]DeviceInfo, 0)
	seen := make(map[string]bool)
	buf := make([]byte, 2048)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				break
			}
			return devices, eris.Wrap(err, "failed to read from SSDP connection")
		}

		info, err := parseDiscoveryResponse(string(buf[:n]))
		if err != nil {
			continue
		}
		key := info.ID
		if key == "" {
			key = info.Addr.String()
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		devices = append(devices, info)
	}

	if err := ctx.Err(); err != nil {
		return devices, eris.Wrap(err, "discovery cancelled")
	}

	return devices, nil
}

func parseDiscoveryResponse(resp string) (DeviceInfo, error) {
	var (
		info     DeviceInfo
		hasAddr  bool
		lineErrs []error
	)

	for line := range strings.SplitSeq(resp, lineEnding) {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "location":
			address, ok := strings.CutPrefix(value, "yeelight://")
			if !ok {
				lineErrs = append(lineErrs, eris.Errorf("unexpected location %q", value))
				continue
			}
			addr, err := netip.ParseAddrPort(address)
			if err != nil {
				lineErrs = append(lineErrs, eris.Wrap(err, "failed to parse light address"))
				continue
			}
			info.Addr = addr
			hasAddr = true
		case "id":
			info.ID = value
		case "name":
			info.Name = value
		case "model":
			info.Model = value
		case "fw_ver":
			info.FirmwareVersion = value
		case "power":
			info.Power = value
		case "bright":
			brightness, err := strconv.Atoi(value)
			if err != nil {
				lineErrs = append(lineErrs, eris.Wrap(err, "failed to convert brightness"))
				continue
			}
			info.Brightness = brightness
		case "support":
			info.Support = strings.Fields(value)
		}
	}

	if !hasAddr {
		if len(lineErrs) > 0 {
			return DeviceInfo{}, eris.Wrap(errors.Join(lineErrs...), "discovery reply has no usable location")
		}
		return DeviceInfo{}, eris.New("discovery reply has no location")
	}

	return info, nil
}
