package yeelight

import (
	"context"
	"net"
	"net/netip"

	"github.com/rotisserie/eris"
)

// Transport opens the sockets a session needs.
type Transport interface {
	// DialControl opens a TCP connection to the light's control port.
	DialControl(ctx context.Context, addr string) (net.Conn, error)
	// Listen opens the TCP listener the light connects back to.
	Listen(ctx context.Context, addr string) (net.Listener, error)
	// LocalIP returns the address the light should connect back to.
	LocalIP(ctx context.Context) (netip.Addr, error)
}

// NetTransport is the Transport backed by the operating system's network stack.
type NetTransport struct {
	// ProbeAddress is "connected" over UDP to learn the outbound interface.
	// No packet is sent.
	ProbeAddress string
}

func (t NetTransport) DialControl(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

func (t NetTransport) Listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", addr)
}

func (t NetTransport) LocalIP(ctx context.Context) (netip.Addr, error) {
	probe := t.ProbeAddress
	if probe == "" {
		probe = defaultProbeAddress
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp4", probe)
	if err != nil {
		return netip.Addr{}, eris.Wrap(err, "failed to probe outbound interface")
	}
	defer conn.Close()

	udpAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.Addr{}, eris.Errorf("unexpected local address type %T", conn.LocalAddr())
	}

	ip, ok := netip.AddrFromSlice(udpAddr.IP)
	if !ok {
		return netip.Addr{}, eris.Errorf("invalid local address %s", udpAddr.IP)
	}

	return ip.Unmap(), nil
}
