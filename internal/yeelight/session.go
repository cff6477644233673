package yeelight

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cybre/yeelight-audio-sync/internal/config"
	"github.com/cybre/yeelight-audio-sync/internal/observe"
)

// State is a Session's lifecycle position.
type State uint8

const (
	StateIdle State = iota
	StateModeRequested
	StateAwaitingPeer
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateModeRequested:
		return "mode_requested"
	case StateAwaitingPeer:
		return "awaiting_peer"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const transitionEffect = "smooth"

// TeardownResult records what went wrong during teardown. Both fields are
// informational; teardown itself never fails.
type TeardownResult struct {
	// LocalErr joins failures closing our own sockets.
	LocalErr error
	// RemoteErr is the failure asking the light to leave music mode.
	RemoteErr error
}

// Session owns one music-mode session with one light. It is not safe for
// concurrent use.
type Session struct {
	addr      string
	cfg       config.DeviceConfig
	transport Transport
	logger    *slog.Logger
	metrics   *observe.Metrics
	now       func() time.Time

	state         State
	listener      net.Listener
	conn          net.Conn
	localIP       netip.Addr
	lastCommandID int
	lastSend      time.Time
	failed        error
}

// SessionOption configures optional Session behaviour.
type SessionOption func(*Session)

// WithTransport replaces the network transport.
func WithTransport(t Transport) SessionOption {
	return func(s *Session) { s.transport = t }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithMetrics records command and error counts on m.
func WithMetrics(m *observe.Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// WithClock replaces time.Now for the rate limiter.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession prepares a session with the light at device. No sockets are
// opened until Start.
func NewSession(device netip.AddrPort, cfg config.DeviceConfig, opts ...SessionOption) *Session {
	s := &Session{
		addr:      device.String(),
		cfg:       cfg,
		transport: NetTransport{ProbeAddress: cfg.ProbeAddress},
		logger:    slog.Default(),
		metrics:   observe.Noop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// LocalIP is the address advertised to the light, valid after Start.
func (s *Session) LocalIP() netip.Addr {
	return s.localIP
}

// Start enables music mode and waits for the light to connect back.
func (s *Session) Start(ctx context.Context) error {
	if s.state != StateIdle {
		return eris.Wrapf(ErrSessionClosed, "cannot start session in state %s", s.state)
	}

	if err := s.start(ctx); err != nil {
		s.metrics.RecordSessionError(ctx, errorKind(err))
		return err
	}

	s.logger.Info("music mode enabled",
		slog.String("addr", s.addr),
		slog.String("local_ip", s.localIP.String()),
		slog.String("peer", s.conn.RemoteAddr().String()),
	)

	return nil
}

func (s *Session) start(ctx context.Context) error {
	ip, err := s.transport.LocalIP(ctx)
	if err != nil {
		return eris.Wrapf(ErrConnect, "failed to determine local address: %v", err)
	}
	s.localIP = ip

	ln, err := s.transport.Listen(ctx, net.JoinHostPort("0.0.0.0", strconv.Itoa(s.cfg.MusicPort)))
	if err != nil {
		return eris.Wrapf(ErrConnect, "failed to start music mode listener: %v", err)
	}
	s.listener = ln

	port := s.cfg.MusicPort
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok && tcpAddr.Port != 0 {
		port = tcpAddr.Port
	}

	s.state = StateModeRequested
	resp, err := exchange(ctx, s.transport, s.addr, s.cfg.ConnectTimeout,
		newCommand(s.nextCommandID(), "set_music", 1, ip.String(), port), s.logger)
	if err != nil {
		return eris.Wrap(err, "failed to enable music mode")
	}
	if err := checkAck(resp); err != nil {
		return err
	}

	s.state = StateAwaitingPeer
	s.logger.Debug("waiting for light to connect back", slog.Int("port", port))

	conn, err := s.accept(ctx)
	if err != nil {
		return err
	}

	s.conn = conn
	s.closeListener()
	s.state = StateActive

	return nil
}

type acceptResult struct {
	conn net.Conn
	err  error
}

func (s *Session) accept(ctx context.Context) (net.Conn, error) {
	ln := s.listener
	results := make(chan acceptResult, 1)
	go func() {
		conn, err := ln.Accept()
		results <- acceptResult{conn: conn, err: err}
	}()

	timer := time.NewTimer(s.cfg.AcceptTimeout)
	defer timer.Stop()

	abandon := func() {
		s.closeListener()
		go func() {
			if r := <-results; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
	}

	select {
	case r := <-results:
		if r.err != nil {
			return nil, eris.Wrapf(ErrConnect, "failed to accept connection from light: %v", r.err)
		}
		return r.conn, nil
	case <-timer.C:
		abandon()
		return nil, eris.Wrapf(ErrAcceptTimeout, "no connection within %s", s.cfg.AcceptTimeout)
	case <-ctx.Done():
		abandon()
		return nil, eris.Wrap(ctx.Err(), "stopped waiting for light to connect back")
	}
}

// Send transmits a color and brightness unless the previous transmission was
// less than the command interval ago. It reports whether anything was sent.
func (s *Session) Send(ctx context.Context, hue, saturation, brightness int) (bool, error) {
	switch s.state {
	case StateActive:
	case StateClosed:
		return false, ErrSessionClosed
	default:
		return false, eris.Wrapf(ErrNotActive, "session is %s", s.state)
	}
	if s.failed != nil {
		return false, s.failed
	}

	now := s.now()
	if !s.lastSend.IsZero() && now.Sub(s.lastSend) < s.cfg.CommandInterval {
		s.metrics.CommandsThrottled.Add(ctx, 1)
		return false, nil
	}

	hsv := newCommand(s.nextCommandID(), "set_hsv", hue, saturation, transitionEffect, s.cfg.TransitionMs)
	bright := newCommand(s.nextCommandID(), "set_bright", brightness, transitionEffect, s.cfg.TransitionMs)

	var payload []byte
	for _, cmd := range []command{hsv, bright} {
		text, err := cmd.String()
		if err != nil {
			return false, err
		}
		payload = append(payload, text...)
	}

	// Wall clock: net deadlines ignore the injected clock.
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.ConnectTimeout)); err != nil {
		s.failed = eris.Wrapf(ErrSendFailed, "%v", err)
		s.metrics.RecordSessionError(ctx, errorKind(s.failed))
		return false, s.failed
	}
	if _, err := s.conn.Write(payload); err != nil {
		s.failed = eris.Wrapf(ErrSendFailed, "%v", err)
		s.metrics.RecordSessionError(ctx, errorKind(s.failed))
		return false, s.failed
	}

	s.lastSend = now
	s.metrics.CommandsSent.Add(ctx, 1)

	return true, nil
}

// Teardown closes every socket and asks the light to leave music mode. It is
// safe to call from any state and more than once.
func (s *Session) Teardown(ctx context.Context) TeardownResult {
	if s.state == StateClosed {
		return TeardownResult{}
	}
	prev := s.state
	s.state = StateClosed

	var result TeardownResult
	var localErrs []error
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			localErrs = append(localErrs, eris.Wrap(err, "failed to close music connection"))
		}
		s.conn = nil
	}
	if err := s.closeListener(); err != nil {
		localErrs = append(localErrs, err)
	}
	result.LocalErr = errors.Join(localErrs...)

	// The light was never asked to enable music mode.
	if prev == StateIdle {
		return result
	}

	resp, err := exchange(ctx, s.transport, s.addr, s.cfg.DisableTimeout,
		newCommand(s.nextCommandID(), "set_music", 0), s.logger)
	if err == nil {
		err = checkAck(resp)
	}
	if err != nil {
		result.RemoteErr = eris.Wrap(err, "failed to disable music mode")
	}

	if result.LocalErr != nil {
		s.logger.Warn("failed to release music mode sockets", slog.Any("error", result.LocalErr))
	}
	if result.RemoteErr != nil {
		s.logger.Warn("failed to disable music mode", slog.String("addr", s.addr), slog.Any("error", result.RemoteErr))
	} else {
		s.logger.Info("music mode disabled", slog.String("addr", s.addr))
	}

	return result
}

func (s *Session) closeListener() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	s.listener = nil
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return eris.Wrap(err, "failed to close music listener")
	}
	return nil
}

func (s *Session) nextCommandID() int {
	s.lastCommandID++

	return s.lastCommandID
}
