package yeelight

import "github.com/rotisserie/eris"

var (
	// ErrConnect covers failures to reach the light or to complete the
	// music-mode handshake at the socket level.
	ErrConnect = eris.New("light connection failed")
	// ErrModeRejected means the light answered the enable request without
	// acknowledging it.
	ErrModeRejected = eris.New("music mode rejected")
	// ErrAcceptTimeout means the light never connected back.
	ErrAcceptTimeout = eris.New("timed out waiting for light to connect back")
	// ErrSendFailed means a write on the streaming connection failed.
	ErrSendFailed = eris.New("failed to send command to light")
	ErrNotActive  = eris.New("music mode session is not active")
	// ErrSessionClosed is returned when starting a session that was already used.
	ErrSessionClosed = eris.New("music mode session is closed")
)

// errorKind names err's class for metrics.
func errorKind(err error) string {
	switch {
	case eris.Is(err, ErrModeRejected):
		return "mode_rejected"
	case eris.Is(err, ErrAcceptTimeout):
		return "accept_timeout"
	case eris.Is(err, ErrSendFailed):
		return "send_failed"
	case eris.Is(err, ErrConnect):
		return "connect"
	default:
		return "other"
	}
}
