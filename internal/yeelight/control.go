package yeelight

import (
	"context"
	"log/slog"
	"time"

	"github.com/rotisserie/eris"
)

// responseBufferSize bounds a single control-port response read.
const responseBufferSize = 1024

// exchange opens a short-lived control connection, writes cmd and returns
// the first chunk the light sends back. The whole exchange shares one
// deadline.
func exchange(ctx context.Context, transport Transport, addr string, timeout time.Duration, cmd command, logger *slog.Logger) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := cmd.String()
	if err != nil {
		return "", err
	}

	conn, err := transport.DialControl(ctx, addr)
	if err != nil {
		return "", eris.Wrapf(ErrConnect, "failed to dial %s: %v", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return "", eris.Wrapf(ErrConnect, "failed to set deadline: %v", err)
		}
	}

	logger.Debug("executing command",
		slog.String("addr", addr),
		slog.Int("id", cmd.ID),
		slog.String("method", cmd.Method),
		slog.Any("params", cmd.Params),
	)

	if _, err := conn.Write([]byte(text)); err != nil {
		return "", eris.Wrapf(ErrConnect, "failed to write %s: %v", cmd.Method, err)
	}

	buf := make([]byte, responseBufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		return "", eris.Wrapf(ErrConnect, "failed to read %s response: %v", cmd.Method, err)
	}

	resp := string(buf[:n])
	logger.Debug("received response from light",
		slog.String("addr", addr),
		slog.String("response", resp),
	)

	return resp, nil
}
