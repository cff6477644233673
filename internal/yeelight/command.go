package yeelight

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

type command struct {
	ID     int    `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

func newCommand(id int, method string, params ...any) command {
	if params == nil {
		params = []any{}
	}

	return command{
		ID:     id,
		Method: method,
		Params: params,
	}
}

func (c *command) String() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", eris.Wrap(err, "failed to marshal light command")
	}

	return string(b) + lineEnding, nil
}

type commandError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *commandError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

type commandResult struct {
	ID     int           `json:"id"`
	Result []any         `json:"result"`
	Error  *commandError `json:"error"`
}

// checkAck accepts any response containing "ok". Otherwise it reports the
// first decodable error object, or the raw text.
func checkAck(raw string) error {
	if strings.Contains(raw, "ok") {
		return nil
	}

	for line := range strings.SplitSeq(raw, lineEnding) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var result commandResult
		if err := json.Unmarshal([]byte(line), &result); err != nil {
			continue
		}
		if result.Error != nil {
			return eris.Wrapf(ErrModeRejected, "light replied with error: %s", result.Error)
		}
	}

	return eris.Wrapf(ErrModeRejected, "unexpected response %q", strings.TrimSpace(raw))
}
