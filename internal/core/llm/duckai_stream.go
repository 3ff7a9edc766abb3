package llm

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

const (
	streamDataPrefix   = "data:"
	streamDone         = "[DONE]"
	streamActionOK     = "success"
	streamActionError  = "error"
	maxStreamLineBytes = 1 << 20
)

type streamEvent struct {
	Action  string          `json:"action"`
	ID      json.RawMessage `json:"id"`
	Message string          `json:"message"`
	Created json.RawMessage `json:"created"`
	Status  int             `json:"status"`
	Type    string          `json:"type"`
}

// streamResult is the folded state of one chat response stream.
type streamResult struct {
	ID      string
	Created string
	Message string
	// Set when the stream carried an error event.
	ErrStatus int
	ErrType   string
	// Done is false when the stream closed without the terminator.
	Done bool
}

// readEventStream folds `data: <json>` lines until the terminator or EOF.
// Lines that are not data events or do not parse are skipped. A read error
// after some text has arrived ends the fold with what was accumulated.
func readEventStream(r io.Reader, logger *zerolog.Logger) (streamResult, error) {
	var (
		res     streamResult
		message strings.Builder
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, streamDataPrefix) {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, streamDataPrefix))
		if data == streamDone {
			res.Done = true

			break
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			logger.Debug().Err(err).Str("data", data).Msg("skipping unparsable stream event")

			continue
		}

		switch ev.Action {
		case streamActionOK:
			if res.ID == "" {
				res.ID = rawScalar(ev.ID)
			}

			if res.Created == "" {
				res.Created = rawScalar(ev.Created)
			}

			message.WriteString(ev.Message)
		case streamActionError:
			res.ErrStatus = ev.Status
			res.ErrType = ev.Type
		}
	}

	res.Message = message.String()

	if err := scanner.Err(); err != nil {
		if res.Message == "" {
			return res, err
		}

		logger.Warn().Err(err).Int(logKeyBytes, len(res.Message)).Msg("chat stream interrupted, keeping partial message")
	}

	return res, nil
}

// rawScalar renders a JSON scalar without quotes.
func rawScalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	if string(raw) == "null" {
		return ""
	}

	return string(raw)
}
