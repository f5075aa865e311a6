// Package message holds the application logic run on every decoded text
// message: the text is parsed as JSON and sent back wrapped with the time it
// was received.
package message

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

var ErrMalformedMessage = errors.New("malformed message")

// Stamped is the reply sent for every received message.
type Stamped struct {
	Message json.RawMessage `json:"message"`
	At      time.Time       `json:"at"`
}

type Stamper struct {
	// Now defaults to time.Now.
	Now func() time.Time
}

// HandleMessage wraps a JSON text with a timestamp.
func (s Stamper) HandleMessage(text string) (string, error) {
	raw := json.RawMessage(text)
	if !json.Valid(raw) {
		return "", errors.Wrapf(ErrMalformedMessage, "%d bytes are not JSON", len(text))
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	b, err := json.Marshal(Stamped{Message: raw, At: now().UTC()})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode stamped message")
	}

	return string(b), nil
}
