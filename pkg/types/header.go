package types

import (
	"bytes"
	"fmt"

	"github.com/jhillyerd/enmime"
)

// Header represents one message in the currently open mailbox
type Header struct {
	// Index is the 1-based position within the open mailbox. It is only
	// valid for this session and is not stable across re-opens.
	Index uint32

	// UID is the server-stable message identifier.
	UID uint32

	Size  uint32
	Flags []string

	// Literal holds the raw header bytes as fetched; parsing is deferred
	// until a caller actually needs envelope fields.
	Literal []byte
}

// Summary parses the header literal and returns the Subject and From fields
func (h *Header) Summary() (subject, from string, err error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(h.Literal))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse header: %w", err)
	}
	return env.GetHeader("Subject"), env.GetHeader("From"), nil
}

// HasFlag reports whether the message carries the given flag
func (h *Header) HasFlag(flag string) bool {
	for _, f := range h.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
