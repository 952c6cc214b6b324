// Package id provides ID generation for the chat session client.
//
// IDs are prefixed ULIDs:
//   - Sortable: messages created later in a session sort after earlier ones
//   - Prefixed: msg_*, att_*, sess_* keep logs readable
//   - Session IDs are prefixed random UUIDs
//   - Opaque: callers must not parse anything but the prefix
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// MessageID identifies a chat message within a session
type MessageID string

// AttachmentID identifies an image attachment
type AttachmentID string

// SessionID identifies one session controller instance
type SessionID string

const (
	MessagePrefix    = "msg"
	AttachmentPrefix = "att"
	SessionPrefix    = "sess"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator whose IDs increase monotonically
// within the same millisecond.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source
// Useful for testing with deterministic entropy
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewMessageID generates a new message ID
func NewMessageID() MessageID {
	return MessageID(Default().GenerateWithPrefix(MessagePrefix))
}

// NewAttachmentID generates a new attachment ID
func NewAttachmentID() AttachmentID {
	return AttachmentID(Default().GenerateWithPrefix(AttachmentPrefix))
}

// NewSessionID generates a new session ID. Sessions are not ordered, so a
// random UUID is used instead of a ULID.
func NewSessionID() SessionID {
	return SessionID(SessionPrefix + "_" + uuid.NewString())
}

func (id MessageID) String() string    { return string(id) }
func (id AttachmentID) String() string { return string(id) }
func (id SessionID) String() string    { return string(id) }

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// Parse parses a ULID string
func Parse(id string) (ulid.ULID, error) {
	return ulid.Parse(id)
}

// Timestamp extracts the timestamp from a ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
