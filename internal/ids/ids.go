// Package ids generates the identifiers used across the service: UUIDs for
// prediction results and time-sortable ULIDs for bus messages.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewPredictionID returns a fresh UUIDv4 string. Every prediction result
// carries a distinct one, regardless of input.
func NewPredictionID() string {
	return uuid.NewString()
}

// NewMessageID returns a time-sortable ULID encoded as a 26-character string,
// used as the bus message identifier.
func NewMessageID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}
