package garden

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so engine logic is deterministic in tests.
// Stored timestamps are always clock.Now().UnixMilli().
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts id generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// HashIDGenerator produces ids as the hex sha256 of a fresh UUID: random,
// fixed-width and safe as a file name.
type HashIDGenerator struct{}

func (HashIDGenerator) New() string {
	sum := sha256.Sum256([]byte(uuid.New().String()))
	return hex.EncodeToString(sum[:])
}
