package hub

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// KeyGenerator abstracts idempotency key generation so tests are
// deterministic.
type KeyGenerator interface {
	New() string
}

// UUIDGenerator produces random UUID keys.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
