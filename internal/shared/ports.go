package shared

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock. All timestamps are UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator abstracts id creation for deterministic tests.
type IDGenerator interface {
	NewID() uuid.UUID
}

// UUIDGenerator is the production id source.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() uuid.UUID { return uuid.New() }
