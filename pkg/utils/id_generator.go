package utils

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// IDGenerator is the single place where identities are assigned.
// Entities (transactions, accounts, balances) get UUIDs; ledger entries get
// ULIDs so they sort by creation time within and across postings.
type IDGenerator interface {
	NewEntityID() string
	NewEntryID() string
}

// DefaultIDGenerator generates UUIDv4 entity ids and monotonic ULID entry ids.
type DefaultIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewIDGenerator creates a generator backed by crypto/rand.
func NewIDGenerator() *DefaultIDGenerator {
	return &DefaultIDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

func (g *DefaultIDGenerator) NewEntityID() string {
	return uuid.NewString()
}

// NewEntryID is safe for concurrent use; monotonic entropy is not.
func (g *DefaultIDGenerator) NewEntryID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy).String()
}

// ========================================
// VALIDATION
// ========================================

func IsEntityID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func IsEntryID(s string) bool {
	if len(s) != ulid.EncodedSize {
		return false
	}
	_, err := ulid.ParseStrict(s)
	return err == nil
}
