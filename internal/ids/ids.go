package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewEntity returns a UUID for ledger entities (entries, lines, open items).
func NewEntity() string {
	return uuid.NewString()
}

// NewRecord returns a lexicographically sortable identifier for append-only
// records (audit events, lineage rows) so storage order follows wall-clock order.
func NewRecord() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
