// Package journal implements the Recommendation Journal (SPEC_FULL.md,
// "Supplemental features"): an optional, append-only record of each solve
// attempt made within one Optimize call, kept for post-hoc diagnostics and
// offline replay of "why did this recommendation come back infeasible".
//
// This is diagnostic data about the solving process, not the
// product/crop/config persistence spec.md places out of scope. A nil
// Journal is a no-op; the Core Optimizer never requires one.
package journal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded solve attempt.
type Entry struct {
	ID             uuid.UUID
	RequestID      uuid.UUID // groups every attempt made within one Optimize call
	NToleranceKG   int
	MaxProducts    int
	LPDigest       string // sha256 of the LP text, for dedup/debugging without storing the LP itself
	Status         string // "optimal", "infeasible" (solver.Status), or a PoolErrorKind string
	DurationMS     int64
	CutsApplied    int
	RecordedAt     time.Time
}

// Journal is the append-only sink the Core Optimizer writes solve attempts
// to. Implementations must be safe for concurrent use.
type Journal interface {
	Record(ctx context.Context, e Entry) error

	// ForRequest returns every entry recorded under the given request id,
	// in the order they were recorded.
	ForRequest(ctx context.Context, requestID uuid.UUID) ([]Entry, error)
}

// Digest returns the hex-encoded sha256 of lp, suitable for Entry.LPDigest.
func Digest(lp string) string {
	sum := sha256.Sum256([]byte(lp))
	return hex.EncodeToString(sum[:])
}

// NewEntry builds an Entry with a fresh ID and RecordedAt set to now.
func NewEntry(requestID uuid.UUID, nTol, maxProducts int, lp, status string, duration time.Duration, cutsApplied int) Entry {
	return Entry{
		ID:           uuid.New(),
		RequestID:    requestID,
		NToleranceKG: nTol,
		MaxProducts:  maxProducts,
		LPDigest:     Digest(lp),
		Status:       status,
		DurationMS:   duration.Milliseconds(),
		CutsApplied:  cutsApplied,
		RecordedAt:   time.Now(),
	}
}
