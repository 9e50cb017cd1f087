package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// entryModel is the bun-mapped row shape for the solve_journal table,
// mirroring the teacher's *Model / ToDomain split (bun_store.go).
type entryModel struct {
	bun.BaseModel `bun:"table:solve_journal,alias:sj"`

	ID           uuid.UUID `bun:"id,pk"`
	RequestID    uuid.UUID `bun:"request_id"`
	NToleranceKG int       `bun:"n_tolerance_kg"`
	MaxProducts  int       `bun:"max_products"`
	LPDigest     string    `bun:"lp_digest"`
	Status       string    `bun:"status"`
	DurationMS   int64     `bun:"duration_ms"`
	CutsApplied  int       `bun:"cuts_applied"`
	RecordedAt   time.Time `bun:"recorded_at"`
}

func newEntryModel(e Entry) *entryModel {
	return &entryModel{
		ID:           e.ID,
		RequestID:    e.RequestID,
		NToleranceKG: e.NToleranceKG,
		MaxProducts:  e.MaxProducts,
		LPDigest:     e.LPDigest,
		Status:       e.Status,
		DurationMS:   e.DurationMS,
		CutsApplied:  e.CutsApplied,
		RecordedAt:   e.RecordedAt,
	}
}

func (m *entryModel) toEntry() Entry {
	return Entry{
		ID:           m.ID,
		RequestID:    m.RequestID,
		NToleranceKG: m.NToleranceKG,
		MaxProducts:  m.MaxProducts,
		LPDigest:     m.LPDigest,
		Status:       m.Status,
		DurationMS:   m.DurationMS,
		CutsApplied:  m.CutsApplied,
		RecordedAt:   m.RecordedAt,
	}
}

// BunJournal is a Postgres-backed Journal for services that want solve
// history to survive outside process memory, grounded directly on the
// teacher's BunStore (pgdriver connector, pgdialect, explicit
// InitSchema).
type BunJournal struct {
	db *bun.DB
}

// NewBunJournal opens a bun.DB against dsn. It does not create the
// schema; call InitSchema once at startup.
func NewBunJournal(dsn string) *BunJournal {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &BunJournal{db: db}
}

// InitSchema creates the solve_journal table if it does not already
// exist.
func (j *BunJournal) InitSchema(ctx context.Context) error {
	_, err := j.db.NewCreateTable().Model((*entryModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

func (j *BunJournal) Record(ctx context.Context, e Entry) error {
	_, err := j.db.NewInsert().Model(newEntryModel(e)).Exec(ctx)
	return err
}

func (j *BunJournal) ForRequest(ctx context.Context, requestID uuid.UUID) ([]Entry, error) {
	var models []entryModel
	err := j.db.NewSelect().Model(&models).Where("request_id = ?", requestID).Order("recorded_at ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(models))
	for i, m := range models {
		out[i] = m.toEntry()
	}
	return out, nil
}

// Close closes the underlying database connection.
func (j *BunJournal) Close() error {
	return j.db.Close()
}
