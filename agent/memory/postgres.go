package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type PostgresConfig struct {
	DSN          string        `envconfig:"DSN"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	AutoMigrate  bool          `envconfig:"AUTO_MIGRATE" default:"true"`
}

func (c PostgresConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("%w: postgres dsn is required", contractx.ErrValidation)
	}
	return nil
}

// Open builds a bun DB over pgdriver. It does not touch the network.
func (c PostgresConfig) Open() (*bun.DB, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(c.DSN),
		pgdriver.WithDialTimeout(c.DialTimeout),
		pgdriver.WithReadTimeout(c.ReadTimeout),
		pgdriver.WithWriteTimeout(c.WriteTimeout),
	)
	return bun.NewDB(sql.OpenDB(connector), pgdialect.New()), nil
}

type summaryRow struct {
	bun.BaseModel `bun:"table:conversation_summaries,alias:cs"`

	ConversationID string    `bun:"conversation_id,pk"`
	Summary        string    `bun:"summary,notnull"`
	Version        int64     `bun:"version,notnull"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`
}

// PostgresStore keeps one row per conversation. The version column makes
// every write a compare-and-swap.
type PostgresStore struct {
	db  bun.IDB
	now func() time.Time
}

func NewPostgresStore(db bun.IDB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*summaryRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: create summary table: %v", contractx.ErrUpstream, err)
	}
	return nil
}

func (s *PostgresStore) ReadSummary(ctx context.Context, conversationID string) (contractx.Summary, error) {
	id, err := validateConversationID(conversationID)
	if err != nil {
		return contractx.Summary{}, err
	}

	var row summaryRow
	err = s.db.NewSelect().
		Model(&row).
		Where("conversation_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return contractx.Summary{}, nil
	}
	if err != nil {
		return contractx.Summary{}, fmt.Errorf("%w: select summary: %v", contractx.ErrUpstream, err)
	}
	return contractx.Summary{Text: row.Summary, Version: row.Version}, nil
}

func (s *PostgresStore) WriteSummary(ctx context.Context, conversationID string, text string, expectedVersion int64) (int64, error) {
	id, err := validateConversationID(conversationID)
	if err != nil {
		return 0, err
	}
	next := expectedVersion + 1
	now := s.now().UTC()

	var res sql.Result
	if expectedVersion == 0 {
		row := &summaryRow{ConversationID: id, Summary: text, Version: next, UpdatedAt: now}
		res, err = s.db.NewInsert().
			Model(row).
			On("CONFLICT (conversation_id) DO NOTHING").
			Exec(ctx)
	} else {
		res, err = s.db.NewUpdate().
			Model((*summaryRow)(nil)).
			Set("summary = ?", text).
			Set("version = ?", next).
			Set("updated_at = ?", now).
			Where("conversation_id = ?", id).
			Where("version = ?", expectedVersion).
			Exec(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: write summary: %v", contractx.ErrUpstream, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %v", contractx.ErrUpstream, err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("%w: conversation=%s expected=%d", contractx.ErrVersionConflict, id, expectedVersion)
	}
	return next, nil
}
