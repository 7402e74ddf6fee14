// Package sql stores records in a relational table through uptrace/bun.
// SQLite and PostgreSQL are supported; see OpenSQLite and OpenPostgres.
package sql

import (
	"context"
	stdsql "database/sql"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/unkn0wn-root/entrycache/backend"
)

// row is the persisted form of a backend.Record. Timestamps are Unix nanoseconds,
// 0 meaning unset.
type row struct {
	bun.BaseModel `bun:"table:entrycache_records,alias:r"`

	Identifier   string   `bun:"identifier,pk"`
	CreatedAt    int64    `bun:"created_at,notnull"`
	ExpiresAt    int64    `bun:"expires_at,notnull"`
	Dependencies []string `bun:"dependencies"`
	Handler      string   `bun:"handler,notnull"`
	Contents     []byte   `bun:"contents"`
}

func toRow(rec backend.Record) row {
	return row{
		Identifier:   rec.Identifier,
		CreatedAt:    unixNano(rec.CreatedAt),
		ExpiresAt:    unixNano(rec.ExpiresAt),
		Dependencies: rec.Dependencies,
		Handler:      rec.Handler,
		Contents:     rec.Contents,
	}
}

func (r row) record() backend.Record {
	return backend.Record{
		Identifier:   r.Identifier,
		CreatedAt:    fromUnixNano(r.CreatedAt),
		ExpiresAt:    fromUnixNano(r.ExpiresAt),
		Dependencies: r.Dependencies,
		Handler:      r.Handler,
		Contents:     r.Contents,
	}
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

type Config struct {
	DB *bun.DB
	// CreateTable creates the records table and its expiry index when missing.
	CreateTable bool
	Now         func() time.Time
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DB, validation.NotNil),
	)
}

type SQL struct {
	db  *bun.DB
	now func() time.Time
}

var (
	_ backend.Backend     = (*SQL)(nil)
	_ backend.BatchReader = (*SQL)(nil)
)

func New(ctx context.Context, cfg Config) (*SQL, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &SQL{db: cfg.DB, now: cfg.Now}
	if cfg.CreateTable {
		if err := s.createTable(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// OpenSQLite opens dsn with mattn/go-sqlite3. For ":memory:" databases keep a single
// connection (db.SetMaxOpenConns(1)) or every connection sees its own database.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := stdsql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// OpenPostgres opens dsn with lib/pq.
func OpenPostgres(dsn string) (*bun.DB, error) {
	sqldb, err := stdsql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func (s *SQL) createTable(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*row)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	_, err := s.db.NewCreateIndex().
		Model((*row)(nil)).
		Index("entrycache_records_expires_at_idx").
		IfNotExists().
		Column("expires_at").
		Exec(ctx)
	return err
}

func (s *SQL) Write(ctx context.Context, rec backend.Record) error {
	if rec.Identifier == "" {
		return errors.New("sql backend: empty identifier")
	}
	r := toRow(rec)
	_, err := s.db.NewInsert().
		Model(&r).
		On("CONFLICT (identifier) DO UPDATE").
		Set("created_at = EXCLUDED.created_at").
		Set("expires_at = EXCLUDED.expires_at").
		Set("dependencies = EXCLUDED.dependencies").
		Set("handler = EXCLUDED.handler").
		Set("contents = EXCLUDED.contents").
		Exec(ctx)
	return err
}

func (s *SQL) Read(ctx context.Context, identifier string) (backend.Record, bool, error) {
	var r row
	err := s.db.NewSelect().Model(&r).Where("identifier = ?", identifier).Limit(1).Scan(ctx)
	if errors.Is(err, stdsql.ErrNoRows) {
		return backend.Record{}, false, nil
	}
	if err != nil {
		return backend.Record{}, false, err
	}
	return r.record(), true, nil
}

// ReadMany resolves identifiers with one IN query.
func (s *SQL) ReadMany(ctx context.Context, identifiers []string) (map[string]backend.Record, error) {
	out := make(map[string]backend.Record, len(identifiers))
	if len(identifiers) == 0 {
		return out, nil
	}
	var rows []row
	if err := s.db.NewSelect().Model(&rows).Where("identifier IN (?)", bun.In(identifiers)).Scan(ctx); err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.Identifier] = r.record()
	}
	return out, nil
}

func (s *SQL) Remove(ctx context.Context, identifier string) error {
	_, err := s.db.NewDelete().Model((*row)(nil)).Where("identifier = ?", identifier).Exec(ctx)
	return err
}

func (s *SQL) RemoveAll(ctx context.Context, section string) error {
	q := s.db.NewDelete().Model((*row)(nil))
	if section == "" {
		q = q.Where("1 = 1")
	} else {
		q = q.Where("identifier = ? OR identifier LIKE ? ESCAPE '!'",
			section, escapeLike(section+backend.SectionSeparator)+"%")
	}
	_, err := q.Exec(ctx)
	return err
}

// Purge deletes every record already expired and returns how many were removed.
// Nothing else removes them from the table: Get only deletes the records it reads.
func (s *SQL) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*row)(nil)).
		Where("expires_at > 0 AND expires_at < ?", s.now().UnixNano()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the database handle.
func (s *SQL) Close(context.Context) error {
	return s.db.Close()
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string { return likeEscaper.Replace(s) }
