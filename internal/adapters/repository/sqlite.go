package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // driver

	"github.com/okian/qualtrack/internal/domain/identity"
	"github.com/okian/qualtrack/internal/domain/model"
	"github.com/okian/qualtrack/pkg/logger"
	"github.com/okian/qualtrack/pkg/metrics"
)

const defaultTrendLimit = 100

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshot_runs (
	id           TEXT PRIMARY KEY,
	run_iso      TEXT NOT NULL UNIQUE,
	generated_at TEXT NOT NULL,
	meta         TEXT
);

CREATE TABLE IF NOT EXISTS snapshot_entries (
	id      TEXT PRIMARY KEY,
	run_id  TEXT NOT NULL REFERENCES snapshot_runs(id),
	key     TEXT NOT NULL,
	tiref   TEXT,
	name    TEXT NOT NULL,
	club    TEXT,
	rank    INTEGER NOT NULL,
	time    REAL,
	payload TEXT
);

CREATE TABLE IF NOT EXISTS personal_bests (
	id          TEXT PRIMARY KEY,
	key         TEXT NOT NULL,
	swimmer_key TEXT NOT NULL,
	name        TEXT NOT NULL,
	tiref       TEXT,
	ord         INTEGER NOT NULL,
	date        TEXT NOT NULL,
	time        REAL,
	meet        TEXT,
	venue       TEXT,
	level       TEXT
);

CREATE INDEX IF NOT EXISTS idx_snapshot_entries_run_key ON snapshot_entries(run_id, key);
CREATE INDEX IF NOT EXISTS idx_snapshot_entries_tiref ON snapshot_entries(tiref);
CREATE INDEX IF NOT EXISTS idx_personal_bests_key ON personal_bests(key, swimmer_key);
`

// SQLiteStore implements SnapshotStore using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	log   logger.Logger
	keyer identity.Keyer
}

var _ SnapshotStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens a SQLite database at dsn, configures WAL mode and applies the schema.
func NewSQLiteStore(ctx context.Context, dsn string, opts ...StoreOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: exec %s: %w", pragma, err)
		}
	}
	s := &SQLiteStore{db: db, log: logger.Nop(), keyer: identity.TirefThenName}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables when missing.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func observe(query string, start time.Time) {
	metrics.RecordRepositoryQueryLatency(query, float64(time.Since(start).Milliseconds()))
}

func nullSeconds(v model.Seconds) sql.NullFloat64 {
	f, ok := v.Get()
	return sql.NullFloat64{Float64: f, Valid: ok}
}

func fromNull(v sql.NullFloat64) model.Seconds {
	if !v.Valid {
		return model.None()
	}
	return model.Some(v.Float64)
}

// SaveRun implements SnapshotStore.SaveRun.
func (s *SQLiteStore) SaveRun(ctx context.Context, runISO string, meta map[string]string) (string, error) {
	defer observe("save_run", time.Now())

	runISO = strings.TrimSpace(runISO)
	if runISO == "" {
		return "", ErrEmptyRun
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode meta: %w", err)
	}

	query, args, err := sq.Insert("snapshot_runs").
		Columns("id", "run_iso", "generated_at", "meta").
		Values(uuid.New().String(), runISO, time.Now().UTC().Format(time.RFC3339), string(rawMeta)).
		Suffix("ON CONFLICT(run_iso) DO UPDATE SET generated_at = excluded.generated_at, meta = excluded.meta").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("sqlite: build run insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("sqlite: save run: %w", err)
	}

	query, args, err = sq.Select("id").From("snapshot_runs").Where(sq.Eq{"run_iso": runISO}).ToSql()
	if err != nil {
		return "", fmt.Errorf("sqlite: build run lookup: %w", err)
	}
	var id string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("sqlite: load run id: %w", err)
	}
	return id, nil
}

// SaveEntries implements SnapshotStore.SaveEntries.
func (s *SQLiteStore) SaveEntries(ctx context.Context, runID string, seg model.Segment, rows []model.RankedSwimmer) (err error) {
	defer observe("save_entries", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query, args, err := sq.Delete("snapshot_entries").Where(sq.Eq{"run_id": runID, "key": seg.Key()}).ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: build entries delete: %w", err)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlite: clear entries: %w", err)
	}

	if len(rows) > 0 {
		ins := sq.Insert("snapshot_entries").Columns("id", "run_id", "key", "tiref", "name", "club", "rank", "time", "payload")
		for _, row := range rows {
			payload, mErr := json.Marshal(row)
			if mErr != nil {
				return fmt.Errorf("sqlite: encode entry: %w", mErr)
			}
			ins = ins.Values(uuid.New().String(), runID, seg.Key(), row.Tiref, row.Name, row.Club, row.Rank, nullSeconds(row.Time), string(payload))
		}
		query, args, err = ins.ToSql()
		if err != nil {
			return fmt.Errorf("sqlite: build entries insert: %w", err)
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("sqlite: insert entries: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit entries: %w", err)
	}
	s.log.Debug(ctx, "stored ranking entries",
		logger.String("segment", seg.Key()),
		logger.Int("rows", len(rows)),
	)
	return nil
}

// SavePersonalBests implements SnapshotStore.SavePersonalBests.
func (s *SQLiteStore) SavePersonalBests(ctx context.Context, seg model.Segment, tl model.SwimmerTimeline) (err error) {
	defer observe("save_pbs", time.Now())

	swimmerKey := identity.TimelineKey(s.keyer, tl)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query, args, err := sq.Delete("personal_bests").Where(sq.Eq{"key": seg.Key(), "swimmer_key": swimmerKey}).ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: build pbs delete: %w", err)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlite: clear pbs: %w", err)
	}

	if len(tl.Records) > 0 {
		ins := sq.Insert("personal_bests").Columns("id", "key", "swimmer_key", "name", "tiref", "ord", "date", "time", "meet", "venue", "level")
		for i, r := range tl.Records {
			ins = ins.Values(uuid.New().String(), seg.Key(), swimmerKey, tl.Name, tl.Tiref, i, r.Date, nullSeconds(r.Time), r.Meet, r.Venue, r.Level)
		}
		query, args, err = ins.ToSql()
		if err != nil {
			return fmt.Errorf("sqlite: build pbs insert: %w", err)
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("sqlite: insert pbs: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit pbs: %w", err)
	}
	return nil
}

// PersonalBests implements SnapshotStore.PersonalBests.
func (s *SQLiteStore) PersonalBests(ctx context.Context, seg model.Segment) ([]model.SwimmerTimeline, error) {
	defer observe("load_pbs", time.Now())

	query, args, err := sq.Select("swimmer_key", "name", "tiref", "date", "time", "meet", "venue", "level").
		From("personal_bests").
		Where(sq.Eq{"key": seg.Key()}).
		OrderBy("swimmer_key", "ord").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build pbs query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query pbs: %w", err)
	}
	defer rows.Close()

	out := make([]model.SwimmerTimeline, 0)
	index := make(map[string]int)
	for rows.Next() {
		var (
			swimmerKey, name, date string
			tiref, meet, venue     sql.NullString
			level                  sql.NullString
			t                      sql.NullFloat64
		)
		if err := rows.Scan(&swimmerKey, &name, &tiref, &date, &t, &meet, &venue, &level); err != nil {
			return nil, fmt.Errorf("sqlite: scan pb: %w", err)
		}
		i, ok := index[swimmerKey]
		if !ok {
			i = len(out)
			index[swimmerKey] = i
			out = append(out, model.SwimmerTimeline{Name: name, Tiref: tiref.String})
		}
		out[i].Records = append(out[i].Records, model.PersonalBest{
			Date:  date,
			Time:  fromNull(t),
			Meet:  meet.String,
			Venue: venue.String,
			Level: level.String,
			Event: seg.Event,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: pbs rows: %w", err)
	}
	return out, nil
}

// RankingTrend implements SnapshotStore.RankingTrend. The id matches a tiref
// exactly or any part of a name. A zero segment matches every segment.
func (s *SQLiteStore) RankingTrend(ctx context.Context, seg model.Segment, swimmerID string, limit int) ([]TrendPoint, error) {
	defer observe("ranking_trend", time.Now())

	if limit <= 0 {
		limit = defaultTrendLimit
	}
	b := sq.Select("r.run_iso", "e.key", "e.rank", "e.time").
		From("snapshot_entries e").
		Join("snapshot_runs r ON r.id = e.run_id").
		Where(sq.Or{sq.Eq{"e.tiref": swimmerID}, sq.Like{"e.name": "%" + swimmerID + "%"}})
	if seg != (model.Segment{}) {
		b = b.Where(sq.Eq{"e.key": seg.Key()})
	}
	query, args, err := b.
		OrderBy("r.run_iso ASC", "e.key ASC", "e.rank ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build trend query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query trend: %w", err)
	}
	defer rows.Close()

	out := make([]TrendPoint, 0)
	for rows.Next() {
		var (
			p TrendPoint
			t sql.NullFloat64
		)
		if err := rows.Scan(&p.Date, &p.Segment, &p.Rank, &t); err != nil {
			return nil, fmt.Errorf("sqlite: scan trend: %w", err)
		}
		p.Time = fromNull(t)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: trend rows: %w", err)
	}
	return out, nil
}

// LatestRun implements SnapshotStore.LatestRun.
func (s *SQLiteStore) LatestRun(ctx context.Context) (Run, error) {
	defer observe("latest_run", time.Now())

	query, args, err := sq.Select("id", "run_iso", "generated_at", "meta").
		From("snapshot_runs").
		OrderBy("run_iso DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return Run{}, fmt.Errorf("sqlite: build latest run query: %w", err)
	}
	var (
		run  Run
		meta sql.NullString
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&run.ID, &run.RunISO, &run.GeneratedAt, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("sqlite: latest run: %w", err)
	}
	if meta.Valid && meta.String != "" && meta.String != "null" {
		if err := json.Unmarshal([]byte(meta.String), &run.Meta); err != nil {
			s.log.Warn(ctx, "discarding unreadable run meta", logger.String("run", run.ID), logger.Error(err))
		}
	}
	return run, nil
}

// ClubAppearances implements SnapshotStore.ClubAppearances. Matching is case-insensitive.
func (s *SQLiteStore) ClubAppearances(ctx context.Context, club string) ([]Appearance, error) {
	defer observe("club_appearances", time.Now())

	needle := strings.ToLower(strings.TrimSpace(club))
	query, args, err := sq.Select("r.run_iso", "e.key", "e.name", "e.tiref", "e.club", "e.rank", "e.time").
		From("snapshot_entries e").
		Join("snapshot_runs r ON r.id = e.run_id").
		Where(sq.Like{"lower(e.club)": "%" + needle + "%"}).
		OrderBy("r.run_iso ASC", "e.key ASC", "e.rank ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build club query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query club: %w", err)
	}
	defer rows.Close()

	out := make([]Appearance, 0)
	for rows.Next() {
		var (
			a           Appearance
			tiref, name sql.NullString
			clubName    sql.NullString
			t           sql.NullFloat64
		)
		if err := rows.Scan(&a.RunISO, &a.Key, &name, &tiref, &clubName, &a.Rank, &t); err != nil {
			return nil, fmt.Errorf("sqlite: scan club row: %w", err)
		}
		a.Name, a.Tiref, a.Club, a.Time = name.String, tiref.String, clubName.String, fromNull(t)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: club rows: %w", err)
	}
	return out, nil
}
