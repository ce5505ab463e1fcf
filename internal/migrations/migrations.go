// Package migrations owns the ask-log schema. Scripts are embedded and
// applied in version order; each applied version is recorded with its
// checksum so that edited scripts are caught before they run again.
package migrations

import (
	"cmp"
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const historyTable = "biagent_schema_migrations"

// ErrChecksumMismatch means an applied script was edited after it ran.
var ErrChecksumMismatch = errors.New("migration checksum mismatch")

var scriptName = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

type Runner struct {
	fsys fs.FS
}

func NewRunner() *Runner {
	return &Runner{fsys: embeddedFS}
}

// NewRunnerFS reads scripts from sql/ in fsys.
func NewRunnerFS(fsys fs.FS) *Runner {
	return &Runner{fsys: fsys}
}

// Status describes one known migration.
type Status struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
	// Drifted is set when the recorded checksum differs from the script.
	Drifted bool
}

type script struct {
	version int64
	name    string
	up      string
	down    string
}

func (s script) checksum() string {
	sum := sha256.Sum256([]byte(s.up))
	return hex.EncodeToString(sum[:])
}

type record struct {
	version   int64
	checksum  string
	appliedAt time.Time
}

// Up applies pending migrations in ascending order. steps <= 0 applies all.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	scripts, history, err := r.prepare(ctx, db)
	if err != nil {
		return 0, err
	}
	for _, s := range scripts {
		if rec, ok := history[s.version]; ok && rec.checksum != s.checksum() {
			return 0, fmt.Errorf("%w: version %d (%s)", ErrChecksumMismatch, s.version, s.name)
		}
	}

	applied := 0
	for _, s := range scripts {
		if _, ok := history[s.version]; ok {
			continue
		}
		if steps > 0 && applied == steps {
			break
		}
		err := inTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, s.up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO `+historyTable+` (version, name, checksum) VALUES ($1, $2, $3)`,
				s.version, s.name, s.checksum())
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("apply migration %d (%s): %w", s.version, s.name, err)
		}
		applied++
	}
	return applied, nil
}

// Down reverts the newest applied migrations. steps <= 0 reverts one.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	scripts, history, err := r.prepare(ctx, db)
	if err != nil {
		return 0, err
	}
	byVersion := make(map[int64]script, len(scripts))
	for _, s := range scripts {
		byVersion[s.version] = s
	}
	versions := make([]int64, 0, len(history))
	for version := range history {
		versions = append(versions, version)
	}
	slices.Sort(versions)
	slices.Reverse(versions)

	reverted := 0
	for _, version := range versions {
		if reverted == steps {
			break
		}
		s, ok := byVersion[version]
		if !ok {
			return reverted, fmt.Errorf("applied migration %d has no script", version)
		}
		err := inTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, s.down); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `DELETE FROM `+historyTable+` WHERE version = $1`, version)
			return err
		})
		if err != nil {
			return reverted, fmt.Errorf("revert migration %d (%s): %w", version, s.name, err)
		}
		reverted++
	}
	return reverted, nil
}

// Status lists every known script in version order.
func (r *Runner) Status(ctx context.Context, db *sql.DB) ([]Status, error) {
	scripts, history, err := r.prepare(ctx, db)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(scripts))
	for _, s := range scripts {
		st := Status{Version: s.version, Name: s.name}
		if rec, ok := history[s.version]; ok {
			st.Applied = true
			st.AppliedAt = rec.appliedAt
			st.Drifted = rec.checksum != s.checksum()
		}
		out = append(out, st)
	}
	return out, nil
}

func (r *Runner) prepare(ctx context.Context, db *sql.DB) ([]script, map[int64]record, error) {
	scripts, err := loadScripts(r.fsys)
	if err != nil {
		return nil, nil, err
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+historyTable+` (
	version BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	checksum TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return nil, nil, fmt.Errorf("ensure migration history: %w", err)
	}
	history, err := loadHistory(ctx, db)
	if err != nil {
		return nil, nil, err
	}
	return scripts, history, nil
}

func loadHistory(ctx context.Context, db *sql.DB) (map[int64]record, error) {
	rows, err := db.QueryContext(ctx, `SELECT version, checksum, applied_at FROM `+historyTable)
	if err != nil {
		return nil, fmt.Errorf("query migration history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	history := map[int64]record{}
	for rows.Next() {
		var rec record
		if err := rows.Scan(&rec.version, &rec.checksum, &rec.appliedAt); err != nil {
			return nil, fmt.Errorf("scan migration history: %w", err)
		}
		history[rec.version] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration history: %w", err)
	}
	return history, nil
}

func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// loadScripts pairs NNNNNN_name.up.sql with its .down.sql. Files that do not
// follow the naming scheme are ignored.
func loadScripts(fsys fs.FS) ([]script, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}

	byVersion := map[int64]*script{}
	for _, entry := range entries {
		m := scriptName.FindStringSubmatch(entry.Name())
		if entry.IsDir() || m == nil {
			continue
		}
		version, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %q: %w", entry.Name(), err)
		}
		body, err := fs.ReadFile(fsys, "sql/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", entry.Name(), err)
		}

		s, ok := byVersion[version]
		if !ok {
			s = &script{version: version, name: m[2]}
			byVersion[version] = s
		} else if s.name != m[2] {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", version, s.name, m[2])
		}
		if m[3] == "up" {
			s.up = string(body)
		} else {
			s.down = string(body)
		}
	}

	scripts := make([]script, 0, len(byVersion))
	for _, s := range byVersion {
		if strings.TrimSpace(s.up) == "" {
			return nil, fmt.Errorf("migration %d (%s) missing up SQL", s.version, s.name)
		}
		if strings.TrimSpace(s.down) == "" {
			return nil, fmt.Errorf("migration %d (%s) missing down SQL", s.version, s.name)
		}
		scripts = append(scripts, *s)
	}
	slices.SortFunc(scripts, func(a, b script) int { return cmp.Compare(a.version, b.version) })
	return scripts, nil
}
