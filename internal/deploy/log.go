package deploy

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Log is the append-only deployment attempt log backed by sqlite.
type Log struct {
	db *sql.DB
}

// OpenLog opens (and if needed creates) the attempt log at path.
func OpenLog(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	l := &Log{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) migrate() error {
	_, err := l.db.Exec(`
CREATE TABLE IF NOT EXISTS deployments (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  attempt_id TEXT NOT NULL,
  tag TEXT NOT NULL,
  instance TEXT NOT NULL,
  status TEXT NOT NULL,
  detail TEXT NOT NULL DEFAULT '',
  at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deployments_status ON deployments(status);
`)
	return err
}

// Append inserts one transition row. Rows are never updated or deleted.
func (l *Log) Append(ctx context.Context, r Record) error {
	at := r.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO deployments (attempt_id, tag, instance, status, detail, at) VALUES (?,?,?,?,?,?);",
		r.AttemptID, r.Tag, r.Instance, string(r.Status), r.Detail, at)
	return err
}

// History returns the most recent n transitions, newest first.
func (l *Log) History(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := l.db.QueryContext(ctx,
		"SELECT seq, attempt_id, tag, instance, status, detail, at FROM deployments ORDER BY seq DESC LIMIT ?;", n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		var status string
		if err := rows.Scan(&r.Seq, &r.AttemptID, &r.Tag, &r.Instance, &status, &r.Detail, &r.At); err != nil {
			return nil, err
		}
		r.Status = Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LastHealthyTag returns the tag of the most recent Healthy transition for
// instance, or "" when none exists.
func (l *Log) LastHealthyTag(ctx context.Context, instance string) (string, error) {
	row := l.db.QueryRowContext(ctx,
		"SELECT tag FROM deployments WHERE status=? AND instance=? ORDER BY seq DESC LIMIT 1;",
		string(StatusHealthy), instance)
	var tag string
	if err := row.Scan(&tag); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return tag, nil
}

// PreviousHealthyTag returns the most recent Healthy tag distinct from the
// current one, used as the rollback target.
func (l *Log) PreviousHealthyTag(ctx context.Context, instance string) (string, error) {
	cur, err := l.LastHealthyTag(ctx, instance)
	if err != nil || cur == "" {
		return "", err
	}
	row := l.db.QueryRowContext(ctx,
		"SELECT tag FROM deployments WHERE status=? AND instance=? AND tag<>? ORDER BY seq DESC LIMIT 1;",
		string(StatusHealthy), instance, cur)
	var tag string
	if err := row.Scan(&tag); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return tag, nil
}

func (l *Log) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}
