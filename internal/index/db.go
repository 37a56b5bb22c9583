package index

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Zuo-Peng/ai-session-index/internal/parse"
	"github.com/Zuo-Peng/ai-session-index/internal/search"

	"modernc.org/sqlite"
)

// SQLite's LIKE, lower() and upper() fold ASCII only; term matching uses
// fold so "über" finds "Über".
func init() {
	sqlite.MustRegisterDeterministicScalarFunction("fold", 1, foldValue)
}

func foldValue(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	}
	return args[0], nil
}

// ErrNotFound is returned by Get for an unknown session id.
var ErrNotFound = errors.New("session not found")

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS sessions (
    id             TEXT PRIMARY KEY,
    file_path      TEXT UNIQUE,
    start_ts_ms    INTEGER,
    end_ts_ms      INTEGER,
    cwd            TEXT,
    title          TEXT,
    message_count  INTEGER,
    mtime          INTEGER,
    search_blob    TEXT,
    parser_version INTEGER
);

CREATE TABLE IF NOT EXISTS messages (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT,
    ts_ms      INTEGER,
    role       TEXT,
    kind       TEXT,
    text       TEXT
);

-- scan state per source file; several files may carry the same session id
CREATE TABLE IF NOT EXISTS files (
    file_path      TEXT PRIMARY KEY,
    session_id     TEXT,
    mtime          INTEGER,
    parser_version INTEGER
);

CREATE INDEX IF NOT EXISTS idx_messages_session_ts ON messages(session_id, ts_ms);
CREATE INDEX IF NOT EXISTS idx_sessions_start_ts ON sessions(start_ts_ms);
CREATE INDEX IF NOT EXISTS idx_sessions_end_ts ON sessions(end_ts_ms);
`

// DB is the per-format index store. It is a derived cache: deleting the file
// and rescanning rebuilds it.
type DB struct {
	db   *sql.DB
	path string
}

func OpenDB(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// callers serialize access; one connection keeps PRAGMAs and WAL state in one place
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	// stores created before parser_version existed
	if _, err := db.Exec("ALTER TABLE sessions ADD COLUMN parser_version INTEGER"); err != nil && !isDuplicateColumnError(err) {
		db.Close()
		return nil, fmt.Errorf("migrate parser_version: %w", err)
	}
	// stores created before the files table carried scan state on sessions
	if _, err := db.Exec(`
		INSERT OR IGNORE INTO files (file_path, session_id, mtime, parser_version)
		SELECT file_path, id, mtime, parser_version FROM sessions WHERE file_path IS NOT NULL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate files: %w", err)
	}

	return &DB{db: db, path: dbPath}, nil
}

func isDuplicateColumnError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate column") ||
		strings.Contains(errStr, "already exists")
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Path() string {
	return d.path
}

// FileState is what the store remembers about a source file.
type FileState struct {
	ID            string
	Mtime         sql.NullInt64
	ParserVersion sql.NullInt64
}

// Stale reports whether a file with the given mtime must be reparsed.
func (s *FileState) Stale(mtime int64, parserVersion int) bool {
	if s == nil || !s.Mtime.Valid || s.Mtime.Int64 < mtime {
		return true
	}
	return !s.ParserVersion.Valid || s.ParserVersion.Int64 != int64(parserVersion)
}

// FileState returns nil when filePath has never been indexed.
func (d *DB) FileState(filePath string) (*FileState, error) {
	var st FileState
	err := d.db.QueryRow(
		"SELECT session_id, mtime, parser_version FROM files WHERE file_path = ?",
		filePath,
	).Scan(&st.ID, &st.Mtime, &st.ParserVersion)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Upsert replaces everything stored for res's source file in one
// transaction. When the file previously produced a different session id, and
// that session's row still belongs to the file, it is purged first; purged
// reports whether that happened. Files sharing a session id overwrite each
// other's session row, but each keeps its own scan state.
func (d *DB) Upsert(res *parse.Result, mtime int64, parserVersion int) (purged bool, err error) {
	s := res.Session

	tx, err := d.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var prevID string
	err = tx.QueryRow(`
		SELECT f.session_id FROM files f
		JOIN sessions s ON s.id = f.session_id AND s.file_path = f.file_path
		WHERE f.file_path = ?`, s.FilePath).Scan(&prevID)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return false, fmt.Errorf("lookup %s: %w", s.FilePath, err)
	case prevID != s.ID:
		if err := deleteSession(tx, prevID); err != nil {
			return false, err
		}
		purged = true
	}

	if _, err := tx.Exec("DELETE FROM messages WHERE session_id = ?", s.ID); err != nil {
		return false, fmt.Errorf("delete messages: %w", err)
	}

	var cwd any
	if s.Cwd != "" {
		cwd = s.Cwd
	}
	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO sessions
		(id, file_path, start_ts_ms, end_ts_ms, cwd, title, message_count, mtime, search_blob, parser_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.FilePath, s.StartTsMs, s.EndTsMs, cwd, s.Title, s.MessageCount,
		mtime, res.SearchBlob, parserVersion,
	); err != nil {
		return false, fmt.Errorf("insert session: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO files (file_path, session_id, mtime, parser_version)
		VALUES (?, ?, ?, ?)`,
		s.FilePath, s.ID, mtime, parserVersion,
	); err != nil {
		return false, fmt.Errorf("record file state: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO messages (session_id, ts_ms, role, kind, text) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return false, err
	}
	defer stmt.Close()
	for _, m := range res.Messages {
		if _, err := stmt.Exec(s.ID, m.TsMs, m.Role, m.Kind, m.Text); err != nil {
			return false, fmt.Errorf("insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return purged, nil
}

func deleteSession(tx *sql.Tx, id string) error {
	if _, err := tx.Exec("DELETE FROM messages WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("purge messages of %s: %w", id, err)
	}
	if _, err := tx.Exec("DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("purge session %s: %w", id, err)
	}
	return nil
}

// SessionSummary is a session row without its search text.
type SessionSummary struct {
	ID           string `json:"id"`
	FilePath     string `json:"file_path"`
	StartTsMs    int64  `json:"start_ts_ms"`
	EndTsMs      int64  `json:"end_ts_ms"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
	Cwd          string `json:"cwd,omitempty"`
}

type MessageRow struct {
	TsMs int64  `json:"ts_ms"`
	Role string `json:"role"`
	Kind string `json:"kind"`
	Text string `json:"text"`
}

type SessionDetail struct {
	Session  SessionSummary `json:"session"`
	Messages []MessageRow   `json:"messages"`
}

type Project struct {
	Project      string `json:"project"`
	SessionCount int    `json:"session_count"`
	LastTsMs     int64  `json:"last_ts_ms"`
}

const summaryColumns = "id, file_path, start_ts_ms, end_ts_ms, title, message_count, cwd"

func scanSummary(sc interface{ Scan(...any) error }) (SessionSummary, error) {
	var (
		s               SessionSummary
		filePath, title sql.NullString
		cwd             sql.NullString
		start, end      sql.NullInt64
		count           sql.NullInt64
	)
	if err := sc.Scan(&s.ID, &filePath, &start, &end, &title, &count, &cwd); err != nil {
		return s, err
	}
	s.FilePath = filePath.String
	s.StartTsMs = start.Int64
	s.EndTsMs = end.Int64
	s.Title = title.String
	s.MessageCount = int(count.Int64)
	s.Cwd = cwd.String
	return s, nil
}

// List returns session summaries matching f. Every term must appear, ignoring
// case, in the search text, title or cwd of a session. Terms are literal:
// % and _ carry no wildcard meaning.
func (d *DB) List(f search.Filter) ([]SessionSummary, error) {
	var conditions []string
	var args []any

	if f.StartMs != nil {
		conditions = append(conditions, "start_ts_ms >= ?")
		args = append(args, *f.StartMs)
	}
	if f.EndMs != nil {
		conditions = append(conditions, "start_ts_ms <= ?")
		args = append(args, *f.EndMs)
	}
	if f.Project != "" {
		conditions = append(conditions, "cwd = ?")
		args = append(args, f.Project)
	}
	for _, term := range f.Terms {
		needle := strings.ToLower(term)
		conditions = append(conditions,
			"(instr(fold(search_blob), ?) > 0 OR instr(fold(title), ?) > 0 OR instr(fold(cwd), ?) > 0)")
		args = append(args, needle, needle, needle)
	}

	query := "SELECT " + summaryColumns + " FROM sessions"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if f.Sort == search.SortLast {
		query += " ORDER BY end_ts_ms DESC, start_ts_ms DESC"
	} else {
		query += " ORDER BY start_ts_ms DESC, end_ts_ms DESC"
	}
	query += " LIMIT ?"
	args = append(args, search.NormalizeLimit(f.Limit))

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionSummary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListProjects groups sessions by cwd, most recently started first.
func (d *DB) ListProjects(q string, limit int) ([]Project, error) {
	query := `SELECT cwd, COUNT(*), MAX(start_ts_ms) FROM sessions WHERE cwd IS NOT NULL AND cwd <> ''`
	var args []any
	if q = strings.TrimSpace(q); q != "" {
		query += " AND instr(fold(cwd), ?) > 0"
		args = append(args, strings.ToLower(q))
	}
	query += " GROUP BY cwd ORDER BY MAX(start_ts_ms) DESC LIMIT ?"
	args = append(args, search.NormalizeLimit(limit))

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		var p Project
		var last sql.NullInt64
		if err := rows.Scan(&p.Project, &p.SessionCount, &last); err != nil {
			return nil, err
		}
		p.LastTsMs = last.Int64
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Get returns a session and its messages in timestamp order, ties broken by
// file order. Unknown ids yield ErrNotFound.
func (d *DB) Get(id string) (*SessionDetail, error) {
	s, err := scanSummary(d.db.QueryRow("SELECT "+summaryColumns+" FROM sessions WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	rows, err := d.db.Query(
		"SELECT ts_ms, role, kind, text FROM messages WHERE session_id = ? ORDER BY ts_ms ASC, id ASC",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("get messages %s: %w", id, err)
	}
	defer rows.Close()

	detail := &SessionDetail{Session: s, Messages: []MessageRow{}}
	for rows.Next() {
		var m MessageRow
		var ts sql.NullInt64
		if err := rows.Scan(&ts, &m.Role, &m.Kind, &m.Text); err != nil {
			return nil, err
		}
		m.TsMs = ts.Int64
		detail.Messages = append(detail.Messages, m)
	}
	return detail, rows.Err()
}

func (d *DB) SessionCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&n)
	return n, err
}

func (d *DB) MessageCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&n)
	return n, err
}
