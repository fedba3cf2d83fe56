package powermem

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
)

const schemaDDL = `CREATE TABLE IF NOT EXISTS memories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL DEFAULT '',
	agent_id TEXT NOT NULL DEFAULT '',
	run_id TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// record is one stored memory row.
type record struct {
	ID        int64
	UserID    string
	AgentID   string
	RunID     string
	Content   string
	Metadata  map[string]any
	CreatedAt string
	UpdatedAt string
}

// scope restricts an operation to the identifiers the caller supplied;
// empty fields do not filter.
type scope struct {
	userID  string
	agentID string
	runID   string
}

func (s scope) empty() bool {
	return s.userID == "" && s.agentID == "" && s.runID == ""
}

// conds renders the scope as WHERE fragments.
func (s scope) conds() ([]string, []any) {
	var conds []string
	var args []any
	if s.userID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, s.userID)
	}
	if s.agentID != "" {
		conds = append(conds, "agent_id = ?")
		args = append(args, s.agentID)
	}
	if s.runID != "" {
		conds = append(conds, "run_id = ?")
		args = append(args, s.runID)
	}
	return conds, args
}

// recordStore persists memories in a local sqlite file.
type recordStore struct {
	db *sql.DB
}

func openStore(path string) (*recordStore, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?cache=shared&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errmodel.Unavailable("powermem store", err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, errmodel.Unavailable("powermem store", err)
	}
	return &recordStore{db: db}, nil
}

func (s *recordStore) Close() error { return s.db.Close() }

func (s *recordStore) insert(ctx context.Context, sc scope, content string, metadata map[string]any) (record, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	meta, err := encodeMetadata(metadata)
	if err != nil {
		return record{}, err
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO memories (user_id, agent_id, run_id, content, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		sc.userID, sc.agentID, sc.runID, content, meta, now, now)
	if err != nil {
		return record{}, errmodel.Execution("insert memory: "+err.Error(), nil)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return record{}, errmodel.Execution("insert memory: "+err.Error(), nil)
	}
	return record{
		ID: id, UserID: sc.userID, AgentID: sc.agentID, RunID: sc.runID,
		Content: content, Metadata: metadata, CreatedAt: now, UpdatedAt: now,
	}, nil
}

func (s *recordStore) get(ctx context.Context, id int64, sc scope) (record, bool, error) {
	query := "SELECT id, user_id, agent_id, run_id, content, metadata, created_at, updated_at FROM memories WHERE id = ?"
	args := []any{id}
	if conds, condArgs := sc.conds(); len(conds) > 0 {
		query += " AND " + strings.Join(conds, " AND ")
		args = append(args, condArgs...)
	}
	var r record
	var meta string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&r.ID, &r.UserID, &r.AgentID, &r.RunID, &r.Content, &meta, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return record{}, false, nil
	}
	if err != nil {
		return record{}, false, errmodel.Execution("load memory: "+err.Error(), nil)
	}
	r.Metadata = decodeMetadata(meta)
	return r, true, nil
}

func (s *recordStore) update(ctx context.Context, id int64, content *string, metadata map[string]any) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Format(time.RFC3339)}
	if content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *content)
	}
	if metadata != nil {
		meta, err := encodeMetadata(metadata)
		if err != nil {
			return err
		}
		sets = append(sets, "metadata = ?")
		args = append(args, meta)
	}
	args = append(args, id)
	if _, err := s.db.ExecContext(ctx,
		"UPDATE memories SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
		return errmodel.Execution("update memory: "+err.Error(), nil)
	}
	return nil
}

func (s *recordStore) delete(ctx context.Context, id int64, sc scope) (bool, error) {
	query := "DELETE FROM memories WHERE id = ?"
	args := []any{id}
	if conds, condArgs := sc.conds(); len(conds) > 0 {
		query += " AND " + strings.Join(conds, " AND ")
		args = append(args, condArgs...)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, errmodel.Execution("delete memory: "+err.Error(), nil)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errmodel.Execution("delete memory: "+err.Error(), nil)
	}
	return n > 0, nil
}

// ids returns the row ids inside the scope, used to keep the vector index
// in step with bulk deletes.
func (s *recordStore) ids(ctx context.Context, sc scope) ([]int64, error) {
	query := "SELECT id FROM memories"
	var args []any
	if conds, condArgs := sc.conds(); len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
		args = condArgs
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errmodel.Execution("list memory ids: "+err.Error(), nil)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errmodel.Execution("list memory ids: "+err.Error(), nil)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *recordStore) deleteAll(ctx context.Context, sc scope) (int64, error) {
	query := "DELETE FROM memories"
	var args []any
	if conds, condArgs := sc.conds(); len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
		args = condArgs
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errmodel.Execution("delete memories: "+err.Error(), nil)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errmodel.Execution("delete memories: "+err.Error(), nil)
	}
	return n, nil
}

func (s *recordStore) list(ctx context.Context, sc scope, limit, offset int) ([]record, error) {
	query := "SELECT id, user_id, agent_id, run_id, content, metadata, created_at, updated_at FROM memories"
	var args []any
	if conds, condArgs := sc.conds(); len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
		args = condArgs
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)
	return s.scanRecords(ctx, query, args...)
}

// all loads every row for the startup index rebuild.
func (s *recordStore) all(ctx context.Context) ([]record, error) {
	return s.scanRecords(ctx,
		"SELECT id, user_id, agent_id, run_id, content, metadata, created_at, updated_at FROM memories ORDER BY id")
}

func (s *recordStore) scanRecords(ctx context.Context, query string, args ...any) ([]record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errmodel.Execution("load memories: "+err.Error(), nil)
	}
	defer rows.Close()
	var out []record
	for rows.Next() {
		var r record
		var meta string
		if err := rows.Scan(&r.ID, &r.UserID, &r.AgentID, &r.RunID, &r.Content, &meta, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, errmodel.Execution("load memories: "+err.Error(), nil)
		}
		r.Metadata = decodeMetadata(meta)
		out = append(out, r)
	}
	return out, rows.Err()
}

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	enc, err := json.Marshal(m)
	if err != nil {
		return "", errmodel.InvalidArguments("metadata", "metadata must be JSON-encodable: "+err.Error())
	}
	return string(enc), nil
}

func decodeMetadata(s string) map[string]any {
	if s == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
