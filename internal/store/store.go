// Package store persists a session in a SQLite file so CLI invocations can
// pick up where the previous one left off.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentic-research/treeforge/api"
	"github.com/agentic-research/treeforge/internal/session"
	"github.com/agentic-research/treeforge/internal/tree"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS session (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	text TEXT NOT NULL,
	selected_node TEXT NOT NULL DEFAULT '',
	selected_file TEXT NOT NULL DEFAULT '',
	view TEXT NOT NULL DEFAULT 'prompt',
	mtime INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS history (
	stack TEXT NOT NULL,
	seq INTEGER NOT NULL,
	text TEXT NOT NULL,
	PRIMARY KEY (stack, seq)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	parent_id TEXT,
	pos INTEGER NOT NULL,
	name TEXT NOT NULL,
	display_name TEXT NOT NULL,
	kind INTEGER NOT NULL,
	comment TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	upload BLOB,
	has_upload INTEGER NOT NULL DEFAULT 0,
	expanded INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id, pos);
`

const (
	stackUndo = "undo"
	stackRedo = "redo"
)

// Store is a handle on one session database.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the database and its parent directory if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer at a time; concurrent CLI invocations wait instead of failing.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path is the database file.
func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored session with st.
func (s *Store) Save(ctx context.Context, st session.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }() // no-op after Commit

	for _, q := range []string{"DELETE FROM session", "DELETE FROM history", "DELETE FROM nodes"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session (id, text, selected_node, selected_file, view, mtime) VALUES (1, ?, ?, ?, ?, ?)`,
		st.Text, st.SelectedNode, st.SelectedFile, string(st.View), time.Now().UnixNano(),
	); err != nil {
		return fmt.Errorf("write session: %w", err)
	}

	if err := writeStack(ctx, tx, stackUndo, st.Undo); err != nil {
		return err
	}
	if err := writeStack(ctx, tx, stackRedo, st.Redo); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (id, parent_id, pos, name, display_name, kind, comment, content, upload, has_upload, expanded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	if err := writeNodes(ctx, stmt, nil, st.Tree); err != nil {
		return err
	}
	return tx.Commit()
}

func writeStack(ctx context.Context, tx *sql.Tx, stack string, texts []string) error {
	for i, text := range texts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO history (stack, seq, text) VALUES (?, ?, ?)`, stack, i, text,
		); err != nil {
			return fmt.Errorf("write %s history: %w", stack, err)
		}
	}
	return nil
}

func writeNodes(ctx context.Context, stmt *sql.Stmt, parentID *string, nodes []*tree.Node) error {
	for pos, n := range nodes {
		var upload []byte
		hasUpload := n.Upload != nil
		if hasUpload {
			upload = n.Upload
		}
		if _, err := stmt.ExecContext(ctx,
			n.ID, parentID, pos, n.Name, n.DisplayName, int(n.Kind),
			n.Comment, n.Content, upload, hasUpload, n.Expanded,
		); err != nil {
			return fmt.Errorf("write node %s: %w", n.ID, err)
		}
		if n.Kind == tree.Folder {
			id := n.ID
			if err := writeNodes(ctx, stmt, &id, n.Children); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads the stored session. ok is false when nothing has been saved
// yet.
func (s *Store) Load(ctx context.Context) (st session.State, ok bool, err error) {
	var view string
	err = s.db.QueryRowContext(ctx,
		`SELECT text, selected_node, selected_file, view FROM session WHERE id = 1`,
	).Scan(&st.Text, &st.SelectedNode, &st.SelectedFile, &view)
	if errors.Is(err, sql.ErrNoRows) {
		return session.State{}, false, nil
	}
	if err != nil {
		return session.State{}, false, fmt.Errorf("read session: %w", err)
	}
	st.View = api.ViewMode(view)

	if st.Undo, err = s.readStack(ctx, stackUndo); err != nil {
		return session.State{}, false, err
	}
	if st.Redo, err = s.readStack(ctx, stackRedo); err != nil {
		return session.State{}, false, err
	}
	if st.Tree, err = s.readNodes(ctx); err != nil {
		return session.State{}, false, err
	}
	return st, true, nil
}

func (s *Store) readStack(ctx context.Context, stack string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT text FROM history WHERE stack = ? ORDER BY seq`, stack)
	if err != nil {
		return nil, fmt.Errorf("read %s history: %w", stack, err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, rows.Err()
}

func (s *Store) readNodes(ctx context.Context) ([]*tree.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_id, name, display_name, kind, comment, content, upload, has_upload, expanded
		FROM nodes ORDER BY parent_id, pos
	`)
	if err != nil {
		return nil, fmt.Errorf("read nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*tree.Node)
	children := make(map[string][]*tree.Node)
	roots := []*tree.Node{}
	for rows.Next() {
		var (
			n         tree.Node
			parentID  sql.NullString
			kind      int
			upload    []byte
			hasUpload bool
		)
		if err := rows.Scan(&n.ID, &parentID, &n.Name, &n.DisplayName, &kind,
			&n.Comment, &n.Content, &upload, &hasUpload, &n.Expanded); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		n.Kind = tree.Kind(kind)
		if hasUpload {
			n.Upload = append([]byte{}, upload...)
		}
		if n.Kind == tree.Folder {
			n.Children = []*tree.Node{}
		}
		node := &n
		byID[n.ID] = node
		if parentID.Valid {
			children[parentID.String] = append(children[parentID.String], node)
		} else {
			roots = append(roots, node)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for id, kids := range children {
		if parent, ok := byID[id]; ok && parent.Kind == tree.Folder {
			parent.Children = kids
		}
	}
	return roots, nil
}
