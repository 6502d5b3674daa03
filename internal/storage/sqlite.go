package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"testimpact/internal/graph"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			saved_at INTEGER,
			link_count INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			kind INTEGER,
			actor TEXT,
			action TEXT,
			feature_path TEXT,
			scenario_line INTEGER,
			location TEXT,
			special INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS links (
			caller_id TEXT,
			callee_id TEXT,
			type TEXT,
			PRIMARY KEY (caller_id, callee_id, type)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_links_type ON links(type);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveGraph replaces the stored snapshot. Nodes are written once per
// identity; the location and special flag of the first occurrence win.
func (s *SQLiteStore) SaveGraph(ctx context.Context, runID string, links []graph.Link) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"links", "nodes", "runs"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	// 1. Save Nodes
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (id, kind, actor, action, feature_path, scenario_line, location, special)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	saved := make(map[graph.Identity]struct{})
	saveNode := func(n graph.Node) error {
		if _, ok := saved[n.Key()]; ok {
			return nil
		}
		saved[n.Key()] = struct{}{}
		_, err := stmt.ExecContext(ctx, n.ID(), int(n.Kind()), n.Actor(), n.Action(), n.FeaturePath(), n.ScenarioLine(), n.Location(), n.IsSpecial())
		return err
	}

	// 2. Save Links
	linkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO links (caller_id, callee_id, type) VALUES (?, ?, ?)
		ON CONFLICT(caller_id, callee_id, type) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer linkStmt.Close()

	for _, l := range links {
		if err := saveNode(l.Caller()); err != nil {
			return fmt.Errorf("failed to save node %s: %w", l.Caller(), err)
		}
		if err := saveNode(l.Callee()); err != nil {
			return fmt.Errorf("failed to save node %s: %w", l.Callee(), err)
		}
		if _, err := linkStmt.ExecContext(ctx, l.Caller().ID(), l.Callee().ID(), l.Type().String()); err != nil {
			return fmt.Errorf("failed to save link %s: %w", l, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO runs (id, saved_at, link_count) VALUES (?, ?, ?)",
		runID, time.Now().Unix(), len(links)); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadLinks(ctx context.Context) ([]graph.Link, error) {
	return s.queryLinks(ctx, "")
}

func (s *SQLiteStore) LinksByType(ctx context.Context, typ graph.LinkType) ([]graph.Link, error) {
	return s.queryLinks(ctx, typ.String())
}

func (s *SQLiteStore) RunID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, "SELECT id FROM runs LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoSnapshot
	}
	return id, err
}

func (s *SQLiteStore) queryLinks(ctx context.Context, typ string) ([]graph.Link, error) {
	nodes, err := s.loadNodes(ctx)
	if err != nil {
		return nil, err
	}

	query := "SELECT caller_id, callee_id, type FROM links"
	var args []any
	if typ != "" {
		query += " WHERE type = ?"
		args = append(args, typ)
	}
	query += " ORDER BY type, caller_id, callee_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	var links []graph.Link
	for rows.Next() {
		var callerID, calleeID, typeName string
		if err := rows.Scan(&callerID, &calleeID, &typeName); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		lt, err := graph.ParseLinkType(typeName)
		if err != nil {
			return nil, err
		}
		caller, ok := nodes[callerID]
		if !ok {
			return nil, fmt.Errorf("link references unknown node %s", callerID)
		}
		callee, ok := nodes[calleeID]
		if !ok {
			return nil, fmt.Errorf("link references unknown node %s", calleeID)
		}
		links = append(links, graph.NewLink(caller, callee, lt))
	}
	return links, rows.Err()
}

func (s *SQLiteStore) loadNodes(ctx context.Context) (map[string]graph.Node, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, kind, actor, action, feature_path, scenario_line, location, special FROM nodes")
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	nodes := make(map[string]graph.Node)
	for rows.Next() {
		var (
			id       string
			kind     int
			identity graph.Identity
			location string
			special  bool
		)
		if err := rows.Scan(&id, &kind, &identity.Actor, &identity.Action, &identity.FeaturePath, &identity.ScenarioLine, &location, &special); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		identity.Kind = graph.Kind(kind)

		opts := []graph.Option{graph.WithLocation(location)}
		if special {
			opts = append(opts, graph.Special())
		}
		n, err := graph.FromIdentity(identity, opts...)
		if err != nil {
			return nil, fmt.Errorf("stored node %s: %w", id, err)
		}
		nodes[id] = n
	}
	return nodes, rows.Err()
}
