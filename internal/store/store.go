package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"academy/contentsync/internal/content"
)

type Store struct {
	db *DB
}

func New(db *DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *DB {
	return s.db
}

func (s *Store) Dialect() Dialect {
	return s.db.Dialect
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// GetResource returns a live resource by id.
func (s *Store) GetResource(ctx context.Context, id string) (Resource, error) {
	return getResource(ctx, s.db.DB, s.db.Dialect, id)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getResource(ctx context.Context, q queryer, d Dialect, id string) (Resource, error) {
	query := fmt.Sprintf(`SELECT id, type, %s FROM content_resources WHERE id = ? AND deleted_at IS NULL`, d.jsonText("fields"))
	var (
		res Resource
		raw string
	)
	err := q.QueryRowContext(ctx, d.rebind(query), id).Scan(&res.ID, &res.Type, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Resource{}, fmt.Errorf("%w: %s", ErrResourceNotFound, id)
	}
	if err != nil {
		return Resource{}, fmt.Errorf("read resource %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(raw), &res.Fields); err != nil {
		return Resource{}, fmt.Errorf("decode fields of %s: %w", id, err)
	}
	return res, nil
}

func childRelationships(ctx context.Context, q queryer, d Dialect, parentID string) ([]Relationship, error) {
	rows, err := q.QueryContext(ctx, d.rebind(`
		SELECT r.parent_id, r.child_id, r.position
		FROM content_relationships r
		JOIN content_resources c ON c.id = r.child_id
		WHERE r.parent_id = ?
			AND r.deleted_at IS NULL
			AND c.deleted_at IS NULL
		ORDER BY r.position, r.child_id
	`), parentID)
	if err != nil {
		return nil, fmt.Errorf("load children of %s: %w", parentID, err)
	}
	defer rows.Close()

	var rels []Relationship
	for rows.Next() {
		var rel Relationship
		if err := rows.Scan(&rel.ParentID, &rel.ChildID, &rel.Position); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		rels = append(rels, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate children of %s: %w", parentID, err)
	}
	return rels, nil
}

// LoadTree reads every live resource reachable from rootID through live
// relationships. An empty root yields an empty index and ids that no longer
// resolve are left out. Shared or cyclic edges are visited once.
func (s *Store) LoadTree(ctx context.Context, rootID string) (Index, error) {
	index := Index{}
	if rootID == "" {
		return index, nil
	}

	visited := map[string]bool{rootID: true}
	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		res, err := s.GetResource(ctx, id)
		if errors.Is(err, ErrResourceNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		children, err := childRelationships(ctx, s.db.DB, s.db.Dialect, id)
		if err != nil {
			return nil, err
		}
		index[id] = &Entry{Resource: res, Children: children}

		for _, rel := range children {
			if visited[rel.ChildID] {
				continue
			}
			visited[rel.ChildID] = true
			queue = append(queue, rel.ChildID)
		}
	}
	return index, nil
}

// SearchLessons matches text against lesson titles, descriptions and bodies.
// A non-empty site restricts results to lessons tagged with it. It backs the
// search command when no search engine is reachable.
func (s *Store) SearchLessons(ctx context.Context, text, site string, limit int) ([]Resource, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	d := s.db.Dialect
	pattern := "%" + likeEscaper.Replace(text) + "%"
	args := []any{string(content.KindLesson)}
	var conds []string
	for _, key := range []string{content.FieldTitle, content.FieldDescription, content.FieldBody} {
		conds = append(conds, fmt.Sprintf(`lower(coalesce(%s, '')) LIKE ? ESCAPE '\'`, d.jsonField("fields", key)))
		args = append(args, pattern)
	}
	siteFilter := ""
	if site != "" {
		siteFilter = " AND " + d.jsonArrayHas("fields", content.FieldSites)
		args = append(args, site)
	}
	query := fmt.Sprintf(`
		SELECT id, type, %s
		FROM content_resources
		WHERE type = ? AND deleted_at IS NULL AND (%s)%s
		ORDER BY %s
		LIMIT %d`,
		d.jsonText("fields"), strings.Join(conds, " OR "), siteFilter, d.jsonField("fields", content.FieldTitle), limit)

	rows, err := s.db.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("search lessons: %w", err)
	}
	defer rows.Close()

	var out []Resource
	for rows.Next() {
		var (
			res Resource
			raw string
		)
		if err := rows.Scan(&res.ID, &res.Type, &raw); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &res.Fields); err != nil {
			return nil, fmt.Errorf("decode fields of %s: %w", res.ID, err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// WithTx runs fn in a transaction, committing when it returns nil and rolling
// back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Tx{tx: sqlTx, dialect: s.db.Dialect}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Tx is the write surface of the content store.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.rebind(query), args...)
}

func (t *Tx) DeleteResource(ctx context.Context, id string) error {
	if _, err := t.exec(ctx, `DELETE FROM content_resources WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete resource %s: %w", id, err)
	}
	return nil
}

// DeleteChildRelationships drops every outgoing edge of parentID.
func (t *Tx) DeleteChildRelationships(ctx context.Context, parentID string) error {
	if _, err := t.exec(ctx, `DELETE FROM content_relationships WHERE parent_id = ?`, parentID); err != nil {
		return fmt.Errorf("delete children of %s: %w", parentID, err)
	}
	return nil
}

// DeleteRelationshipsOf drops every edge touching id on either end.
func (t *Tx) DeleteRelationshipsOf(ctx context.Context, id string) error {
	if _, err := t.exec(ctx, `DELETE FROM content_relationships WHERE parent_id = ? OR child_id = ?`, id, id); err != nil {
		return fmt.Errorf("delete relationships of %s: %w", id, err)
	}
	return nil
}

// FieldDocument reads the current field document of a live resource, locking
// the row where the dialect supports it. Numbers are kept as json.Number so
// untouched members are written back unchanged.
func (t *Tx) FieldDocument(ctx context.Context, id string) (map[string]any, error) {
	query := fmt.Sprintf(`SELECT %s FROM content_resources WHERE id = ? AND deleted_at IS NULL%s`,
		t.dialect.jsonText("fields"), t.dialect.forUpdate())
	var raw string
	err := t.tx.QueryRowContext(ctx, t.dialect.rebind(query), id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read fields of %s: %w", id, err)
	}

	doc := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode fields of %s: %w", id, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// UpdateFields replaces the field document of a live resource.
func (t *Tx) UpdateFields(ctx context.Context, id string, doc map[string]any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode fields of %s: %w", id, err)
	}
	query := fmt.Sprintf(`UPDATE content_resources SET fields = %s, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		t.dialect.jsonParam())
	result, err := t.exec(ctx, query, string(raw), id)
	if err != nil {
		return fmt.Errorf("update resource %s: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrResourceNotFound, id)
	}
	return nil
}

// InsertResource creates a resource and returns the id the store assigned.
func (t *Tx) InsertResource(ctx context.Context, kind content.Kind, fields content.Fields) (string, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode %s fields: %w", kind, err)
	}
	query := fmt.Sprintf(`INSERT INTO content_resources (type, fields) VALUES (?, %s) RETURNING id`, t.dialect.jsonParam())
	var id string
	if err := t.tx.QueryRowContext(ctx, t.dialect.rebind(query), string(kind), string(raw)).Scan(&id); err != nil {
		return "", fmt.Errorf("insert %s: %w", kind, err)
	}
	return id, nil
}

// InsertRelationship links parent to child, reviving or repositioning an
// existing edge between the two.
func (t *Tx) InsertRelationship(ctx context.Context, rel Relationship) error {
	_, err := t.exec(ctx, `
		INSERT INTO content_relationships (parent_id, child_id, position)
		VALUES (?, ?, ?)
		ON CONFLICT (parent_id, child_id) DO UPDATE
		SET position = excluded.position, deleted_at = NULL, updated_at = CURRENT_TIMESTAMP
	`, rel.ParentID, rel.ChildID, rel.Position)
	if err != nil {
		return fmt.Errorf("insert relationship %s -> %s: %w", rel.ParentID, rel.ChildID, err)
	}
	return nil
}
