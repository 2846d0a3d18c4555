package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/errs"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. A single connection
// serializes writers, so transactions never interleave.
type SQLiteStore struct {
	db *sql.DB
}

// sqlExecer is satisfied by *sql.DB and *sql.Tx.
type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS entities (
	id          TEXT PRIMARY KEY,
	project     TEXT NOT NULL DEFAULT '',
	entity_type TEXT NOT NULL DEFAULT 'other',
	fields      TEXT NOT NULL DEFAULT '{}',
	provenance  TEXT NOT NULL DEFAULT 'null',
	version     INTEGER NOT NULL DEFAULT 1,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS retired_ids (
	id          TEXT PRIMARY KEY,
	merged_into TEXT NOT NULL,
	retired_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS orphans (
	id               TEXT PRIMARY KEY,
	project          TEXT NOT NULL DEFAULT '',
	kind             TEXT NOT NULL,
	value            TEXT NOT NULL DEFAULT '',
	region           TEXT NOT NULL DEFAULT '',
	content          BLOB,
	provenance       TEXT NOT NULL,
	metadata         TEXT NOT NULL DEFAULT 'null',
	linked           BOOLEAN NOT NULL DEFAULT 0,
	linked_entity_id TEXT NOT NULL DEFAULT '',
	linked_at        DATETIME,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS relationships (
	id         TEXT PRIMARY KEY,
	from_id    TEXT NOT NULL,
	to_id      TEXT NOT NULL,
	rel_type   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS data_links (
	id         TEXT PRIMARY KEY,
	item_a     TEXT NOT NULL,
	item_a_id  TEXT NOT NULL,
	item_b     TEXT NOT NULL,
	item_b_id  TEXT NOT NULL,
	reason     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS decisions (
	subject_id    TEXT NOT NULL,
	candidate_id  TEXT NOT NULL,
	suggestion_id TEXT NOT NULL,
	status        TEXT NOT NULL,
	reason        TEXT NOT NULL DEFAULT '',
	fingerprint   TEXT NOT NULL,
	decided_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (subject_id, candidate_id)
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY,
	action     TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	object_id  TEXT NOT NULL DEFAULT '',
	reason     TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_entities_project ON entities(project, entity_type);
CREATE INDEX IF NOT EXISTS idx_orphans_project ON orphans(project, linked);
CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_id);
CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_id);
CREATE INDEX IF NOT EXISTS idx_data_links_a ON data_links(item_a_id);
CREATE INDEX IF NOT EXISTS idx_data_links_b ON data_links(item_b_id);
CREATE INDEX IF NOT EXISTS idx_audit_subject ON audit_log(subject_id);
CREATE INDEX IF NOT EXISTS idx_audit_object ON audit_log(object_id);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return sqliteErr("ping", s.db.PingContext(ctx))
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Entities ---

func (s *SQLiteStore) CreateEntity(ctx context.Context, e *model.Entity) error {
	if err := prepareEntity(e, time.Now().UTC()); err != nil {
		return err
	}
	return sqliteInsertEntity(ctx, s.db, e, false)
}

func sqliteInsertEntity(ctx context.Context, q sqlExecer, e *model.Entity, replace bool) error {
	retired, err := sqliteIsRetired(ctx, q, e.ID)
	if err != nil {
		return err
	}
	if retired {
		return errs.Validation("id", "entity id %q was retired by a merge and cannot be reused", e.ID)
	}

	fields, prov, err := encodeEntity(e)
	if err != nil {
		return err
	}
	query := `INSERT INTO entities (` + entityColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if replace {
		query += ` ON CONFLICT(id) DO UPDATE SET entity_type = excluded.entity_type, fields = excluded.fields,
			provenance = excluded.provenance, updated_at = excluded.updated_at, version = entities.version + 1`
	}
	_, err = q.ExecContext(ctx, query,
		e.ID, e.Project, string(e.Type), fields, prov, e.Version, e.CreatedAt, e.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return eris.Wrap(errs.Conflict("entity", e.ID, "already exists"), "sqlite: insert entity")
	}
	return sqliteErr("insert entity "+e.ID, err)
}

func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	return sqliteGetEntity(ctx, s.db, id)
}

func sqliteGetEntity(ctx context.Context, q sqlExecer, id string) (*model.Entity, error) {
	row := q.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(errs.NotFound("entity", id), "sqlite: get entity")
	}
	if err != nil {
		return nil, sqliteErr("get entity "+id, err)
	}
	return e, nil
}

func (s *SQLiteStore) ListEntities(ctx context.Context, project string, filter *Filter) ([]*model.Entity, error) {
	query, args := listEntitiesQuery(project, filter, question)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqliteErr("list entities", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, sqliteErr("scan entity", err)
		}
		out = append(out, e)
	}
	return out, sqliteErr("list entities iterate", rows.Err())
}

func (s *SQLiteStore) GetField(ctx context.Context, entityID, path string) (model.FieldValue, error) {
	e, err := s.GetEntity(ctx, entityID)
	if err != nil {
		return model.FieldValue{}, err
	}
	return fieldOf(e, path)
}

func (s *SQLiteStore) UpdateEntity(ctx context.Context, e *model.Entity) error {
	return sqliteUpdateEntity(ctx, s.db, e)
}

// sqliteUpdateEntity writes e if its version still matches the stored row,
// then bumps e.Version.
func sqliteUpdateEntity(ctx context.Context, q sqlExecer, e *model.Entity) error {
	fields, prov, err := encodeEntity(e)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := q.ExecContext(ctx,
		`UPDATE entities SET entity_type = ?, fields = ?, provenance = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		string(e.Type), fields, prov, now, e.ID, e.Version,
	)
	if err != nil {
		return sqliteErr("update entity "+e.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		if _, err := sqliteGetEntity(ctx, q, e.ID); err != nil {
			return err
		}
		return eris.Wrap(errs.Conflict("entity", e.ID, fmt.Sprintf("version %d is stale", e.Version)), "sqlite: update entity")
	}
	e.Version++
	e.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) DeleteEntity(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
		if err != nil {
			return sqliteErr("delete entity "+id, err)
		}
		if err := checkRowsAffected(res, "entity", id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM relationships WHERE from_id = ? OR to_id = ?`, id, id)
		return sqliteErr("delete relationships of "+id, err)
	})
}

func (s *SQLiteStore) IsRetired(ctx context.Context, id string) (bool, error) {
	return sqliteIsRetired(ctx, s.db, id)
}

func sqliteIsRetired(ctx context.Context, q sqlExecer, id string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM retired_ids WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, sqliteErr("check retired "+id, err)
	}
	return n > 0, nil
}

// ImportEntities inserts entities in one transaction. With replace, existing
// ids are overwritten and their version bumped; otherwise a duplicate id
// aborts the import.
func (s *SQLiteStore) ImportEntities(ctx context.Context, entities []*model.Entity, replace bool) (int64, error) {
	if len(entities) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entities {
			if err := prepareEntity(e, now); err != nil {
				return err
			}
			if err := sqliteInsertEntity(ctx, tx, e, replace); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(entities)), nil
}

// --- Orphans ---

func (s *SQLiteStore) CreateOrphan(ctx context.Context, o *model.OrphanData) error {
	if err := prepareOrphan(o, time.Now().UTC()); err != nil {
		return err
	}
	prov, meta, err := encodeOrphan(o)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orphans (`+orphanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Project, string(o.Identifier.Kind), o.Identifier.Value, o.Identifier.Region, o.Identifier.Content,
		prov, meta, false, "", nil, o.CreatedAt,
	)
	if isUniqueViolation(err) {
		return eris.Wrap(errs.Conflict("orphan", o.ID, "already exists"), "sqlite: insert orphan")
	}
	return sqliteErr("insert orphan "+o.ID, err)
}

func (s *SQLiteStore) GetOrphan(ctx context.Context, id string) (*model.OrphanData, error) {
	return sqliteGetOrphan(ctx, s.db, id)
}

func sqliteGetOrphan(ctx context.Context, q sqlExecer, id string) (*model.OrphanData, error) {
	row := q.QueryRowContext(ctx, `SELECT `+orphanColumns+` FROM orphans WHERE id = ?`, id)
	o, err := scanOrphan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(errs.NotFound("orphan", id), "sqlite: get orphan")
	}
	if err != nil {
		return nil, sqliteErr("get orphan "+id, err)
	}
	return o, nil
}

func (s *SQLiteStore) ListOrphans(ctx context.Context, project string, linked *bool) ([]*model.OrphanData, error) {
	query := `SELECT ` + orphanColumns + ` FROM orphans WHERE project = ?`
	args := []any{project}
	if linked != nil {
		query += ` AND linked = ?`
		args = append(args, *linked)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqliteErr("list orphans", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*model.OrphanData
	for rows.Next() {
		o, err := scanOrphan(rows)
		if err != nil {
			return nil, sqliteErr("scan orphan", err)
		}
		out = append(out, o)
	}
	return out, sqliteErr("list orphans iterate", rows.Err())
}

// --- Relationships and links ---

func (s *SQLiteStore) CreateRelationship(ctx context.Context, r *model.Relationship) error {
	if r.FromID == "" || r.ToID == "" || r.Type == "" {
		return errs.Validation("relationship", "from_id, to_id and type are required")
	}
	ensureRelID(r, time.Now().UTC())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO relationships (`+relColumns+`) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.FromID, r.ToID, r.Type, r.CreatedAt,
	)
	return sqliteErr("insert relationship", err)
}

func (s *SQLiteStore) ListRelationships(ctx context.Context, entityID string) ([]model.Relationship, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+relColumns+` FROM relationships WHERE from_id = ? OR to_id = ? ORDER BY created_at, id`,
		entityID, entityID,
	)
	if err != nil {
		return nil, sqliteErr("list relationships", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, sqliteErr("scan relationship", err)
		}
		out = append(out, r)
	}
	return out, sqliteErr("list relationships iterate", rows.Err())
}

func (s *SQLiteStore) ListDataLinks(ctx context.Context, itemID string) ([]model.DataLink, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM data_links WHERE item_a_id = ? OR item_b_id = ? ORDER BY created_at, id`,
		itemID, itemID,
	)
	if err != nil {
		return nil, sqliteErr("list data links", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.DataLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, sqliteErr("scan data link", err)
		}
		out = append(out, l)
	}
	return out, sqliteErr("list data links iterate", rows.Err())
}

// --- Suggestion workflow ---

func (s *SQLiteStore) SaveDecision(ctx context.Context, d model.Decision) error {
	return sqliteSaveDecision(ctx, s.db, d)
}

func sqliteSaveDecision(ctx context.Context, q sqlExecer, d model.Decision) error {
	if err := validateDecision(d); err != nil {
		return err
	}
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO decisions (`+decisionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(subject_id, candidate_id) DO UPDATE SET suggestion_id = excluded.suggestion_id,
		 status = excluded.status, reason = excluded.reason, fingerprint = excluded.fingerprint,
		 decided_at = excluded.decided_at`,
		d.SubjectID, d.CandidateID, d.SuggestionID, string(d.Status), d.Reason, d.Fingerprint, d.DecidedAt,
	)
	return sqliteErr("save decision", err)
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, subjectID string) ([]model.Decision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+decisionColumns+` FROM decisions WHERE subject_id = ? OR candidate_id = ?
		 ORDER BY decided_at, subject_id, candidate_id`, subjectID, subjectID)
	if err != nil {
		return nil, sqliteErr("list decisions", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, sqliteErr("scan decision", err)
		}
		out = append(out, d)
	}
	return out, sqliteErr("list decisions iterate", rows.Err())
}

func (s *SQLiteStore) ListAudit(ctx context.Context, subjectID string) ([]model.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audit_log WHERE subject_id = ? OR object_id = ? ORDER BY created_at, id`,
		subjectID, subjectID,
	)
	if err != nil {
		return nil, sqliteErr("list audit", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.AuditEntry
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, sqliteErr("scan audit", err)
		}
		out = append(out, a)
	}
	return out, sqliteErr("list audit iterate", rows.Err())
}

// --- Transactions ---

func (s *SQLiteStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(&sqliteTx{tx: tx})
	})
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sqliteErr("begin", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return sqliteErr("commit", tx.Commit())
}

type sqliteTx struct {
	tx *sql.Tx
}

// GetEntityForUpdate reads the entity inside the transaction. The store's
// single connection already excludes concurrent writers.
func (t *sqliteTx) GetEntityForUpdate(ctx context.Context, id string) (*model.Entity, error) {
	return sqliteGetEntity(ctx, t.tx, id)
}

func (t *sqliteTx) UpdateEntity(ctx context.Context, e *model.Entity) error {
	return sqliteUpdateEntity(ctx, t.tx, e)
}

func (t *sqliteTx) RetireEntity(ctx context.Context, id, mergedInto string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return sqliteErr("retire entity "+id, err)
	}
	if err := checkRowsAffected(res, "entity", id); err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO retired_ids (id, merged_into, retired_at) VALUES (?, ?, ?)`,
		id, mergedInto, time.Now().UTC(),
	)
	return sqliteErr("record retired id "+id, err)
}

func (t *sqliteTx) RepointRelationships(ctx context.Context, fromID, toID string) (int64, error) {
	var total int64
	for _, col := range []string{"from_id", "to_id"} {
		res, err := t.tx.ExecContext(ctx,
			`UPDATE relationships SET `+col+` = ? WHERE `+col+` = ?`, toID, fromID)
		if err != nil {
			return 0, sqliteErr("repoint relationships", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	// An edge between the two merged entities would now point at itself.
	_, err := t.tx.ExecContext(ctx, `DELETE FROM relationships WHERE from_id = ? AND to_id = ?`, toID, toID)
	return total, sqliteErr("drop self relationships", err)
}

func (t *sqliteTx) GetOrphanForUpdate(ctx context.Context, id string) (*model.OrphanData, error) {
	return sqliteGetOrphan(ctx, t.tx, id)
}

func (t *sqliteTx) MarkOrphanLinked(ctx context.Context, orphanID, entityID string, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE orphans SET linked = 1, linked_entity_id = ?, linked_at = ? WHERE id = ? AND linked = 0`,
		entityID, at, orphanID,
	)
	if err != nil {
		return sqliteErr("mark orphan linked "+orphanID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		if _, err := sqliteGetOrphan(ctx, t.tx, orphanID); err != nil {
			return err
		}
		return eris.Wrap(errs.Conflict("orphan", orphanID, "already linked"), "sqlite: mark orphan linked")
	}
	return nil
}

func (t *sqliteTx) DeleteOrphan(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM orphans WHERE id = ?`, id)
	if err != nil {
		return sqliteErr("delete orphan "+id, err)
	}
	return checkRowsAffected(res, "orphan", id)
}

func (t *sqliteTx) CreateDataLink(ctx context.Context, l *model.DataLink) error {
	ensureLinkID(l, time.Now().UTC())
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO data_links (id, item_a, item_a_id, item_b, item_b_id, reason, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.ItemA.String(), l.ItemA.ID, l.ItemB.String(), l.ItemB.ID, l.Reason, l.CreatedAt,
	)
	return sqliteErr("insert data link", err)
}

func (t *sqliteTx) SaveDecision(ctx context.Context, d model.Decision) error {
	return sqliteSaveDecision(ctx, t.tx, d)
}

func (t *sqliteTx) AppendAudit(ctx context.Context, a *model.AuditEntry) error {
	ensureAuditID(a, time.Now().UTC())
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO audit_log (`+auditColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Action, a.SubjectID, a.ObjectID, a.Reason, a.Detail, a.CreatedAt,
	)
	return sqliteErr("append audit", err)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(errs.NotFound(resource, id), "%s not found", resource)
	}
	return nil
}

// sqliteErr wraps a driver error, classifying I/O and locking failures as
// StoreUnavailableError.
func sqliteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) || isSQLiteUnavailable(err) {
		return eris.Wrap(errs.Unavailable(op, err), "sqlite: "+op)
	}
	return eris.Wrap(err, "sqlite: "+op)
}

func isSQLiteUnavailable(err error) bool {
	msg := err.Error()
	for _, s := range []string{"database is locked", "unable to open database", "disk I/O error", "database is closed", "sql: database is closed"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
