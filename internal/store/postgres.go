package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/db"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/errs"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// pgExecer is satisfied by db.Pool and pgx.Tx.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// preparedStatements lists queries to prepare on each new connection for
// the hot paths of matching and suggestion lookups.
var preparedStatements = map[string]string{
	"get_entity":     `SELECT ` + entityColumns + ` FROM entities WHERE id = $1`,
	"is_retired":     `SELECT EXISTS (SELECT 1 FROM retired_ids WHERE id = $1)`,
	"get_orphan":     `SELECT ` + orphanColumns + ` FROM orphans WHERE id = $1`,
	"list_decisions": `SELECT ` + decisionColumns + ` FROM decisions WHERE subject_id = $1 OR candidate_id = $1 ORDER BY decided_at, subject_id, candidate_id`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				// Tables may not exist before the first migrate.
				zap.L().Debug("postgres: skip prepare", zap.String("statement", name), zap.Error(err))
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, pgErr("create pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, pgErr("ping", err)
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS entities (
	id          TEXT PRIMARY KEY,
	project     TEXT NOT NULL DEFAULT '',
	entity_type TEXT NOT NULL DEFAULT 'other',
	fields      JSONB NOT NULL DEFAULT '{}'::jsonb,
	provenance  JSONB,
	version     BIGINT NOT NULL DEFAULT 1,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS retired_ids (
	id          TEXT PRIMARY KEY,
	merged_into TEXT NOT NULL,
	retired_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orphans (
	id               TEXT PRIMARY KEY,
	project          TEXT NOT NULL DEFAULT '',
	kind             TEXT NOT NULL,
	value            TEXT NOT NULL DEFAULT '',
	region           TEXT NOT NULL DEFAULT '',
	content          BYTEA,
	provenance       JSONB NOT NULL,
	metadata         JSONB,
	linked           BOOLEAN NOT NULL DEFAULT false,
	linked_entity_id TEXT NOT NULL DEFAULT '',
	linked_at        TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS relationships (
	id         TEXT PRIMARY KEY,
	from_id    TEXT NOT NULL,
	to_id      TEXT NOT NULL,
	rel_type   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS data_links (
	id         TEXT PRIMARY KEY,
	item_a     TEXT NOT NULL,
	item_a_id  TEXT NOT NULL,
	item_b     TEXT NOT NULL,
	item_b_id  TEXT NOT NULL,
	reason     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS decisions (
	subject_id    TEXT NOT NULL,
	candidate_id  TEXT NOT NULL,
	suggestion_id TEXT NOT NULL,
	status        TEXT NOT NULL,
	reason        TEXT NOT NULL DEFAULT '',
	fingerprint   TEXT NOT NULL,
	decided_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (subject_id, candidate_id)
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY,
	action     TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	object_id  TEXT NOT NULL DEFAULT '',
	reason     TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_entities_project ON entities(project, entity_type);
CREATE INDEX IF NOT EXISTS idx_entities_fields ON entities USING GIN (fields jsonb_path_ops);
CREATE INDEX IF NOT EXISTS idx_orphans_project ON orphans(project, linked);
CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_id);
CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_id);
CREATE INDEX IF NOT EXISTS idx_data_links_a ON data_links(item_a_id);
CREATE INDEX IF NOT EXISTS idx_data_links_b ON data_links(item_b_id);
CREATE INDEX IF NOT EXISTS idx_audit_subject ON audit_log(subject_id);
CREATE INDEX IF NOT EXISTS idx_audit_object ON audit_log(object_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return pgErr("ping", err)
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return pgErr("migrate", err)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Entities ---

func (s *PostgresStore) CreateEntity(ctx context.Context, e *model.Entity) error {
	if err := prepareEntity(e, time.Now().UTC()); err != nil {
		return err
	}
	retired, err := s.IsRetired(ctx, e.ID)
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
	_, err = s.pool.Exec(ctx,
		`INSERT INTO entities (`+entityColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.Project, string(e.Type), fields, prov, e.Version, e.CreatedAt, e.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return eris.Wrap(errs.Conflict("entity", e.ID, "already exists"), "postgres: insert entity")
	}
	return pgErr("insert entity "+e.ID, err)
}

func (s *PostgresStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	return pgGetEntity(ctx, s.pool, id, false)
}

func pgGetEntity(ctx context.Context, q pgExecer, id string, forUpdate bool) (*model.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	e, err := scanEntity(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(errs.NotFound("entity", id), "postgres: get entity")
	}
	if err != nil {
		return nil, pgErr("get entity "+id, err)
	}
	return e, nil
}

func (s *PostgresStore) ListEntities(ctx context.Context, project string, filter *Filter) ([]*model.Entity, error) {
	query, args := listEntitiesQuery(project, filter, dollar)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, pgErr("list entities", err)
	}
	defer rows.Close()

	var out []*model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, pgErr("scan entity", err)
		}
		out = append(out, e)
	}
	return out, pgErr("list entities iterate", rows.Err())
}

func (s *PostgresStore) GetField(ctx context.Context, entityID, path string) (model.FieldValue, error) {
	e, err := s.GetEntity(ctx, entityID)
	if err != nil {
		return model.FieldValue{}, err
	}
	return fieldOf(e, path)
}

func (s *PostgresStore) UpdateEntity(ctx context.Context, e *model.Entity) error {
	return pgUpdateEntity(ctx, s.pool, e)
}

func pgUpdateEntity(ctx context.Context, q pgExecer, e *model.Entity) error {
	fields, prov, err := encodeEntity(e)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	tag, err := q.Exec(ctx,
		`UPDATE entities SET entity_type = $1, fields = $2, provenance = $3, version = version + 1, updated_at = $4
		 WHERE id = $5 AND version = $6`,
		string(e.Type), fields, prov, now, e.ID, e.Version,
	)
	if err != nil {
		return pgErr("update entity "+e.ID, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := pgGetEntity(ctx, q, e.ID, false); err != nil {
			return err
		}
		return eris.Wrap(errs.Conflict("entity", e.ID, fmt.Sprintf("version %d is stale", e.Version)), "postgres: update entity")
	}
	e.Version++
	e.UpdatedAt = now
	return nil
}

func (s *PostgresStore) DeleteEntity(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM entities WHERE id = $1`, id)
		if err != nil {
			return pgErr("delete entity "+id, err)
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrap(errs.NotFound("entity", id), "postgres: delete entity")
		}
		_, err = tx.Exec(ctx, `DELETE FROM relationships WHERE from_id = $1 OR to_id = $1`, id)
		return pgErr("delete relationships of "+id, err)
	})
}

func (s *PostgresStore) IsRetired(ctx context.Context, id string) (bool, error) {
	var retired bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM retired_ids WHERE id = $1)`, id).Scan(&retired)
	if err != nil {
		return false, pgErr("check retired "+id, err)
	}
	return retired, nil
}

var importColumns = []string{"id", "project", "entity_type", "fields", "provenance", "version", "created_at", "updated_at"}

// ImportEntities bulk loads entities through COPY. With replace, rows go
// through a temp table and overwrite existing ids, bumping their version.
// Retired ids are rejected before anything is written.
func (s *PostgresStore) ImportEntities(ctx context.Context, entities []*model.Entity, replace bool) (int64, error) {
	if len(entities) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	ids := make([]string, 0, len(entities))
	rows := make([][]any, 0, len(entities))
	for _, e := range entities {
		if err := prepareEntity(e, now); err != nil {
			return 0, err
		}
		fields, prov, err := encodeEntity(e)
		if err != nil {
			return 0, err
		}
		ids = append(ids, e.ID)
		rows = append(rows, []any{e.ID, e.Project, string(e.Type), fields, prov, e.Version, e.CreatedAt, e.UpdatedAt})
	}

	var retired []string
	r, err := s.pool.Query(ctx, `SELECT id FROM retired_ids WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return 0, pgErr("check retired ids", err)
	}
	retired, err = pgx.CollectRows(r, pgx.RowTo[string])
	if err != nil {
		return 0, pgErr("check retired ids", err)
	}
	if len(retired) > 0 {
		return 0, errs.Validation("id", "entity ids %v were retired by a merge and cannot be reused", retired)
	}

	if replace {
		n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
			Table:        "entities",
			Columns:      importColumns,
			ConflictKeys: []string{"id"},
			UpdateCols:   []string{"entity_type", "fields", "provenance", "updated_at"},
			SetExprs:     []string{"version = entities.version + 1"},
		}, rows)
		return n, pgErr("import entities", err)
	}
	n, err := db.CopyFrom(ctx, s.pool, "entities", importColumns, rows)
	if isUniqueViolation(err) {
		return 0, eris.Wrap(errs.Conflict("entity", "", "import contains an existing id"), "postgres: import entities")
	}
	return n, pgErr("import entities", err)
}

// --- Orphans ---

func (s *PostgresStore) CreateOrphan(ctx context.Context, o *model.OrphanData) error {
	if err := prepareOrphan(o, time.Now().UTC()); err != nil {
		return err
	}
	prov, meta, err := encodeOrphan(o)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO orphans (`+orphanColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID, o.Project, string(o.Identifier.Kind), o.Identifier.Value, o.Identifier.Region, o.Identifier.Content,
		prov, meta, false, "", nil, o.CreatedAt,
	)
	if isUniqueViolation(err) {
		return eris.Wrap(errs.Conflict("orphan", o.ID, "already exists"), "postgres: insert orphan")
	}
	return pgErr("insert orphan "+o.ID, err)
}

func (s *PostgresStore) GetOrphan(ctx context.Context, id string) (*model.OrphanData, error) {
	return pgGetOrphan(ctx, s.pool, id, false)
}

func pgGetOrphan(ctx context.Context, q pgExecer, id string, forUpdate bool) (*model.OrphanData, error) {
	query := `SELECT ` + orphanColumns + ` FROM orphans WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	o, err := scanOrphan(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(errs.NotFound("orphan", id), "postgres: get orphan")
	}
	if err != nil {
		return nil, pgErr("get orphan "+id, err)
	}
	return o, nil
}

func (s *PostgresStore) ListOrphans(ctx context.Context, project string, linked *bool) ([]*model.OrphanData, error) {
	query := `SELECT ` + orphanColumns + ` FROM orphans WHERE project = $1`
	args := []any{project}
	if linked != nil {
		query += ` AND linked = $2`
		args = append(args, *linked)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, pgErr("list orphans", err)
	}
	defer rows.Close()

	var out []*model.OrphanData
	for rows.Next() {
		o, err := scanOrphan(rows)
		if err != nil {
			return nil, pgErr("scan orphan", err)
		}
		out = append(out, o)
	}
	return out, pgErr("list orphans iterate", rows.Err())
}

// --- Relationships and links ---

func (s *PostgresStore) CreateRelationship(ctx context.Context, r *model.Relationship) error {
	if r.FromID == "" || r.ToID == "" || r.Type == "" {
		return errs.Validation("relationship", "from_id, to_id and type are required")
	}
	ensureRelID(r, time.Now().UTC())
	_, err := s.pool.Exec(ctx,
		`INSERT INTO relationships (`+relColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.FromID, r.ToID, r.Type, r.CreatedAt,
	)
	return pgErr("insert relationship", err)
}

func (s *PostgresStore) ListRelationships(ctx context.Context, entityID string) ([]model.Relationship, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+relColumns+` FROM relationships WHERE from_id = $1 OR to_id = $1 ORDER BY created_at, id`, entityID)
	if err != nil {
		return nil, pgErr("list relationships", err)
	}
	defer rows.Close()

	var out []model.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, pgErr("scan relationship", err)
		}
		out = append(out, r)
	}
	return out, pgErr("list relationships iterate", rows.Err())
}

func (s *PostgresStore) ListDataLinks(ctx context.Context, itemID string) ([]model.DataLink, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+linkColumns+` FROM data_links WHERE item_a_id = $1 OR item_b_id = $1 ORDER BY created_at, id`, itemID)
	if err != nil {
		return nil, pgErr("list data links", err)
	}
	defer rows.Close()

	var out []model.DataLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, pgErr("scan data link", err)
		}
		out = append(out, l)
	}
	return out, pgErr("list data links iterate", rows.Err())
}

// --- Suggestion workflow ---

func (s *PostgresStore) SaveDecision(ctx context.Context, d model.Decision) error {
	return pgSaveDecision(ctx, s.pool, d)
}

func pgSaveDecision(ctx context.Context, q pgExecer, d model.Decision) error {
	if err := validateDecision(d); err != nil {
		return err
	}
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now().UTC()
	}
	_, err := q.Exec(ctx,
		`INSERT INTO decisions (`+decisionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (subject_id, candidate_id) DO UPDATE SET suggestion_id = EXCLUDED.suggestion_id,
		 status = EXCLUDED.status, reason = EXCLUDED.reason, fingerprint = EXCLUDED.fingerprint,
		 decided_at = EXCLUDED.decided_at`,
		d.SubjectID, d.CandidateID, d.SuggestionID, string(d.Status), d.Reason, d.Fingerprint, d.DecidedAt,
	)
	return pgErr("save decision", err)
}

func (s *PostgresStore) ListDecisions(ctx context.Context, subjectID string) ([]model.Decision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+decisionColumns+` FROM decisions WHERE subject_id = $1 OR candidate_id = $1
		 ORDER BY decided_at, subject_id, candidate_id`, subjectID)
	if err != nil {
		return nil, pgErr("list decisions", err)
	}
	defer rows.Close()

	var out []model.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, pgErr("scan decision", err)
		}
		out = append(out, d)
	}
	return out, pgErr("list decisions iterate", rows.Err())
}

func (s *PostgresStore) ListAudit(ctx context.Context, subjectID string) ([]model.AuditEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auditColumns+` FROM audit_log WHERE subject_id = $1 OR object_id = $1 ORDER BY created_at, id`, subjectID)
	if err != nil {
		return nil, pgErr("list audit", err)
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, pgErr("scan audit", err)
		}
		out = append(out, a)
	}
	return out, pgErr("list audit iterate", rows.Err())
}

// --- Transactions ---

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return pgErr("begin", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return pgErr("commit", tx.Commit(ctx))
}

type pgTx struct {
	tx pgx.Tx
}

// GetEntityForUpdate locks the entity row until the transaction ends.
func (t *pgTx) GetEntityForUpdate(ctx context.Context, id string) (*model.Entity, error) {
	return pgGetEntity(ctx, t.tx, id, true)
}

func (t *pgTx) UpdateEntity(ctx context.Context, e *model.Entity) error {
	return pgUpdateEntity(ctx, t.tx, e)
}

func (t *pgTx) RetireEntity(ctx context.Context, id, mergedInto string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM entities WHERE id = $1`, id)
	if err != nil {
		return pgErr("retire entity "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrap(errs.NotFound("entity", id), "postgres: retire entity")
	}
	_, err = t.tx.Exec(ctx,
		`INSERT INTO retired_ids (id, merged_into, retired_at) VALUES ($1, $2, $3)`,
		id, mergedInto, time.Now().UTC(),
	)
	return pgErr("record retired id "+id, err)
}

func (t *pgTx) RepointRelationships(ctx context.Context, fromID, toID string) (int64, error) {
	var total int64
	for _, col := range []string{"from_id", "to_id"} {
		tag, err := t.tx.Exec(ctx, `UPDATE relationships SET `+col+` = $1 WHERE `+col+` = $2`, toID, fromID)
		if err != nil {
			return 0, pgErr("repoint relationships", err)
		}
		total += tag.RowsAffected()
	}
	// An edge between the two merged entities would now point at itself.
	_, err := t.tx.Exec(ctx, `DELETE FROM relationships WHERE from_id = $1 AND to_id = $1`, toID)
	return total, pgErr("drop self relationships", err)
}

func (t *pgTx) GetOrphanForUpdate(ctx context.Context, id string) (*model.OrphanData, error) {
	return pgGetOrphan(ctx, t.tx, id, true)
}

func (t *pgTx) MarkOrphanLinked(ctx context.Context, orphanID, entityID string, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE orphans SET linked = true, linked_entity_id = $1, linked_at = $2 WHERE id = $3 AND NOT linked`,
		entityID, at, orphanID,
	)
	if err != nil {
		return pgErr("mark orphan linked "+orphanID, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := pgGetOrphan(ctx, t.tx, orphanID, false); err != nil {
			return err
		}
		return eris.Wrap(errs.Conflict("orphan", orphanID, "already linked"), "postgres: mark orphan linked")
	}
	return nil
}

func (t *pgTx) DeleteOrphan(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM orphans WHERE id = $1`, id)
	if err != nil {
		return pgErr("delete orphan "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrap(errs.NotFound("orphan", id), "postgres: delete orphan")
	}
	return nil
}

func (t *pgTx) CreateDataLink(ctx context.Context, l *model.DataLink) error {
	ensureLinkID(l, time.Now().UTC())
	_, err := t.tx.Exec(ctx,
		`INSERT INTO data_links (id, item_a, item_a_id, item_b, item_b_id, reason, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		l.ID, l.ItemA.String(), l.ItemA.ID, l.ItemB.String(), l.ItemB.ID, l.Reason, l.CreatedAt,
	)
	return pgErr("insert data link", err)
}

func (t *pgTx) SaveDecision(ctx context.Context, d model.Decision) error {
	return pgSaveDecision(ctx, t.tx, d)
}

func (t *pgTx) AppendAudit(ctx context.Context, a *model.AuditEntry) error {
	ensureAuditID(a, time.Now().UTC())
	_, err := t.tx.Exec(ctx,
		`INSERT INTO audit_log (`+auditColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Action, a.SubjectID, a.ObjectID, a.Reason, a.Detail, a.CreatedAt,
	)
	return pgErr("append audit", err)
}
