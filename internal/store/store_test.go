package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/errs"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newPerson(id string, fields map[string]any) *model.Entity {
	f := model.Fields{}
	for k, v := range fields {
		f[k] = model.FromAny(v)
	}
	return &model.Entity{ID: id, Project: "case-1", Type: model.EntityPerson, Fields: f}
}

func TestSQLite_Suite(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetEntity", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		e := newPerson("", map[string]any{
			"names":   []any{"John Smith"},
			"profile": map[string]any{"emails": []any{"john@example.com"}},
		})
		e.AddProvenance("names", model.Provenance{SourceType: model.SourceHumanEntry, CapturedBy: "analyst"})
		require.NoError(t, s.CreateEntity(ctx, e))
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, int64(1), e.Version)

		got, err := s.GetEntity(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, model.EntityPerson, got.Type)
		assert.Equal(t, "case-1", got.Project)
		v, ok := got.Field("profile.emails")
		require.True(t, ok)
		assert.Equal(t, []string{"john@example.com"}, v.Leaves())
		require.Len(t, got.Provenance["names"], 1)
		assert.Equal(t, "analyst", got.Provenance["names"][0].CapturedBy)
	})

	t.Run("GetEntity_NotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetEntity(context.Background(), "missing")
		require.Error(t, err)
		assert.True(t, errs.IsNotFound(err))
	})

	t.Run("CreateEntity_Duplicate", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.CreateEntity(ctx, newPerson("e1", nil)))
		err := s.CreateEntity(ctx, newPerson("e1", nil))
		require.Error(t, err)
		assert.True(t, errs.IsConflict(err))
	})

	t.Run("CreateEntity_UnknownType", func(t *testing.T) {
		s := newStore(t)
		e := newPerson("e1", nil)
		e.Type = "vehicle"
		err := s.CreateEntity(context.Background(), e)
		assert.True(t, errs.IsValidation(err))
	})

	t.Run("GetField", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.CreateEntity(ctx, newPerson("e1", map[string]any{"phones": "+14155552671"})))

		v, err := s.GetField(ctx, "e1", "phones")
		require.NoError(t, err)
		assert.Equal(t, "+14155552671", v.String())

		_, err = s.GetField(ctx, "e1", "emails")
		assert.True(t, errs.IsNotFound(err))
	})

	t.Run("ListEntities_Filter", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, id := range []string{"c", "a", "b"} {
			require.NoError(t, s.CreateEntity(ctx, newPerson(id, nil)))
		}
		org := &model.Entity{ID: "org", Project: "case-1", Type: model.EntityOrganization}
		require.NoError(t, s.CreateEntity(ctx, org))
		other := &model.Entity{ID: "x", Project: "case-2", Type: model.EntityPerson}
		require.NoError(t, s.CreateEntity(ctx, other))

		all, err := s.ListEntities(ctx, "case-1", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "org"}, entityIDs(all))

		people, err := s.ListEntities(ctx, "case-1", &Filter{
			EntityTypes: []model.EntityType{model.EntityPerson},
			ExcludeIDs:  []string{"b"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, entityIDs(people))

		limited, err := s.ListEntities(ctx, "case-1", &Filter{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, entityIDs(limited))
	})

	t.Run("UpdateEntity_OptimisticVersion", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		e := newPerson("e1", map[string]any{"names": "John"})
		require.NoError(t, s.CreateEntity(ctx, e))

		stale, err := s.GetEntity(ctx, "e1")
		require.NoError(t, err)

		require.NoError(t, e.Fields.Append("names", model.Scalar("Johnny")))
		require.NoError(t, s.UpdateEntity(ctx, e))
		assert.Equal(t, int64(2), e.Version)

		err = s.UpdateEntity(ctx, stale)
		require.Error(t, err)
		assert.True(t, errs.IsConflict(err))

		got, err := s.GetEntity(ctx, "e1")
		require.NoError(t, err)
		v, _ := got.Field("names")
		assert.Equal(t, []string{"John", "Johnny"}, v.Leaves())

		missing := newPerson("nope", nil)
		missing.Version = 1
		assert.True(t, errs.IsNotFound(s.UpdateEntity(ctx, missing)))
	})

	t.Run("DeleteEntity", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.CreateEntity(ctx, newPerson("e1", nil)))
		require.NoError(t, s.CreateEntity(ctx, newPerson("e2", nil)))
		require.NoError(t, s.CreateRelationship(ctx, &model.Relationship{FromID: "e1", ToID: "e2", Type: "knows"}))

		require.NoError(t, s.DeleteEntity(ctx, "e1"))
		_, err := s.GetEntity(ctx, "e1")
		assert.True(t, errs.IsNotFound(err))
		rels, err := s.ListRelationships(ctx, "e2")
		require.NoError(t, err)
		assert.Empty(t, rels)

		assert.True(t, errs.IsNotFound(s.DeleteEntity(ctx, "e1")))
	})

	t.Run("Orphans", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		o := &model.OrphanData{
			Project:    "case-1",
			Identifier: model.Identifier{Value: "john@example.com", Kind: model.KindEmail},
			Provenance: model.Provenance{
				SourceType: model.SourceWebsite,
				SourceURL:  "https://example.com/about",
				CapturedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			},
			Metadata: map[string]string{"page": "about"},
		}
		require.NoError(t, s.CreateOrphan(ctx, o))
		assert.NotEmpty(t, o.ID)

		got, err := s.GetOrphan(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, model.KindEmail, got.Identifier.Kind)
		assert.Equal(t, "https://example.com/about", got.Provenance.SourceURL)
		assert.Equal(t, "about", got.Metadata["page"])
		assert.False(t, got.Linked)
		assert.Nil(t, got.LinkedAt)

		unlinked := false
		list, err := s.ListOrphans(ctx, "case-1", &unlinked)
		require.NoError(t, err)
		require.Len(t, list, 1)

		_, err = s.GetOrphan(ctx, "missing")
		assert.True(t, errs.IsNotFound(err))
	})

	t.Run("CreateOrphan_Validation", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		err := s.CreateOrphan(ctx, &model.OrphanData{
			Identifier: model.Identifier{Value: "x", Kind: model.KindEmail},
			Provenance: model.Provenance{SourceType: model.SourceWebsite},
		})
		assert.True(t, errs.IsValidation(err))

		err = s.CreateOrphan(ctx, &model.OrphanData{
			Identifier: model.Identifier{Kind: model.KindEmail},
			Provenance: model.Provenance{SourceType: model.SourceAPI},
		})
		assert.True(t, errs.IsValidation(err))
	})

	t.Run("OrphanBinaryContent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		o := &model.OrphanData{
			Identifier: model.Identifier{Value: "photo.jpg", Kind: model.KindHash, Content: []byte{0x00, 0xff, 0x10}},
			Provenance: model.Provenance{SourceType: model.SourceImport},
		}
		require.NoError(t, s.CreateOrphan(ctx, o))
		got, err := s.GetOrphan(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x00, 0xff, 0x10}, got.Identifier.Content)
	})

	t.Run("MergeTransaction", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.CreateEntity(ctx, newPerson("keep", map[string]any{"names": "John"})))
		require.NoError(t, s.CreateEntity(ctx, newPerson("drop", map[string]any{"names": "Johnny"})))
		require.NoError(t, s.CreateEntity(ctx, newPerson("friend", nil)))
		require.NoError(t, s.CreateRelationship(ctx, &model.Relationship{FromID: "drop", ToID: "friend", Type: "knows"}))
		require.NoError(t, s.CreateRelationship(ctx, &model.Relationship{FromID: "keep", ToID: "drop", Type: "alias_of"}))

		err := s.RunInTx(ctx, func(tx Tx) error {
			keep, err := tx.GetEntityForUpdate(ctx, "keep")
			if err != nil {
				return err
			}
			if err := keep.Fields.Append("names", model.Scalar("Johnny")); err != nil {
				return err
			}
			if err := tx.UpdateEntity(ctx, keep); err != nil {
				return err
			}
			if _, err := tx.RepointRelationships(ctx, "drop", "keep"); err != nil {
				return err
			}
			if err := tx.RetireEntity(ctx, "drop", "keep"); err != nil {
				return err
			}
			return tx.AppendAudit(ctx, &model.AuditEntry{Action: model.AuditMerge, SubjectID: "keep", ObjectID: "drop", Reason: "same person"})
		})
		require.NoError(t, err)

		_, err = s.GetEntity(ctx, "drop")
		assert.True(t, errs.IsNotFound(err))
		retired, err := s.IsRetired(ctx, "drop")
		require.NoError(t, err)
		assert.True(t, retired)

		// A retired id can never be reused.
		err = s.CreateEntity(ctx, newPerson("drop", nil))
		assert.True(t, errs.IsValidation(err))

		rels, err := s.ListRelationships(ctx, "keep")
		require.NoError(t, err)
		require.Len(t, rels, 1)
		assert.Equal(t, "friend", rels[0].ToID)

		audit, err := s.ListAudit(ctx, "drop")
		require.NoError(t, err)
		require.Len(t, audit, 1)
		assert.Equal(t, "same person", audit[0].Reason)
	})

	t.Run("TxRollbackOnError", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.CreateEntity(ctx, newPerson("e1", map[string]any{"names": "John"})))

		err := s.RunInTx(ctx, func(tx Tx) error {
			e, err := tx.GetEntityForUpdate(ctx, "e1")
			if err != nil {
				return err
			}
			e.Fields["names"] = model.Scalar("Changed")
			if err := tx.UpdateEntity(ctx, e); err != nil {
				return err
			}
			return tx.RetireEntity(ctx, "missing", "e1")
		})
		require.Error(t, err)
		assert.True(t, errs.IsNotFound(err))

		got, err := s.GetEntity(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Version)
		v, _ := got.Field("names")
		assert.Equal(t, "John", v.String())
	})

	t.Run("OrphanLinkTransaction", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.CreateEntity(ctx, newPerson("e1", nil)))
		o := &model.OrphanData{
			Project:    "case-1",
			Identifier: model.Identifier{Value: "john@example.com", Kind: model.KindEmail},
			Provenance: model.Provenance{SourceType: model.SourceAPI},
		}
		require.NoError(t, s.CreateOrphan(ctx, o))

		at := time.Now().UTC()
		require.NoError(t, s.RunInTx(ctx, func(tx Tx) error {
			if _, err := tx.GetOrphanForUpdate(ctx, o.ID); err != nil {
				return err
			}
			return tx.MarkOrphanLinked(ctx, o.ID, "e1", at)
		}))

		got, err := s.GetOrphan(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, got.Linked)
		assert.Equal(t, "e1", got.LinkedEntityID)
		require.NotNil(t, got.LinkedAt)

		err = s.RunInTx(ctx, func(tx Tx) error {
			return tx.MarkOrphanLinked(ctx, o.ID, "e1", at)
		})
		assert.True(t, errs.IsConflict(err))

		linked := true
		list, err := s.ListOrphans(ctx, "case-1", &linked)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		require.NoError(t, s.RunInTx(ctx, func(tx Tx) error {
			return tx.DeleteOrphan(ctx, o.ID)
		}))
		_, err = s.GetOrphan(ctx, o.ID)
		assert.True(t, errs.IsNotFound(err))
	})

	t.Run("DataLinks", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		l := &model.DataLink{
			ItemA:  model.DataRef{Type: model.RefEntity, ID: "e1", FieldPath: "emails"},
			ItemB:  model.DataRef{Type: model.RefOrphan, ID: "o1"},
			Reason: "same mailbox",
		}
		require.NoError(t, s.RunInTx(ctx, func(tx Tx) error { return tx.CreateDataLink(ctx, l) }))
		assert.NotEmpty(t, l.ID)

		for _, id := range []string{"e1", "o1"} {
			links, err := s.ListDataLinks(ctx, id)
			require.NoError(t, err)
			require.Len(t, links, 1)
			assert.Equal(t, "entity:e1#emails", links[0].ItemA.String())
			assert.Equal(t, "orphan:o1", links[0].ItemB.String())
		}
	})

	t.Run("Decisions", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		d := model.Decision{
			SubjectID: "e1", CandidateID: "e2", SuggestionID: "s1",
			Status: model.StatusDismissed, Reason: "different people", Fingerprint: "fp1",
		}
		require.NoError(t, s.SaveDecision(ctx, d))

		d.Status = model.StatusAccepted
		d.Fingerprint = "fp2"
		require.NoError(t, s.SaveDecision(ctx, d))

		got, err := s.ListDecisions(ctx, "e1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, model.StatusAccepted, got[0].Status)
		assert.Equal(t, "fp2", got[0].Fingerprint)

		// The pair is visible from the candidate's side too.
		got, err = s.ListDecisions(ctx, "e2")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "e1", got[0].SubjectID)

		assert.True(t, errs.IsValidation(s.SaveDecision(ctx, model.Decision{SubjectID: "e1"})))
	})

	t.Run("DecisionInTx", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		d := model.Decision{
			SubjectID: "e3", CandidateID: "e4", SuggestionID: "s2",
			Status: model.StatusAccepted, Reason: "same phone", Fingerprint: "fp",
		}

		err := s.RunInTx(ctx, func(tx Tx) error {
			require.NoError(t, tx.SaveDecision(ctx, d))
			require.NoError(t, tx.AppendAudit(ctx, &model.AuditEntry{Action: model.AuditAccept, SubjectID: "e3", ObjectID: "e4", Reason: "same phone"}))
			return errs.Conflict("entity", "e3", "stale version")
		})
		require.True(t, errs.IsConflict(err))
		got, err := s.ListDecisions(ctx, "e3")
		require.NoError(t, err)
		assert.Empty(t, got, "rolled back with the audit entry")
		audit, err := s.ListAudit(ctx, "e3")
		require.NoError(t, err)
		assert.Empty(t, audit)

		require.NoError(t, s.RunInTx(ctx, func(tx Tx) error {
			return tx.SaveDecision(ctx, d)
		}))
		got, err = s.ListDecisions(ctx, "e4")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, model.StatusAccepted, got[0].Status)
	})

	t.Run("ImportEntities", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		n, err := s.ImportEntities(ctx, []*model.Entity{
			newPerson("i1", map[string]any{"names": "Ann"}),
			newPerson("i2", map[string]any{"names": "Bob"}),
		}, false)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		_, err = s.ImportEntities(ctx, []*model.Entity{newPerson("i1", nil)}, false)
		assert.True(t, errs.IsConflict(err))

		n, err = s.ImportEntities(ctx, []*model.Entity{newPerson("i1", map[string]any{"names": "Anne"})}, true)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		got, err := s.GetEntity(ctx, "i1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
		v, _ := got.Field("names")
		assert.Equal(t, "Anne", v.String())
	})
}

func TestSQLite_ConcurrentUpdatesConflict(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, s.CreateEntity(ctx, newPerson("e1", map[string]any{"names": "John"})))

	base, err := s.GetEntity(ctx, "e1")
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, stale int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := &model.Entity{ID: base.ID, Project: base.Project, Type: base.Type, Fields: base.Fields.Clone(), Version: base.Version}
			err := s.UpdateEntity(ctx, e)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errs.IsConflict(err) {
				stale++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, stale)
}

func entityIDs(es []*model.Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}
