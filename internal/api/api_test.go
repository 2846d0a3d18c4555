package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/errs"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/ingest"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/link"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/match"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/store"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/suggest"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/verify"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestAPI(t *testing.T) (http.Handler, store.Store) {
	t.Helper()
	return newVerifyingTestAPI(t, nil, false)
}

func newVerifyingTestAPI(t *testing.T, verifier verify.Verifier, requirePlausible bool) (http.Handler, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	engine := match.NewEngine(nil)
	linker := link.NewLinker(st, engine.Policy(), nil, link.Options{})
	sg := suggest.NewService(st, engine, linker, match.DefaultOptions(), 5*time.Second)
	in := ingest.NewService(st, verifier, requirePlausible)

	ctx := context.Background()
	for _, e := range []*model.Entity{
		{ID: "p1", Project: "case-1", Type: model.EntityPerson, Fields: model.Fields{
			"names":  model.Scalar("John Smith"),
			"emails": model.Scalar("john.smith@example.com"),
		}},
		{ID: "p2", Project: "case-1", Type: model.EntityPerson, Fields: model.Fields{
			"names": model.Scalar("Jon Smith"),
		}},
		{ID: "p3", Project: "case-1", Type: model.EntityPerson, Fields: model.Fields{
			"usernames": model.Scalar("ghost"),
		}},
	} {
		require.NoError(t, st.CreateEntity(ctx, e))
	}

	return NewHandler(st, sg, linker, in).Routes([]string{"*"}), st
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h, _ := newTestAPI(t)

	rr := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "ok", decodeBody[map[string]string](t, rr)["status"])
}

func TestEntitySuggestions(t *testing.T) {
	h, _ := newTestAPI(t)

	rr := do(t, h, http.MethodGet, "/v1/entities/p1/suggestions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	set := decodeBody[model.SuggestionSet](t, rr)
	assert.Equal(t, "p1", set.SubjectID)
	require.Len(t, set.High, 1)
	assert.Equal(t, "p2", set.High[0].Match.CandidateEntityID)

	rr = do(t, h, http.MethodGet, "/v1/entities/p3/suggestions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	empty := decodeBody[model.SuggestionSet](t, rr)
	assert.Zero(t, empty.TotalCount)
	assert.NotNil(t, empty.High)

	rr = do(t, h, http.MethodGet, "/v1/entities/nope/suggestions", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDismissThenAccept(t *testing.T) {
	h, _ := newTestAPI(t)
	sid := suggest.SuggestionID("p1", "p2")

	rr := do(t, h, http.MethodPost, "/v1/entities/p1/suggestions/"+sid+"/dismiss", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "reason is required")

	rr = do(t, h, http.MethodPost, "/v1/entities/p1/suggestions/"+sid+"/dismiss", map[string]string{"reason": "different people"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, model.StatusDismissed, decodeBody[model.Suggestion](t, rr).Status)

	rr = do(t, h, http.MethodPost, "/v1/entities/p1/suggestions/"+sid+"/accept", map[string]string{"reason": "changed my mind"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/entities/p1/suggestions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, decodeBody[model.SuggestionSet](t, rr).TotalCount)
}

func TestAcceptMerge(t *testing.T) {
	h, _ := newTestAPI(t)
	sid := suggest.SuggestionID("p1", "p2")

	rr := do(t, h, http.MethodPost, "/v1/entities/p1/suggestions/"+sid+"/accept",
		suggest.AcceptRequest{Action: suggest.ActionMerge, Reason: "same person"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decodeBody[suggest.AcceptResult](t, rr)
	require.NotNil(t, res.Entity)
	assert.Equal(t, "p1", res.Entity.ID)
	assert.Equal(t, model.StatusAccepted, res.Suggestion.Status)

	rr = do(t, h, http.MethodGet, "/v1/entities/p2", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/entities/p1/audit", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	audit := decodeBody[map[string][]model.AuditEntry](t, rr)
	assert.NotEmpty(t, audit["entries"])
}

func TestOrphanFlow(t *testing.T) {
	h, _ := newTestAPI(t)

	rr := do(t, h, http.MethodPost, "/v1/orphans", ingest.OrphanInput{
		Project:    "case-1",
		Identifier: model.Identifier{Kind: model.KindEmail, Value: "JOHN.SMITH@example.com"},
		Provenance: model.Provenance{
			SourceType: model.SourceWebsite,
			SourceURL:  "https://forum.example/t/1",
			CapturedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	orphanID := decodeBody[map[string]string](t, rr)["id"]
	require.NotEmpty(t, orphanID)

	rr = do(t, h, http.MethodGet, "/v1/orphans/"+orphanID+"/suggestions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	set := decodeBody[model.SuggestionSet](t, rr)
	require.Len(t, set.High, 1)
	sg := set.High[0]
	assert.Equal(t, "p1", sg.Match.CandidateEntityID)

	rr = do(t, h, http.MethodPost, "/v1/orphans/"+orphanID+"/suggestions/"+sg.ID+"/accept", map[string]string{"reason": "confirmed"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/v1/orphans/"+orphanID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	o := decodeBody[model.OrphanData](t, rr)
	assert.True(t, o.Linked)
	assert.Equal(t, "p1", o.LinkedEntityID)
}

func TestCreateOrphan_Invalid(t *testing.T) {
	h, st := newTestAPI(t)
	input := ingest.OrphanInput{
		Project:    "case-1",
		Identifier: model.Identifier{Kind: model.KindEmail, Value: "not-an-email"},
		Provenance: model.Provenance{SourceType: model.SourceHumanEntry},
	}

	// Without verification a malformed identifier is kept verbatim.
	rr := do(t, h, http.MethodPost, "/v1/orphans", input)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeBody[map[string]string](t, rr)
	o, err := st.GetOrphan(context.Background(), created["id"])
	require.NoError(t, err)
	assert.Equal(t, "not-an-email", o.Identifier.Value)

	rr = do(t, h, http.MethodPost, "/v1/orphans", ingest.OrphanInput{
		Project:    "case-1",
		Identifier: model.Identifier{Kind: model.KindEmail, Value: "a@example.com"},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "provenance required")

	req := httptest.NewRequest(http.MethodPost, "/v1/orphans", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid JSON")

	strict, _ := newVerifyingTestAPI(t, verify.FormatVerifier{}, true)
	rr = do(t, strict, http.MethodPost, "/v1/orphans", input)
	assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), "implausible")
}

func TestMergeAndLinkRoutes(t *testing.T) {
	h, _ := newTestAPI(t)

	rr := do(t, h, http.MethodPost, "/v1/links", map[string]any{
		"a":      model.DataRef{Type: "entity", ID: "p1", FieldPath: "names"},
		"b":      model.DataRef{Type: "entity", ID: "p2", FieldPath: "names"},
		"reason": "same handle",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodPost, "/v1/links", map[string]string{"a": "entity:p1#emails", "b": "entity:p3#usernames", "reason": "same operator"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	l := decodeBody[model.DataLink](t, rr)
	assert.Equal(t, "usernames", l.ItemB.FieldPath)

	rr = do(t, h, http.MethodPost, "/v1/links", map[string]string{"a": "vehicle:v1", "b": "entity:p3", "reason": "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/v1/entities/merge", map[string]string{"a": "p1", "b": "p1", "keep": "p1", "reason": "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/v1/entities/merge", map[string]string{"a": "p1", "b": "p3", "keep": "p3", "reason": "alias"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	merged := decodeBody[model.Entity](t, rr)
	assert.Equal(t, "p3", merged.ID)
	_, ok := merged.Field("emails")
	assert.True(t, ok)

	rr = do(t, h, http.MethodPost, "/v1/orphans/missing/link", map[string]string{"entity_id": "p3", "reason": "x"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errs.Validation("reason", "required"), http.StatusBadRequest},
		{errs.NotFound("entity", "x"), http.StatusNotFound},
		{errs.Conflict("entity", "x", "stale"), http.StatusConflict},
		{errs.Partial(1, 3, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errs.Unavailable("ping", errors.New("refused")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestWriteSuggestions_Partial(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/entities/p1/suggestions", nil)
	rr := httptest.NewRecorder()
	set := &model.SuggestionSet{SubjectID: "p1", High: []model.Suggestion{}, Medium: []model.Suggestion{}, Low: []model.Suggestion{}}

	writeSuggestions(rr, req, set, errs.Partial(2, 10, context.DeadlineExceeded))

	assert.Equal(t, http.StatusGatewayTimeout, rr.Code)
	body := decodeBody[map[string]any](t, rr)
	assert.Equal(t, true, body["partial"])
	assert.NotNil(t, body["suggestions"])
}

func TestCORS(t *testing.T) {
	h, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/entities/p1/suggestions", nil)
	req.Header.Set("Origin", "https://analyst.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
