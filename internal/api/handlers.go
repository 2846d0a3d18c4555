package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/errs"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/ingest"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/suggest"
)

type reasonRequest struct {
	Reason string `json:"reason"`
}

type mergeRequest struct {
	A      string `json:"a"`
	B      string `json:"b"`
	Keep   string `json:"keep"`
	Reason string `json:"reason"`
}

type linkItemsRequest struct {
	A      refParam `json:"a"`
	B      refParam `json:"b"`
	Reason string   `json:"reason"`
}

// refParam accepts a data ref either as an object or in its string form,
// e.g. "entity:p1#emails".
type refParam struct {
	model.DataRef
}

func (p *refParam) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		ref, err := model.ParseDataRef(s)
		if err != nil {
			return err
		}
		p.DataRef = ref
		return nil
	}
	return json.Unmarshal(data, &p.DataRef)
}

type linkOrphanRequest struct {
	EntityID string `json:"entity_id"`
	Reason   string `json:"reason"`
}

// writeSuggestions answers 200 with the set, or 504 with the partial set
// and an explicit flag when matching was cut off.
func writeSuggestions(w http.ResponseWriter, r *http.Request, set *model.SuggestionSet, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, set)
		return
	}
	if errs.IsPartial(err) && set != nil {
		writeJSON(w, http.StatusGatewayTimeout, map[string]any{
			"partial":     true,
			"error":       err.Error(),
			"suggestions": set,
		})
		return
	}
	writeError(w, r, err)
}

func (h *Handler) handleEntitySuggestions(w http.ResponseWriter, r *http.Request) {
	set, err := h.suggest.GetSuggestions(r.Context(), chi.URLParam(r, "id"))
	writeSuggestions(w, r, set, err)
}

func (h *Handler) handleOrphanSuggestions(w http.ResponseWriter, r *http.Request) {
	set, err := h.suggest.GetOrphanSuggestions(r.Context(), chi.URLParam(r, "id"))
	writeSuggestions(w, r, set, err)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	var req suggest.AcceptRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.suggest.Accept(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sid"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleDismiss(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sg, err := h.suggest.Dismiss(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sid"), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sg)
}

func (h *Handler) handleAcceptOrphan(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.suggest.AcceptOrphan(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sid"), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleDismissOrphan(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sg, err := h.suggest.DismissOrphan(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sid"), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sg)
}

func (h *Handler) handleCreateOrphan(w http.ResponseWriter, r *http.Request) {
	var req ingest.OrphanInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.ingest.CreateOrphan(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": o.ID})
}

func (h *Handler) handleGetOrphan(w http.ResponseWriter, r *http.Request) {
	o, err := h.store.GetOrphan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.GetEntity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListAudit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.linker.MergeEntities(r.Context(), req.A, req.B, req.Keep, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) handleLinkItems(w http.ResponseWriter, r *http.Request) {
	var req linkItemsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	l, err := h.linker.LinkDataItems(r.Context(), req.A.DataRef, req.B.DataRef, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *Handler) handleLinkOrphan(w http.ResponseWriter, r *http.Request) {
	var req linkOrphanRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.linker.LinkOrphanToEntity(r.Context(), chi.URLParam(r, "id"), req.EntityID, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
