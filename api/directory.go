/*
directory.go - Passthrough CRUD for the directory entities

PURPOSE:
  Stands, customers, and agencies carry no domain logic (the source
  system treats them as plain tables behind forms), so they share one
  generic handler set over the record store instead of three copies of
  the same code. Request bodies are filtered to the resource's editable
  fields; the store's unique indexes (stand_number) still apply.

SEE ALSO:
  - server.go: Route registration per resource
  - store/sqlite/sqlite.go: Schemas and unique indexes
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/karland/sales-engine/record"
)

// directoryResource describes one passthrough table.
type directoryResource struct {
	table    string
	label    string
	fields   []string // editable fields, in schema order
	required []string
}

var (
	standsResource = directoryResource{
		table:    "stands",
		label:    "stand",
		fields:   []string{"stand_number", "location", "area_sqm", "price", "status", "agency_id"},
		required: []string{"stand_number"},
	}
	customersResource = directoryResource{
		table:    "customers",
		label:    "customer",
		fields:   []string{"first_name", "last_name", "id_number", "email", "phone", "address", "notes"},
		required: []string{"first_name", "last_name"},
	}
	agenciesResource = directoryResource{
		table:    "agencies",
		label:    "agency",
		fields:   []string{"name", "contact_person", "phone", "email", "is_active"},
		required: []string{"name"},
	}
)

// mountDirectory registers List/Create/Get/Update/Delete for a resource.
func (h *Handler) mountDirectory(r chi.Router, res directoryResource) {
	r.Get("/", h.directoryList(res))
	r.Post("/", h.directoryCreate(res))
	r.Get("/{id}", h.directoryGet(res))
	r.Put("/{id}", h.directoryUpdate(res))
	r.Delete("/{id}", h.directoryDelete(res))
}

func (h *Handler) directoryList(res directoryResource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := h.Store.Query(r.Context(), record.Query{
			Table:      res.table,
			OrderBy:    "created_at",
			Descending: true,
		})
		if err != nil {
			h.writeServiceError(w, "Failed to list "+res.label+"s", err)
			return
		}
		if recs == nil {
			recs = []record.Record{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func (h *Handler) directoryCreate(res directoryResource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := decodeDirectoryBody(w, r, res)
		if !ok {
			return
		}
		body["id"] = uuid.NewString()
		body["created_at"] = time.Now().UTC().Format(time.RFC3339)

		created, err := h.Store.Insert(r.Context(), res.table, body)
		if err != nil {
			if record.IsConflict(err) {
				writeError(w, http.StatusConflict, "Duplicate "+res.label, err)
				return
			}
			h.writeServiceError(w, "Failed to create "+res.label, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func (h *Handler) directoryGet(res directoryResource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := record.Get(r.Context(), h.Store, res.table, chi.URLParam(r, "id"))
		if err != nil {
			h.writeServiceError(w, "Failed to get "+res.label, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (h *Handler) directoryUpdate(res directoryResource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := decodeDirectoryBody(w, r, res)
		if !ok {
			return
		}
		updated, err := h.Store.Update(r.Context(), res.table, chi.URLParam(r, "id"), body)
		if err != nil {
			if record.IsConflict(err) {
				writeError(w, http.StatusConflict, "Duplicate "+res.label, err)
				return
			}
			h.writeServiceError(w, "Failed to update "+res.label, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func (h *Handler) directoryDelete(res directoryResource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.Store.Delete(r.Context(), res.table, chi.URLParam(r, "id")); err != nil {
			h.writeServiceError(w, "Failed to delete "+res.label, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// decodeDirectoryBody reads the request body and keeps only the
// resource's editable fields.
func decodeDirectoryBody(w http.ResponseWriter, r *http.Request, res directoryResource) (record.Record, bool) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, false
	}

	body := make(record.Record, len(res.fields))
	for _, field := range res.fields {
		if v, ok := raw[field]; ok {
			body[field] = v
		}
	}
	for _, field := range res.required {
		if s, _ := body[field].(string); s == "" {
			writeError(w, http.StatusBadRequest, "Missing required field: "+field, nil)
			return nil, false
		}
	}
	return body, true
}
