package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/CC-PatrickC/MyGovRemaster/internal/repository"
	"github.com/CC-PatrickC/MyGovRemaster/internal/service"
	"github.com/CC-PatrickC/MyGovRemaster/internal/utils"
)

// RequestHTTP wires the workflow operations to HTTP endpoints.
type RequestHTTP struct {
	svc      *service.WorkflowService
	requests repository.RequestRepository
	users    repository.UserRepository
}

func NewRequestHTTP(svc *service.WorkflowService, requests repository.RequestRepository, users repository.UserRepository) *RequestHTTP {
	return &RequestHTTP{svc: svc, requests: requests, users: users}
}

// -----------------------------------------------------------------------------
// GET /api/requests
// -----------------------------------------------------------------------------
func (h *RequestHTTP) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qv := r.URL.Query()
		f := repository.RequestFilter{
			Q:           strings.TrimSpace(qv.Get("q")),
			Stage:       strings.TrimSpace(qv.Get("stage")),
			RequestType: strings.TrimSpace(qv.Get("request_type")),
			Priority:    strings.TrimSpace(qv.Get("priority")),
			Department:  strings.TrimSpace(qv.Get("department")),
			CreatedBy:   strings.TrimSpace(qv.Get("created_by")),
			Limit:       utils.QueryInt(qv, "limit", 20),
			Offset:      utils.QueryInt(qv, "offset", 0),
			Sort:        qv.Get("sort"),
			Order:       qv.Get("order"),
		}

		items, total, err := h.requests.List(r.Context(), f)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("X-Total-Count", strconv.Itoa(total))
		utils.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
	}
}

// -----------------------------------------------------------------------------
// GET /api/requests/{id}
// -----------------------------------------------------------------------------
func (h *RequestHTTP) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			utils.Error(w, http.StatusBadRequest, "missing id")
			return
		}
		detail, err := h.svc.GetRequest(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		// Empty audit values render as their display sentinel.
		for i := range detail.ChangeHistory {
			detail.ChangeHistory[i].OldValue = displayValue(detail.ChangeHistory[i].OldValue)
			detail.ChangeHistory[i].NewValue = displayValue(detail.ChangeHistory[i].NewValue)
		}
		utils.JSON(w, http.StatusOK, detail)
	}
}

// -----------------------------------------------------------------------------
// POST /api/requests
// -----------------------------------------------------------------------------
func (h *RequestHTTP) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}

		actor, err := currentUser(r, h.users)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if actor == nil {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		req, err := h.svc.CreateRequest(r.Context(), in, actor)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.JSON(w, http.StatusCreated, req)
	}
}

// -----------------------------------------------------------------------------
// PATCH /api/requests/{id}
// The payload schema depends on the request's current stage, so the
// raw body is handed to the workflow service untouched.
// -----------------------------------------------------------------------------
func (h *RequestHTTP) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			utils.Error(w, http.StatusBadRequest, "missing id")
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			utils.Error(w, http.StatusBadRequest, "body too large")
			return
		}

		actor, err := currentUser(r, h.users)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if actor == nil {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		res, err := h.svc.SubmitEdit(r.Context(), id, payload, actor)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, res)
	}
}

// -----------------------------------------------------------------------------
// POST /api/requests/{id}/archive
// -----------------------------------------------------------------------------
func (h *RequestHTTP) Archive() http.HandlerFunc {
	type inDTO struct {
		Reason string `json:"reason"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			utils.Error(w, http.StatusBadRequest, "missing id")
			return
		}
		var in inDTO
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}

		actor, err := currentUser(r, h.users)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if actor == nil {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		req, err := h.svc.ArchiveRequest(r.Context(), id, in.Reason, actor)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, req)
	}
}
