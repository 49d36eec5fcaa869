package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/CC-PatrickC/MyGovRemaster/internal/repository"
	"github.com/CC-PatrickC/MyGovRemaster/internal/service"
	"github.com/CC-PatrickC/MyGovRemaster/internal/utils"
)

type AttachmentHTTP struct {
	svc   *service.WorkflowService
	users repository.UserRepository
}

func NewAttachmentHTTP(svc *service.WorkflowService, users repository.UserRepository) *AttachmentHTTP {
	return &AttachmentHTTP{svc: svc, users: users}
}

// multipart memory ceiling; larger parts spill to temp files.
const uploadMemoryLimit = 4 << 20

// -----------------------------------------------------------------------------
// POST /api/requests/{id}/attachments  (multipart field "file")
// -----------------------------------------------------------------------------
func (h *AttachmentHTTP) Upload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			utils.Error(w, http.StatusBadRequest, "missing id")
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

		// A little headroom over the attachment limit so the service
		// can reject oversize files with a field error instead of the
		// connection dropping mid-body.
		r.Body = http.MaxBytesReader(w, r.Body, (10<<20)+(1<<20))
		if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
			utils.FieldErrors(w, http.StatusBadRequest, map[string]string{"file": "file is required"})
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			utils.FieldErrors(w, http.StatusBadRequest, map[string]string{"file": "file is required"})
			return
		}
		defer file.Close()

		a, err := h.svc.UploadAttachment(r.Context(), id, service.FileUpload{
			Name:   header.Filename,
			Size:   header.Size,
			Reader: file,
		}, actor)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.JSON(w, http.StatusCreated, a)
	}
}

// -----------------------------------------------------------------------------
// GET /api/attachments/{id}/file
// -----------------------------------------------------------------------------
func (h *AttachmentHTTP) Download() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			utils.Error(w, http.StatusBadRequest, "missing id")
			return
		}
		a, f, err := h.svc.OpenAttachment(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		defer f.Close()

		w.Header().Set("Content-Disposition", `attachment; filename="`+a.FileName+`"`)
		http.ServeContent(w, r, a.FileName, a.CreatedAt, f)
	}
}

// -----------------------------------------------------------------------------
// DELETE /api/attachments/{id}
// -----------------------------------------------------------------------------
func (h *AttachmentHTTP) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			utils.Error(w, http.StatusBadRequest, "missing id")
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

		if err := h.svc.DeleteAttachment(r.Context(), id, actor); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
