package handlers

import (
	"net/http"

	"github.com/CC-PatrickC/MyGovRemaster/internal/middleware"
	"github.com/CC-PatrickC/MyGovRemaster/internal/models"
	"github.com/CC-PatrickC/MyGovRemaster/internal/repository"
	"github.com/CC-PatrickC/MyGovRemaster/internal/service"
	"github.com/CC-PatrickC/MyGovRemaster/internal/utils"
)

// currentUser resolves the acting user from the session context. A nil
// user with nil error means the request is unauthenticated.
func currentUser(r *http.Request, users repository.UserRepository) (*models.User, error) {
	uid := middleware.UserID(r.Context())
	if uid == "" {
		return nil, nil
	}
	return users.GetByID(r.Context(), uid)
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	if ve, ok := service.AsValidation(err); ok {
		utils.FieldErrors(w, http.StatusBadRequest, ve.Fields)
		return
	}
	if service.IsNotFound(err) {
		utils.Error(w, http.StatusNotFound, err.Error())
		return
	}
	if service.IsPermissionDenied(err) {
		utils.Error(w, http.StatusForbidden, "forbidden")
		return
	}
	utils.Error(w, http.StatusInternalServerError, err.Error())
}

// displayValue renders an empty audit value with its display sentinel.
func displayValue(s string) string {
	if s == "" {
		return "(empty)"
	}
	return s
}
