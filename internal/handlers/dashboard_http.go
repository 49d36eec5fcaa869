package handlers

import (
	"net/http"

	"github.com/CC-PatrickC/MyGovRemaster/internal/repository"
	"github.com/CC-PatrickC/MyGovRemaster/internal/service"
	"github.com/CC-PatrickC/MyGovRemaster/internal/utils"
)

type DashboardHTTP struct {
	svc   *service.WorkflowService
	users repository.UserRepository
}

func NewDashboardHTTP(svc *service.WorkflowService, users repository.UserRepository) *DashboardHTTP {
	return &DashboardHTTP{svc: svc, users: users}
}

// GET /api/dashboard
// Stage-grouped sections: triage (gated by triage authority),
// governance, final governance.
func (h *DashboardHTTP) Summary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := currentUser(r, h.users)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if actor == nil {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		d, err := h.svc.Dashboard(r.Context(), actor)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		utils.JSON(w, http.StatusOK, d)
	}
}
