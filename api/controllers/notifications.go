package controllers

import (
	"net/http"

	"github.com/ventiahq/ventia-backend/api/responses"
	"github.com/ventiahq/ventia-backend/api/validators"
	"github.com/ventiahq/ventia-backend/internal/notifications"
	pkgerrors "github.com/ventiahq/ventia-backend/pkg/errors"
	"github.com/ventiahq/ventia-backend/pkg/logger"
)

// ListNotifications returns the workspace's most recent notifications.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}

		workspaceID, err := parseWorkspaceID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByWorkspace(r.Context(), workspaceID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
