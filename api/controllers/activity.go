package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/stayhq-ng/hostelpay-backend/api/responses"
	"github.com/stayhq-ng/hostelpay-backend/api/validators"
	"github.com/stayhq-ng/hostelpay-backend/internal/activity"
	"github.com/stayhq-ng/hostelpay-backend/pkg/db/models"
	"github.com/stayhq-ng/hostelpay-backend/pkg/enums"
	pkgerrors "github.com/stayhq-ng/hostelpay-backend/pkg/errors"
	"github.com/stayhq-ng/hostelpay-backend/pkg/logger"
	"github.com/stayhq-ng/hostelpay-backend/pkg/pagination"
)

type activityRepository interface {
	List(ctx context.Context, params activity.ListQuery) ([]models.ActivityLog, *pagination.Cursor, error)
}

type activityListResponse struct {
	Entries    []models.ActivityLog `json:"entries"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// ActivityList returns the audit trail newest first, optionally filtered by
// activity type.
func ActivityList(repo activityRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activity repository unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cursor, err := pagination.ParseCursor(r.URL.Query().Get("cursor"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}

		query := activity.ListQuery{Limit: limit, Cursor: cursor}
		if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
			activityType, err := enums.ParseActivityType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid activity type"))
				return
			}
			query.Type = &activityType
		}

		entries, next, err := repo.List(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list activity"))
			return
		}
		if entries == nil {
			entries = []models.ActivityLog{}
		}

		payload := activityListResponse{Entries: entries}
		if next != nil {
			payload.NextCursor = pagination.EncodeCursor(*next)
		}
		responses.WriteSuccess(w, payload)
	}
}
