package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ventiahq/ventia-backend/api/responses"
	pkgerrors "github.com/ventiahq/ventia-backend/pkg/errors"
	"github.com/ventiahq/ventia-backend/pkg/logger"
)

const (
	workspaceIDHeader = "X-Workspace-Id"
	actorHeader       = "X-Actor"
)

type contextKey string

const (
	ctxWorkspaceID contextKey = "workspace_id"
	ctxActor       contextKey = "actor"
)

func WorkspaceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxWorkspaceID).(string); ok {
		return v
	}
	return ""
}

func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActor).(string); ok {
		return v
	}
	return ""
}

// WithWorkspaceID injects the workspace identifier into the context.
func WithWorkspaceID(ctx context.Context, workspaceID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxWorkspaceID, workspaceID)
}

// WithActor injects the acting identity into the context for audit trails.
func WithActor(ctx context.Context, actor string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

// WorkspaceContext requires a workspace header on every request and threads
// the identifiers into the context and the request logger.
func WorkspaceContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(workspaceIDHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "X-Workspace-Id header required"))
				return
			}
			workspaceID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid workspace id"))
				return
			}

			ctx := WithWorkspaceID(r.Context(), workspaceID.String())
			if actor := strings.TrimSpace(r.Header.Get(actorHeader)); actor != "" {
				ctx = WithActor(ctx, actor)
			}
			if logg != nil {
				ctx = logg.WithWorkspaceID(ctx, workspaceID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
