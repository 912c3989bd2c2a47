package utils

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/mes_backend/appctx"
)

// SystemActor is the sentinel identity for mutations that arrive without an
// authenticated user (schedulers, seeders, internal tools).
const SystemActor = "SYSTEM"

// ActorOrSystem resolves the audit identity for a mutating call. Every model
// function takes the actor explicitly; there is no ambient security context.
func ActorOrSystem(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return SystemActor
	}
	return actor
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return context.WithValue(ctx, appctx.ContextKeyCorrelationId, correlationId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyCorrelationId)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return context.WithValue(ctx, appctx.ContextKeyUserName, userName)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyUserName)
}
