package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/marketsync_backend/appctx"
)

var (
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyClientId      = appctx.ContextKeyClientId
	ContextKeyMarketplace   = appctx.ContextKeyMarketplace
)

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func GetClientIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyClientId)
}

func SetClientIdInContext(ctx context.Context, clientId string) context.Context {
	return appctx.Set(ctx, ContextKeyClientId, clientId)
}

func GetMarketplaceFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyMarketplace)
}

func SetMarketplaceInContext(ctx context.Context, marketplace string) context.Context {
	return appctx.Set(ctx, ContextKeyMarketplace, marketplace)
}
