package utils

import (
	"context"

	"github.com/gin-gonic/gin"
)

type CustomContext struct {
	AccountID    string
	AccountEmail string
	Roles        []string
}

type contextKey string

var customContextKey contextKey = "CUSTOM_CONTEXT"

func WithCustomContext(ctx context.Context, customContext *CustomContext) context.Context {
	return context.WithValue(ctx, customContextKey, customContext)
}

func WithCustomContextFromGinRequest(c *gin.Context) context.Context {
	customContext := &CustomContext{
		AccountID:    c.GetString("AccountID"),
		AccountEmail: c.GetString("AccountEmail"),
		Roles:        c.GetStringSlice("AccountRoles"),
	}
	return WithCustomContext(c.Request.Context(), customContext)
}

func GetContext(ctx context.Context) *CustomContext {
	customContext, ok := ctx.Value(customContextKey).(*CustomContext)
	if !ok {
		return new(CustomContext)
	}
	return customContext
}

func GetAccountIDFromContext(ctx context.Context) string {
	return GetContext(ctx).AccountID
}

func GetAccountEmailFromContext(ctx context.Context) string {
	return GetContext(ctx).AccountEmail
}
