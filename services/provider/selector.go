package provider

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/flowmail/flowmail/interfaces"
	"github.com/flowmail/flowmail/internal/logger"
	"github.com/flowmail/flowmail/internal/tracing"
)

type providerSelector struct {
	gmail interfaces.EmailProvider
	local interfaces.EmailProvider
	log   logger.Logger
}

// NewProviderSelector wires the two mailbox providers. Selection happens on
// every call; a credential revoked between requests downgrades the account to
// the local mailbox without any cached state getting in the way.
func NewProviderSelector(gmail, local interfaces.EmailProvider, log logger.Logger) interfaces.ProviderSelector {
	return &providerSelector{
		gmail: gmail,
		local: local,
		log:   log,
	}
}

// GetProvider returns the Gmail provider when the account has a usable
// credential, otherwise the local provider. It never fails.
func (s *providerSelector) GetProvider(ctx context.Context, accountID string) interfaces.EmailProvider {
	span, ctx := opentracing.StartSpanFromContext(ctx, "providerSelector.GetProvider")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)

	if s.gmail != nil && s.gmail.IsAvailable(ctx, accountID) {
		tracing.TagProvider(span, s.gmail.Provider().String())
		return s.gmail
	}

	tracing.TagProvider(span, s.local.Provider().String())
	return s.local
}
