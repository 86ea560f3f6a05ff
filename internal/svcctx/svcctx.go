// Package svcctx provides service context for dependency injection via
// context. This package is separate from server to avoid import cycles
// with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/pagewright/scriptorium/internal/claim"
	"github.com/pagewright/scriptorium/internal/config"
	"github.com/pagewright/scriptorium/internal/home"
	"github.com/pagewright/scriptorium/internal/ingest"
	"github.com/pagewright/scriptorium/internal/reconcile"
	"github.com/pagewright/scriptorium/internal/store"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Store      *store.Store
	Claims     *claim.Service
	Reconciler *reconcile.Reconciler
	Ingest     *ingest.Pipeline
	ConfigMgr  *config.Manager
	Logger     *slog.Logger
	Home       *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// StoreFrom extracts the store from context.
func StoreFrom(ctx context.Context) *store.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// ClaimsFrom extracts the claim service from context.
func ClaimsFrom(ctx context.Context) *claim.Service {
	if s := ServicesFrom(ctx); s != nil {
		return s.Claims
	}
	return nil
}

// ReconcilerFrom extracts the reconciler from context.
func ReconcilerFrom(ctx context.Context) *reconcile.Reconciler {
	if s := ServicesFrom(ctx); s != nil {
		return s.Reconciler
	}
	return nil
}

// IngestFrom extracts the ingestion pipeline from context.
func IngestFrom(ctx context.Context) *ingest.Pipeline {
	if s := ServicesFrom(ctx); s != nil {
		return s.Ingest
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
