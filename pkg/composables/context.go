package composables

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/solumhq/casedesk/pkg/constants"
)

var (
	ErrNoTenant = errors.New("no tenant found in context")
	ErrNoActor  = errors.New("no acting user found in context")
)

// Tenant identifies the organization tree a request operates in.
type Tenant struct {
	ID   uuid.UUID
	Name string
}

// Actor is the authenticated user on whose behalf events are appended.
type Actor struct {
	ID    uuid.UUID
	Email string
}

func WithTenant(ctx context.Context, tenant *Tenant) context.Context {
	return context.WithValue(ctx, constants.TenantKey, tenant)
}

func UseTenant(ctx context.Context) (*Tenant, error) {
	tenant, ok := ctx.Value(constants.TenantKey).(*Tenant)
	if !ok || tenant == nil {
		return nil, ErrNoTenant
	}
	return tenant, nil
}

func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, constants.UserKey, actor)
}

func UseActor(ctx context.Context) (*Actor, error) {
	actor, ok := ctx.Value(constants.UserKey).(*Actor)
	if !ok || actor == nil {
		return nil, ErrNoActor
	}
	return actor, nil
}

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the request logger, or a discard logger when none is set
// so library code never has to nil-check.
func UseLogger(ctx context.Context) *logrus.Entry {
	logger, ok := ctx.Value(constants.LoggerKey).(*logrus.Entry)
	if !ok || logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		return logrus.NewEntry(l)
	}
	return logger
}
