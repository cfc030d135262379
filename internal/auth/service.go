// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/authcore/internal/notify"
	"github.com/holomush/authcore/pkg/errutil"
)

// Audit actions, also used as span and metric names.
const (
	ActionChangePassword = "auth.change_password"
	ActionResetPassword  = "auth.reset_password"
	ActionRequestReset   = "auth.request_reset"
	ActionSignOut        = "auth.signout"
	ActionAuthenticate   = "auth.authenticate"
)

const tracerName = "github.com/holomush/authcore/internal/auth"

// ClientRegistry is the view of the connection registry the flows need.
type ClientRegistry interface {
	Unbind(clientID string) bool
	UnbindAll(uid string) int
}

// Notifier dispatches notifications without blocking.
type Notifier interface {
	Dispatch(event notify.Event)
}

// Deps are the collaborators of a Service. Notifier may be nil.
type Deps struct {
	Store    AccountStore
	Hasher   PasswordHasher
	Cache    SessionCache
	Clients  ClientRegistry
	Notifier Notifier
	// Secret signs reset codes and public access tokens.
	Secret []byte
}

// Service runs the credential flows.
type Service struct {
	store    AccountStore
	hasher   PasswordHasher
	cache    SessionCache
	clients  ClientRegistry
	notifier Notifier
	secret   []byte

	logger  *slog.Logger
	now     func() time.Time
	metrics *Metrics
	tracer  trace.Tracer
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger for audit events and failures.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithMetrics records flow outcomes in m.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) ServiceOption {
	return func(s *Service) { s.tracer = t }
}

type discardNotifier struct{}

func (discardNotifier) Dispatch(notify.Event) {}

// NewService creates a Service, rejecting missing dependencies.
func NewService(deps Deps, opts ...ServiceOption) (*Service, error) {
	switch {
	case deps.Store == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("account store is required")
	case deps.Hasher == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	case deps.Cache == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session cache is required")
	case deps.Clients == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("client registry is required")
	case len(deps.Secret) == 0:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("signing secret is required")
	}

	s := &Service{
		store:    deps.Store,
		hasher:   deps.Hasher,
		cache:    deps.Cache,
		clients:  deps.Clients,
		notifier: deps.Notifier,
		secret:   deps.Secret,
		logger:   slog.Default(),
		now:      time.Now,
		tracer:   otel.Tracer(tracerName),
	}
	if s.notifier == nil {
		s.notifier = discardNotifier{}
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("logger is required")
	}
	if s.now == nil || s.tracer == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("clock and tracer must not be nil")
	}
	return s, nil
}

// flowScope carries what a single flow invocation logs and traces.
type flowScope struct {
	action string
	uid    string
	ip     string
	span   trace.Span
}

func (s *Service) begin(ctx context.Context, action, uid, ip string) (context.Context, *flowScope) {
	ctx, span := s.tracer.Start(ctx, action, trace.WithAttributes(
		attribute.String("auth.uid", uid),
		attribute.String("client.ip", ip),
	))
	return ctx, &flowScope{action: action, uid: uid, ip: ip, span: span}
}

// end closes the span and records the outcome. Call it deferred with a
// pointer to the named error result.
func (s *Service) end(f *flowScope, err *error) {
	if *err != nil {
		f.span.SetStatus(codes.Error, string(CodeOf(*err)))
	} else {
		f.span.SetStatus(codes.Ok, "")
	}
	f.span.End()
	s.metrics.observe(f.action, *err)
}

// fail passes flow codes through and replaces anything else by an opaque
// unexpected error after logging it with full context.
func (s *Service) fail(ctx context.Context, f *flowScope, err error) error {
	if c := CodeOf(err); c != CodeUnexpected {
		return err
	}
	f.span.RecordError(err)
	errutil.LogError(ctx, s.logger, "auth flow failed", err,
		"action", f.action, "uid", f.uid, "ip", f.ip)
	return newError(CodeUnexpected)
}

func (s *Service) audit(ctx context.Context, f *flowScope, attrs ...any) {
	fields := append([]any{"action", f.action, "uid", f.uid, "ip", f.ip}, attrs...)
	s.logger.InfoContext(ctx, "auth event", fields...)
}
