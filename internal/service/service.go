package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"eventhub/internal/apperr"
	"eventhub/internal/auth"
	"eventhub/internal/blob"
	"eventhub/internal/docstore"
	"eventhub/internal/guard"
	"eventhub/internal/idgen"
	"eventhub/internal/mailer"
	"eventhub/internal/metrics"
	"eventhub/internal/model"
	"eventhub/internal/payment"
	"eventhub/internal/repo"
	"eventhub/pkg/validator"
)

type Config struct {
	// AppURL is the public front-end address used in emailed links.
	AppURL   string
	OTPTTL   time.Duration
	Currency string
}

// Service runs every workflow. Each one commits in a single store
// transaction; emails go out after commit and never fail the workflow.
type Service struct {
	store    docstore.Store
	ids      *idgen.Allocator
	log      *zerolog.Logger
	cfg      Config
	hasher   auth.PasswordHasher
	mail     mailer.Sender
	payments payment.Gateway
	blobs    blob.Store
	metrics  *metrics.Recorder
	now      func() time.Time
}

type Option func(*Service)

func WithConfig(cfg Config) Option           { return func(s *Service) { s.cfg = cfg } }
func WithHasher(h auth.PasswordHasher) Option { return func(s *Service) { s.hasher = h } }
func WithMailer(m mailer.Sender) Option       { return func(s *Service) { s.mail = m } }
func WithPayments(g payment.Gateway) Option   { return func(s *Service) { s.payments = g } }
func WithBlobStore(b blob.Store) Option       { return func(s *Service) { s.blobs = b } }
func WithMetrics(m *metrics.Recorder) Option  { return func(s *Service) { s.metrics = m } }
func WithClock(now func() time.Time) Option   { return func(s *Service) { s.now = now } }

func NewService(store docstore.Store, log *zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		ids:      idgen.New(log),
		log:      log,
		hasher:   auth.NewBcryptHasher(0),
		mail:     mailer.NewLogSender(log),
		payments: payment.Disabled{},
		blobs:    blob.NewMemory(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.OTPTTL <= 0 {
		s.cfg.OTPTTL = 10 * time.Minute
	}
	if s.cfg.Currency == "" {
		s.cfg.Currency = "usd"
	}
	s.cfg.AppURL = strings.TrimRight(s.cfg.AppURL, "/")
	return s
}

func (s *Service) inTx(ctx context.Context, fn func(r *repo.Set) error) error {
	return s.store.RunInTx(ctx, func(tx docstore.Tx) error {
		return fn(repo.New(tx, s.ids))
	})
}

func (s *Service) inView(ctx context.Context, fn func(r *repo.Set) error) error {
	return s.store.View(ctx, func(tx docstore.Tx) error {
		return fn(repo.New(tx, s.ids))
	})
}

// authorize reloads the caller's account so a token issued before a block or
// delete stops working. The role is taken from the stored account.
func (s *Service) authorize(ctx context.Context, p *guard.Principal) error {
	u, err := s.activeUser(ctx, p.UserID)
	if err != nil {
		return err
	}
	p.Role = u.Role
	return nil
}

// ActivePrincipal resolves a token subject to the caller it may act as.
func (s *Service) ActivePrincipal(ctx context.Context, userID string) (guard.Principal, error) {
	u, err := s.activeUser(ctx, userID)
	if err != nil {
		return guard.Principal{}, err
	}
	return guard.Principal{UserID: u.ID, Role: u.Role}, nil
}

func (s *Service) activeUser(ctx context.Context, userID string) (model.User, error) {
	var u model.User
	err := s.inView(ctx, func(r *repo.Set) error {
		var err error
		u, err = r.Users.FindByID(ctx, userID)
		return err
	})
	switch {
	case apperr.Is(err, apperr.KindNotFound), apperr.Is(err, apperr.KindInvalidID):
		return u, apperr.Unauthenticated("account no longer exists")
	case err != nil:
		return u, err
	case !u.CanSignIn():
		return u, apperr.Unauthenticated("account is disabled")
	}
	return u, nil
}

// track is deferred by every workflow. It folds errors outside the taxonomy
// into ServerError and records the outcome.
func (s *Service) track(op string, start time.Time, errp *error) {
	err := *errp
	outcome := "ok"
	if err != nil {
		var appErr *apperr.Error
		if !errors.As(err, &appErr) {
			err = apperr.Server(err, "internal error")
			*errp = err
		}
		outcome = string(apperr.KindOf(err))
		if apperr.Is(err, apperr.KindServer) {
			s.log.Error().Err(err).Str("op", op).Msg("workflow failed")
		} else {
			s.log.Debug().Err(err).Str("op", op).Msg("workflow rejected")
		}
	}
	s.metrics.Observe(op, outcome, time.Since(start))
}

// notify sends best effort; failures are logged and counted only.
func (s *Service) notify(ctx context.Context, msgs ...mailer.Message) {
	for _, msg := range msgs {
		if msg.To == "" {
			continue
		}
		if err := s.mail.Send(ctx, msg); err != nil {
			s.log.Warn().Err(err).Str("to", msg.To).Str("subject", msg.Subject).Msg("failed to send notification email")
			s.metrics.Email(false)
			continue
		}
		s.metrics.Email(true)
	}
}

func validate(ctx context.Context, in any) error {
	if msgs := validator.Validate(ctx, in); len(msgs) > 0 {
		return apperr.Validation(msgs...)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isNotFound(err error) bool {
	return apperr.Is(err, apperr.KindNotFound)
}
