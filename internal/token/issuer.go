package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qrattend/internal/clock"
	"qrattend/internal/logger"
	"qrattend/internal/metrics"
	"qrattend/internal/queue"
)

const maxIssueAttempts = 3

// Creator is the write side of the token store used by Issuer.
type Creator interface {
	Create(ctx context.Context, t Token) (Token, error)
}

// Publisher receives lifecycle events; a nil Publisher disables them.
type Publisher = queue.Publisher

// IssuedEvent is the payload of a token.issued message.
type IssuedEvent struct {
	TokenID     string    `json:"token_id"`
	ValuePrefix string    `json:"value_prefix"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Issuer mints tokens for teachers.
type Issuer struct {
	store      Creator
	clock      clock.Clock
	defaultTTL time.Duration
	events     Publisher
	newValue   func() (string, error)

	publishTimeout time.Duration
}

// NewIssuer creates an issuer; defaultTTL <= 0 falls back to DefaultTTL.
func NewIssuer(store Creator, clk clock.Clock, defaultTTL time.Duration, events Publisher) *Issuer {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Issuer{
		store:      store,
		clock:      clk,
		defaultTTL: defaultTTL,
		events:     events,
		newValue:   NewValue,

		publishTimeout: queue.DefaultPublishTimeout,
	}
}

// SetPublishTimeout bounds the wait on the event backend after a token is stored.
func (i *Issuer) SetPublishTimeout(d time.Duration) {
	if d > 0 {
		i.publishTimeout = d
	}
}

// Issue persists a new active token valid for ttl (the default when ttl <= 0).
func (i *Issuer) Issue(ctx context.Context, ttl time.Duration) (Token, error) {
	if ttl <= 0 {
		ttl = i.defaultTTL
	}
	// microsecond precision survives a round trip through Postgres
	created := i.clock.Now().Truncate(time.Microsecond)

	var lastErr error
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		value, err := i.newValue()
		if err != nil {
			return Token{}, err
		}
		t, err := i.store.Create(ctx, Token{
			Value:     value,
			CreatedAt: created,
			ExpiresAt: created.Add(ttl),
			Status:    StatusActive,
		})
		if errors.Is(err, ErrDuplicateToken) {
			logger.Log.WithField("attempt", attempt+1).Warn("token value collision, regenerating")
			lastErr = err
			continue
		}
		if err != nil {
			metrics.StorageErrors.WithLabelValues("create_token").Inc()
			return Token{}, err
		}

		metrics.TokensIssued.Inc()
		i.publish(ctx, t)
		return t, nil
	}
	return Token{}, fmt.Errorf("issue token after %d attempts: %w", maxIssueAttempts, lastErr)
}

func (i *Issuer) publish(ctx context.Context, t Token) {
	if i.events == nil {
		return
	}
	msg, err := queue.NewMessage(queue.TypeTokenIssued, t.CreatedAt, IssuedEvent{
		TokenID:     t.ID,
		ValuePrefix: logger.TokenPrefix(t.Value),
		CreatedAt:   t.CreatedAt,
		ExpiresAt:   t.ExpiresAt,
	})
	if err == nil {
		err = queue.PublishDetached(ctx, i.events, msg, i.publishTimeout)
	}
	if err != nil {
		logger.Log.WithError(err).WithField("token_id", t.ID).Warn("publish token.issued failed")
	}
}
