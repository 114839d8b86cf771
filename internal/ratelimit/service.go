package ratelimit

import (
	"context"
	"strings"

	"github.com/smallbiznis/creditgate/internal/clock"
	"github.com/smallbiznis/creditgate/internal/config"
	obslogger "github.com/smallbiznis/creditgate/internal/observability/logger"
	"github.com/smallbiznis/creditgate/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Backend Backend
	Policy  *config.PolicyHolder
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

// Service applies the current policy to a usage backend.
type Service struct {
	log     *zap.Logger
	backend Backend
	policy  *config.PolicyHolder
	clock   clock.Clock
	metrics *metrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		log:     p.Log.Named("rate.limit"),
		backend: p.Backend,
		policy:  p.Policy,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (s *Service) CheckCredits(ctx context.Context, fingerprint, ip string) (Decision, error) {
	return s.evaluate(ctx, fingerprint, ip, false)
}

func (s *Service) UseCredit(ctx context.Context, fingerprint, ip string) (Decision, error) {
	return s.evaluate(ctx, fingerprint, ip, true)
}

func (s *Service) evaluate(ctx context.Context, fingerprint, ip string, use bool) (Decision, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return Decision{}, ErrMissingFingerprint
	}
	current := s.policy.Get()
	policy := Policy{Window: current.RateLimitWindow, Cap: current.RateLimitCap}
	fpKey, ipKey := FingerprintKey(fingerprint), IPKey(ip)
	now := s.clock.Now()

	var (
		decision Decision
		err      error
	)
	if use {
		decision, err = s.backend.Use(ctx, fpKey, ipKey, now, policy)
	} else {
		decision, err = s.backend.Check(ctx, fpKey, ipKey, now, policy)
	}
	if err != nil {
		obslogger.WithContext(ctx, s.log).Error("rate limit backend failure",
			zap.String("backend", s.backend.Name()),
			zap.Error(err),
		)
		return Decision{}, err
	}

	if !use {
		return decision, nil
	}
	if decision.Allowed {
		s.metrics.RecordRateLimitAllowed(ctx, s.backend.Name())
	} else {
		s.metrics.RecordRateLimitDenied(ctx, s.backend.Name(), string(decision.Reason))
		obslogger.WithContext(ctx, s.log).Info("usage denied",
			zap.String("reason", string(decision.Reason)),
			zap.String("ip_key", ipKey),
		)
	}
	return decision, nil
}
