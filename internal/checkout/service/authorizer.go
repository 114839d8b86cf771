package service

import (
	"context"
	"strings"

	checkoutdomain "github.com/smallbiznis/creditgate/internal/checkout/domain"
	"github.com/smallbiznis/creditgate/internal/clock"
	"github.com/smallbiznis/creditgate/internal/config"
	obslogger "github.com/smallbiznis/creditgate/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/creditgate/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type AuthorizerParams struct {
	fx.In

	Log      *zap.Logger
	Config   config.Config
	Clock    clock.Clock
	Payments paymentdomain.Repository
}

type Authorizer struct {
	log           *zap.Logger
	clock         clock.Clock
	payments      paymentdomain.Repository
	bypassEnabled bool
}

func NewAuthorizer(p AuthorizerParams) checkoutdomain.Authorizer {
	return &Authorizer{
		log:           p.Log.Named("checkout.authorizer"),
		clock:         p.Clock,
		payments:      p.Payments,
		bypassEnabled: p.Config.DevBypassEnabled,
	}
}

func (a *Authorizer) BypassEnabled() bool {
	return a.bypassEnabled
}

func (a *Authorizer) IsBypass(paymentID string) bool {
	return a.bypassEnabled && strings.TrimSpace(paymentID) == checkoutdomain.DevBypassPaymentID
}

// Authorize checks, in order: token presence, record existence, token
// material, hash match, expiry, then status.
func (a *Authorizer) Authorize(ctx context.Context, paymentID, rawToken string) (checkoutdomain.Authorization, error) {
	if a.IsBypass(paymentID) {
		return checkoutdomain.Bypassed{}, nil
	}

	id := strings.TrimSpace(paymentID)
	if id == "" {
		return nil, checkoutdomain.ErrMissingPaymentID
	}
	if rawToken == "" {
		return nil, checkoutdomain.ErrMissingToken
	}

	record, err := a.payments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, checkoutdomain.ErrPaymentNotFound
	}

	log := obslogger.WithPayment(obslogger.WithContext(ctx, a.log), id)
	if !record.HasAccessToken() {
		log.Warn("payment has no access token")
		return nil, checkoutdomain.ErrUnauthorized
	}
	if err := checkoutdomain.VerifyToken(*record.AccessTokenHash, rawToken); err != nil {
		log.Warn("payment token mismatch")
		return nil, err
	}
	if err := checkoutdomain.CheckExpiry(a.clock.Now(), *record.AccessTokenExpiresAt); err != nil {
		log.Info("payment token expired")
		return nil, err
	}
	if record.Status != paymentdomain.StatusSucceeded {
		return nil, checkoutdomain.ErrNotSucceeded
	}
	return checkoutdomain.TokenAuthorized{Payment: record}, nil
}
