package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v5"
	checkoutdomain "github.com/smallbiznis/creditgate/internal/checkout/domain"
	"github.com/smallbiznis/creditgate/internal/clock"
	"github.com/smallbiznis/creditgate/internal/config"
	obslogger "github.com/smallbiznis/creditgate/internal/observability/logger"
	"github.com/smallbiznis/creditgate/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/creditgate/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	defaultAbsType = "natural_fit"
	defaultGender  = "unspecified"

	statusRetryTries = 4
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Config    config.Config
	Policy    *config.PolicyHolder
	Clock     clock.Clock
	GenID     *snowflake.Node
	Payments  paymentdomain.Repository
	Events    paymentdomain.EventRepository
	Users     checkoutdomain.UserRepository
	Processor checkoutdomain.Processor      `optional:"true"`
	Webhooks  checkoutdomain.WebhookAdapter `optional:"true"`
	Metrics   *metrics.Metrics              `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	cfg       config.Config
	policy    *config.PolicyHolder
	clock     clock.Clock
	genID     *snowflake.Node
	payments  paymentdomain.Repository
	events    paymentdomain.EventRepository
	users     checkoutdomain.UserRepository
	processor checkoutdomain.Processor
	webhooks  checkoutdomain.WebhookAdapter
	metrics   *metrics.Metrics

	retryInterval time.Duration
}

func New(p Params) checkoutdomain.Service {
	return &Service{
		log:           p.Log.Named("checkout.service"),
		cfg:           p.Config,
		policy:        p.Policy,
		clock:         p.Clock,
		genID:         p.GenID,
		payments:      p.Payments,
		events:        p.Events,
		users:         p.Users,
		processor:     p.Processor,
		webhooks:      p.Webhooks,
		metrics:       p.Metrics,
		retryInterval: 50 * time.Millisecond,
	}
}

func (s *Service) CreatePayment(ctx context.Context, req checkoutdomain.CreatePaymentRequest) (checkoutdomain.CreatePaymentResponse, error) {
	if s.processor == nil {
		return checkoutdomain.CreatePaymentResponse{}, checkoutdomain.ErrProcessorDisabled
	}
	policy := s.policy.Get()
	now := s.clock.Now()
	log := obslogger.WithContext(ctx, s.log)

	email := strings.TrimSpace(req.UserEmail)
	userID := paymentdomain.AnonymousUserID
	if email != "" {
		id, err := s.users.EnsureUser(ctx, email, now)
		if err != nil {
			return checkoutdomain.CreatePaymentResponse{}, paymentdomain.StoreUnavailable(err)
		}
		userID = id
	}

	absType := firstNonEmpty(req.AbsType, defaultAbsType)
	gender := firstNonEmpty(req.Gender, defaultGender)

	intent, err := s.processor.CreateIntent(ctx, checkoutdomain.CreateIntentRequest{
		AmountCents: policy.PriceCents,
		Currency:    policy.Currency,
		Metadata: map[string]string{
			"user_id":  userID,
			"abs_type": absType,
			"gender":   gender,
		},
	})
	if err != nil {
		log.Error("create payment intent failed", zap.Error(err))
		return checkoutdomain.CreatePaymentResponse{}, fmt.Errorf("%w: %w", checkoutdomain.ErrProcessorFailure, err)
	}

	token, err := checkoutdomain.IssueToken(now, policy.TokenTTL)
	if err != nil {
		return checkoutdomain.CreatePaymentResponse{}, err
	}

	zero := 0
	record := &paymentdomain.PaymentRecord{
		ID:                   intent.ID,
		UserID:               userID,
		Amount:               policy.PriceCents,
		Currency:             policy.Currency,
		Status:               checkoutdomain.MapProcessorStatus(intent.Status),
		CreditsTotal:         policy.InitialCredits(s.cfg.DemoMode),
		CreditsUsed:          &zero,
		AccessTokenHash:      &token.Hash,
		AccessTokenExpiresAt: &token.ExpiresAt,
		Metadata: datatypes.JSONMap{
			"abs_type": absType,
			"gender":   gender,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if email != "" {
		record.UserEmail = &email
	}
	if err := s.payments.Put(ctx, record); err != nil {
		log.Error("persist payment record failed", zap.String("payment_id", intent.ID), zap.Error(err))
		return checkoutdomain.CreatePaymentResponse{}, err
	}

	obslogger.WithPayment(log, intent.ID).Info("payment created",
		zap.String("user_id", userID),
		zap.Int("credits_total", record.CreditsTotal),
	)

	return checkoutdomain.CreatePaymentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		PaymentToken:    token.Raw,
	}, nil
}

func (s *Service) Confirm(ctx context.Context, paymentIntentID string) (checkoutdomain.ConfirmResponse, error) {
	id := strings.TrimSpace(paymentIntentID)
	if id == "" {
		return checkoutdomain.ConfirmResponse{}, checkoutdomain.ErrMissingIntentID
	}
	if s.processor == nil {
		return checkoutdomain.ConfirmResponse{}, checkoutdomain.ErrProcessorDisabled
	}

	intent, err := s.processor.RetrieveIntent(ctx, id)
	if err != nil {
		return checkoutdomain.ConfirmResponse{}, fmt.Errorf("%w: %w", checkoutdomain.ErrProcessorFailure, err)
	}

	status := checkoutdomain.MapProcessorStatus(intent.Status)
	record, err := s.setStatus(ctx, id, status)
	if err != nil {
		return checkoutdomain.ConfirmResponse{}, err
	}

	s.metrics.RecordPaymentEvent(ctx, s.processor.Name(), "confirm_"+string(record.Status))
	obslogger.WithPayment(obslogger.WithContext(ctx, s.log), id).Info("payment confirmed",
		zap.String("processor_status", intent.Status),
		zap.String("status", string(record.Status)),
	)

	return checkoutdomain.ConfirmResponse{
		PaymentIntentID:  id,
		Status:           record.Status,
		RemainingCredits: record.Remaining(),
	}, nil
}

func (s *Service) HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	if s.webhooks == nil {
		return checkoutdomain.ErrProcessorDisabled
	}
	log := obslogger.WithContext(ctx, s.log)

	if err := s.webhooks.Verify(ctx, payload, headers); err != nil {
		log.Warn("webhook signature rejected", zap.Error(err))
		return err
	}

	event, err := s.webhooks.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			log.Debug("webhook event ignored")
			return nil
		}
		return err
	}

	now := s.clock.Now()
	stored := &paymentdomain.EventRecord{
		ID:              s.genID.Generate().Int64(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		PaymentID:       event.ProviderPaymentID,
		Payload:         datatypes.JSON(event.RawPayload),
		ReceivedAt:      now,
	}
	inserted, err := s.events.InsertEvent(ctx, stored)
	if err != nil {
		return paymentdomain.StoreUnavailable(err)
	}
	if !inserted {
		// A redelivery is only a duplicate once the first delivery was
		// applied. Otherwise the stored event is applied again.
		stored, err = s.events.FindEvent(ctx, event.Provider, event.ProviderEventID)
		if err != nil {
			return paymentdomain.StoreUnavailable(err)
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			log.Info("duplicate webhook event", zap.String("provider_event_id", event.ProviderEventID))
			return nil
		}
		log.Info("reprocessing unapplied webhook event", zap.String("provider_event_id", event.ProviderEventID))
	}

	status := paymentdomain.PaymentEvent{Type: stored.EventType}.Status()
	_, err = s.setStatus(ctx, stored.PaymentID, status)
	switch {
	case errors.Is(err, checkoutdomain.ErrPaymentNotFound):
		// Intents created outside checkout have no record to update.
		log.Warn("webhook for unknown payment", zap.String("payment_id", stored.PaymentID))
	case err != nil:
		return err
	}

	if err := s.events.MarkProcessed(ctx, stored.ID, s.clock.Now()); err != nil {
		log.Warn("mark webhook event processed failed", zap.Int64("event_id", stored.ID), zap.Error(err))
	}
	s.metrics.RecordPaymentEvent(ctx, stored.Provider, stored.EventType)
	obslogger.WithPayment(log, stored.PaymentID).Info("webhook applied",
		zap.String("event_type", stored.EventType),
	)
	return nil
}

// setStatus retries transient store errors. Missing records are terminal.
func (s *Service) setStatus(ctx context.Context, id string, status paymentdomain.Status) (*paymentdomain.PaymentRecord, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retryInterval

	record, err := backoff.Retry(ctx, func() (*paymentdomain.PaymentRecord, error) {
		rec, err := s.payments.SetStatus(ctx, id, status, paymentdomain.DefaultCreditsTotal)
		if err == nil || errors.Is(err, paymentdomain.ErrStoreUnavailable) {
			return rec, err
		}
		return nil, backoff.Permanent(err)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(statusRetryTries))
	if err != nil {
		if errors.Is(err, paymentdomain.ErrPaymentNotFound) {
			return nil, checkoutdomain.ErrPaymentNotFound
		}
		return nil, err
	}
	return record, nil
}

func firstNonEmpty(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
