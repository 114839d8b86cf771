package service

import (
	"context"
	"errors"

	creditdomain "github.com/smallbiznis/creditgate/internal/credit/domain"
	obslogger "github.com/smallbiznis/creditgate/internal/observability/logger"
	"github.com/smallbiznis/creditgate/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/creditgate/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Payments paymentdomain.Repository
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	payments paymentdomain.Repository
	metrics  *metrics.Metrics
}

func New(p Params) creditdomain.Service {
	return &Service{
		log:      p.Log.Named("credit.ledger"),
		payments: p.Payments,
		metrics:  p.Metrics,
	}
}

func (s *Service) ReserveCredit(ctx context.Context, paymentID string) (creditdomain.Reservation, error) {
	id, err := creditdomain.RequirePaymentID(paymentID)
	if err != nil {
		return creditdomain.Reservation{}, err
	}

	record, err := s.payments.ConditionalIncrement(ctx, id, paymentdomain.FieldCreditsUsed, paymentdomain.ReserveGuard())
	switch {
	case err == nil:
		s.metrics.RecordCreditReservation(ctx, "reserved")
		return creditdomain.Reservation{
			PaymentID:        id,
			RemainingCredits: creditdomain.RemainingCredits(record),
		}, nil
	case errors.Is(err, paymentdomain.ErrConditionFailed):
		eval := s.explainDenial(ctx, id)
		s.metrics.RecordCreditReservation(ctx, string(eval.Reason))
		return creditdomain.Reservation{}, creditdomain.NewCreditError(eval.Reason, eval.RemainingCredits, err)
	case errors.Is(err, paymentdomain.ErrStoreUnavailable):
		s.metrics.RecordCreditReservation(ctx, string(creditdomain.ReasonStoreUnavailable))
		obslogger.WithContext(ctx, s.log).Warn("credit reservation store failure",
			zap.String("payment_id", id),
			zap.Error(err),
		)
		return creditdomain.Reservation{}, creditdomain.NewCreditError(creditdomain.ReasonStoreUnavailable, 0, err)
	default:
		return creditdomain.Reservation{}, err
	}
}

// explainDenial labels a failed guard. The read happens after the write has
// already been refused, so it only picks the message.
func (s *Service) explainDenial(ctx context.Context, id string) creditdomain.Evaluation {
	record, err := s.payments.Get(ctx, id)
	if err != nil {
		obslogger.WithContext(ctx, s.log).Warn("unable to classify credit denial",
			zap.String("payment_id", id),
			zap.Error(err),
		)
		return creditdomain.Evaluation{Reason: creditdomain.ReasonCreditsUnavailable}
	}
	eval := creditdomain.EnsurePaymentHasCredits(record)
	if eval.OK {
		// Status or balance changed between the refused write and this read.
		eval = creditdomain.Evaluation{Reason: creditdomain.ReasonCreditsUnavailable, RemainingCredits: eval.RemainingCredits}
	}
	return eval
}

func (s *Service) Check(ctx context.Context, paymentID string) (creditdomain.Evaluation, error) {
	id, err := creditdomain.RequirePaymentID(paymentID)
	if err != nil {
		return creditdomain.Evaluation{}, err
	}

	record, err := s.payments.Get(ctx, id)
	if err != nil {
		return creditdomain.Evaluation{}, creditdomain.NewCreditError(creditdomain.ReasonStoreUnavailable, 0, err)
	}
	return creditdomain.EnsurePaymentHasCredits(record), nil
}
