package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/smallbiznis/creditgate/internal/checkout/domain"
	"github.com/smallbiznis/creditgate/internal/clock"
	creditdomain "github.com/smallbiznis/creditgate/internal/credit/domain"
	"github.com/smallbiznis/creditgate/internal/generation/domain"
	"github.com/smallbiznis/creditgate/internal/generation/provider"
	obslogger "github.com/smallbiznis/creditgate/internal/observability/logger"
	"github.com/smallbiznis/creditgate/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// promptSuffix pins color and texture outside the masked region.
const promptSuffix = ", keep original colors and lighting, realistic skin tone, no texture change outside abs, no patterns, no neon colors, smooth blend, natural look, high fidelity"

type Params struct {
	fx.In

	Log        *zap.Logger
	Repo       domain.Repository
	Credits    creditdomain.Service
	Authorizer checkoutdomain.Authorizer
	Providers  *provider.Registry
	Clock      clock.Clock
	GenID      *snowflake.Node
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	repo       domain.Repository
	credits    creditdomain.Service
	authorizer checkoutdomain.Authorizer
	providers  *provider.Registry
	clock      clock.Clock
	genID      *snowflake.Node
	metrics    *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("generation.service"),
		repo:       p.Repo,
		credits:    p.Credits,
		authorizer: p.Authorizer,
		providers:  p.Providers,
		clock:      p.Clock,
		genID:      p.GenID,
		metrics:    p.Metrics,
	}
}

func (s *Service) Generate(ctx context.Context, req domain.GenerateRequest) (domain.GenerateResult, error) {
	if req.Image == "" || req.Mask == "" || strings.TrimSpace(req.Prompt) == "" {
		return domain.GenerateResult{}, fmt.Errorf("%w: missing image/mask/prompt", domain.ErrMissingInput)
	}
	image, err := domain.ValidateImageDataURL(req.Image, "image", domain.DefaultMaxImageBytes)
	if err != nil {
		return domain.GenerateResult{}, err
	}
	mask, err := domain.ValidateImageDataURL(req.Mask, "mask", domain.DefaultMaxImageBytes)
	if err != nil {
		return domain.GenerateResult{}, err
	}
	prov, err := s.providers.Resolve(req.Provider)
	if err != nil {
		return domain.GenerateResult{}, err
	}

	log := obslogger.WithContext(ctx, s.log)
	var remaining *int
	switch {
	case s.authorizer.IsBypass(req.PaymentID):
		log.Debug("generation via dev bypass")
	case strings.TrimSpace(req.PaymentID) == "" && s.authorizer.BypassEnabled():
		log.Debug("generation without payment in development")
	default:
		paymentID, err := creditdomain.RequirePaymentID(req.PaymentID)
		if err != nil {
			return domain.GenerateResult{}, err
		}
		reservation, err := s.credits.ReserveCredit(ctx, paymentID)
		if err != nil {
			return domain.GenerateResult{}, err
		}
		remaining = &reservation.RemainingCredits
		log = obslogger.WithPayment(log, paymentID)
	}

	// A reserved credit is spent even when the provider fails below.
	result, err := prov.Inpaint(ctx, domain.InpaintRequest{
		Image:  image,
		Mask:   mask,
		Prompt: strings.TrimSpace(req.Prompt) + promptSuffix,
		Params: req.Params.Normalize(),
	})
	if err != nil {
		s.metrics.RecordProviderCall(ctx, prov.Name(), "error")
		log.Error("provider call failed", zap.String("provider", prov.Name()), zap.Error(err))
		return domain.GenerateResult{}, fmt.Errorf("%w: %w", domain.ErrProviderFailure, err)
	}
	if result.ImageURL == "" {
		s.metrics.RecordProviderCall(ctx, prov.Name(), "empty")
		return domain.GenerateResult{}, domain.ErrEmptyResult
	}
	s.metrics.RecordProviderCall(ctx, prov.Name(), "ok")
	s.recordProviderUsage(ctx, prov.Name())

	log.Info("generation completed",
		zap.String("provider", prov.Name()),
		zap.Int("image_bytes", image.Size()),
		zap.Int("mask_bytes", mask.Size()),
	)

	return domain.GenerateResult{
		Image:            result.ImageURL,
		Provider:         prov.Name(),
		Model:            result.Model,
		RemainingCredits: remaining,
	}, nil
}

// recordProviderUsage never fails the request.
func (s *Service) recordProviderUsage(ctx context.Context, name string) {
	now := s.clock.Now()
	if err := s.repo.IncrementProviderUsage(ctx, name, domain.UsagePeriod(now), 1, now); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("failed to record provider usage",
			zap.String("provider", name),
			zap.Error(err),
		)
	}
}

// Save persists a finished generation. The credit was reserved by Generate,
// so nothing is deducted here.
func (s *Service) Save(ctx context.Context, req domain.SaveRequest) (*domain.Generation, error) {
	if strings.TrimSpace(req.OutputImageURL) == "" {
		return nil, domain.ErrMissingOutput
	}

	auth, err := s.authorizer.Authorize(ctx, req.PaymentID, req.PaymentToken)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	id := s.genID.Generate().String()
	providerName := firstNonEmpty(req.Provider, req.ModelUsed)

	params := datatypes.JSONMap{
		"prompt":   req.Prompt,
		"provider": providerName,
		"absType":  req.AbsType,
	}
	if req.Strength != nil {
		params["strength"] = *req.Strength
	}
	if req.Seed != nil {
		params["seed"] = *req.Seed
	}
	if req.Intensity != nil {
		params["intensity"] = *req.Intensity
	}

	generation := &domain.Generation{
		ID:             id,
		UserID:         checkoutdomain.OwnerID(auth),
		AbsType:        req.AbsType,
		Gender:         optional(req.Gender),
		InputImageURL:  optional(req.InputImageURL),
		MaskImageURL:   optional(req.MaskImageURL),
		OutputImageURL: req.OutputImageURL,
		ModelUsed:      req.ModelUsed,
		PromptUsed:     req.Prompt,
		Strength:       req.Strength,
		Seed:           req.Seed,
		PaymentID:      optional(checkoutdomain.PaymentID(auth)),
		Params:         params,
		CreatedAt:      now,
	}
	if err := s.repo.CreateGeneration(ctx, generation); err != nil {
		return nil, err
	}

	sample := &domain.TrainingSample{
		ID:             id,
		InputImageURL:  generation.InputImageURL,
		MaskURL:        generation.MaskImageURL,
		OutputImageURL: generation.OutputImageURL,
		Prompt:         generation.PromptUsed,
		Strength:       generation.Strength,
		Seed:           generation.Seed,
		Provider:       providerName,
		AbsType:        generation.AbsType,
		CreatedAt:      now,
	}
	if err := s.repo.CreateTrainingSample(ctx, sample); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("failed to save training sample",
			zap.String("generation_id", id),
			zap.Error(err),
		)
	}

	return generation, nil
}

func (s *Service) SubmitFeedback(ctx context.Context, id string, feedback domain.Feedback) error {
	if strings.TrimSpace(id) == "" {
		return domain.ErrMissingGenerationID
	}
	if !feedback.Valid() {
		return domain.ErrInvalidFeedback
	}
	return s.repo.SetFeedback(ctx, id, feedback, s.clock.Now())
}

func (s *Service) Rate(ctx context.Context, id string, rating int, note string) (*domain.Generation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrMissingGenerationID
	}
	if rating != -1 && rating != 1 {
		return nil, domain.ErrInvalidRating
	}
	generation, err := s.repo.SetRating(ctx, id, rating, optional(note), s.clock.Now())
	if err != nil {
		if !errors.Is(err, domain.ErrGenerationNotFound) {
			obslogger.WithContext(ctx, s.log).Error("rate generation failed", zap.String("generation_id", id), zap.Error(err))
		}
		return nil, err
	}
	return generation, nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
