package service

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/smallbiznis/creditgate/internal/checkout/domain"
	"github.com/smallbiznis/creditgate/internal/clock"
	creditdomain "github.com/smallbiznis/creditgate/internal/credit/domain"
	"github.com/smallbiznis/creditgate/internal/generation/domain"
	"github.com/smallbiznis/creditgate/internal/generation/provider"
	"github.com/smallbiznis/creditgate/internal/generation/repository"
	paymentdomain "github.com/smallbiznis/creditgate/internal/payment/domain"
	"github.com/smallbiznis/creditgate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type creditsMock struct {
	mock.Mock
}

func (m *creditsMock) ReserveCredit(ctx context.Context, paymentID string) (creditdomain.Reservation, error) {
	args := m.Called(ctx, paymentID)
	res, _ := args.Get(0).(creditdomain.Reservation)
	return res, args.Error(1)
}

func (m *creditsMock) Check(ctx context.Context, paymentID string) (creditdomain.Evaluation, error) {
	args := m.Called(ctx, paymentID)
	res, _ := args.Get(0).(creditdomain.Evaluation)
	return res, args.Error(1)
}

type authorizerMock struct {
	mock.Mock
	bypass bool
}

func (m *authorizerMock) Authorize(ctx context.Context, paymentID, rawToken string) (checkoutdomain.Authorization, error) {
	args := m.Called(ctx, paymentID, rawToken)
	auth, _ := args.Get(0).(checkoutdomain.Authorization)
	return auth, args.Error(1)
}

func (m *authorizerMock) BypassEnabled() bool { return m.bypass }

func (m *authorizerMock) IsBypass(paymentID string) bool {
	return m.bypass && paymentID == checkoutdomain.DevBypassPaymentID
}

type failingProvider struct{}

func (failingProvider) Name() string { return "broken" }

func (failingProvider) Inpaint(context.Context, domain.InpaintRequest) (domain.InpaintResult, error) {
	return domain.InpaintResult{}, errors.New("upstream 500")
}

type fixture struct {
	svc     domain.Service
	repo    domain.Repository
	credits *creditsMock
	auth    *authorizerMock
	clock   *clock.FakeClock
}

func newFixture(t *testing.T, bypass bool) fixture {
	t.Helper()
	conn := testutil.NewSQLiteDB(t, &domain.Generation{}, &domain.TrainingSample{}, &domain.ProviderUsage{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	f := fixture{
		repo:    repository.Provide(conn),
		credits: &creditsMock{},
		auth:    &authorizerMock{bypass: bypass},
		clock:   clock.NewFakeClock(time.Date(2026, 7, 15, 8, 0, 0, 0, time.UTC)),
	}
	f.svc = New(Params{
		Log:        zap.NewNop(),
		Repo:       f.repo,
		Credits:    f.credits,
		Authorizer: f.auth,
		Providers:  provider.NewRegistry(provider.NewDemo("/result.png"), failingProvider{}),
		Clock:      f.clock,
		GenID:      node,
	})
	return f
}

func pngDataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG fake"))
}

func validRequest(paymentID string) domain.GenerateRequest {
	return domain.GenerateRequest{
		Image:     pngDataURL(),
		Mask:      pngDataURL(),
		Prompt:    "defined abs",
		PaymentID: paymentID,
	}
}

func TestGenerateReservesCredit(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.credits.On("ReserveCredit", ctx, "pi_1").Return(creditdomain.Reservation{PaymentID: "pi_1", RemainingCredits: 4}, nil).Once()

	res, err := f.svc.Generate(ctx, validRequest("pi_1"))
	require.NoError(t, err)
	assert.Equal(t, "/result.png", res.Image)
	assert.Equal(t, "demo", res.Provider)
	require.NotNil(t, res.RemainingCredits)
	assert.Equal(t, 4, *res.RemainingCredits)
	f.credits.AssertExpectations(t)

	usage, err := f.repo.GetProviderUsage(ctx, "demo", "2026-07")
	require.NoError(t, err)
	require.NotNil(t, usage)
	assert.Equal(t, int64(1), usage.UsageCount)
}

func TestGenerateCreditDenied(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	denial := creditdomain.NewCreditError(creditdomain.ReasonNoCredits, 0, paymentdomain.ErrConditionFailed)
	f.credits.On("ReserveCredit", ctx, "pi_1").Return(creditdomain.Reservation{}, denial).Once()

	_, err := f.svc.Generate(ctx, validRequest("pi_1"))
	assert.ErrorIs(t, err, creditdomain.ErrNoCredits)

	usage, err := f.repo.GetProviderUsage(ctx, "demo", "2026-07")
	require.NoError(t, err)
	assert.Nil(t, usage, "provider is not called after a denial")
}

func TestGenerateValidationHappensBeforeReservation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	req := validRequest("pi_1")
	req.Prompt = " "
	_, err := f.svc.Generate(ctx, req)
	assert.ErrorIs(t, err, domain.ErrMissingInput)

	req = validRequest("pi_1")
	req.Mask = "data:image/gif;base64,R0lG"
	_, err = f.svc.Generate(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidImage)

	req = validRequest("pi_1")
	req.Provider = "nope"
	_, err = f.svc.Generate(ctx, req)
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	_, err = f.svc.Generate(ctx, validRequest(""))
	assert.ErrorIs(t, err, creditdomain.ErrMissingPaymentID)

	f.credits.AssertNotCalled(t, "ReserveCredit", mock.Anything, mock.Anything)
}

func TestGenerateBypass(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	res, err := f.svc.Generate(ctx, validRequest(checkoutdomain.DevBypassPaymentID))
	require.NoError(t, err)
	assert.Nil(t, res.RemainingCredits)

	_, err = f.svc.Generate(ctx, validRequest(""))
	require.NoError(t, err)

	f.credits.AssertNotCalled(t, "ReserveCredit", mock.Anything, mock.Anything)
}

func TestGenerateProviderFailure(t *testing.T) {
	f := newFixture(t, true)
	req := validRequest(checkoutdomain.DevBypassPaymentID)
	req.Provider = "broken"

	_, err := f.svc.Generate(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrProviderFailure)
}

func TestSaveUsesPaymentOwner(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	record := &paymentdomain.PaymentRecord{ID: "pi_1", UserID: "a@example.com", Status: paymentdomain.StatusSucceeded}
	f.auth.On("Authorize", ctx, "pi_1", "tok").Return(checkoutdomain.TokenAuthorized{Payment: record}, nil).Once()

	strength := 0.4
	gen, err := f.svc.Save(ctx, domain.SaveRequest{
		PaymentID:      "pi_1",
		PaymentToken:   "tok",
		AbsType:        "natural_fit",
		OutputImageURL: "https://cdn/out.png",
		ModelUsed:      "demo",
		Prompt:         "defined abs",
		Strength:       &strength,
	})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", gen.UserID)
	require.NotNil(t, gen.PaymentID)
	assert.Equal(t, "pi_1", *gen.PaymentID)
	assert.Equal(t, 0, gen.UserRating)
	assert.Nil(t, gen.Feedback)
	assert.Nil(t, gen.Gender)
	assert.Equal(t, "demo", gen.Params["provider"])
	assert.Equal(t, 0.4, gen.Params["strength"])

	f.credits.AssertNotCalled(t, "ReserveCredit", mock.Anything, mock.Anything)
	f.auth.AssertExpectations(t)
}

func TestSaveBypassHasNoPayment(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.auth.On("Authorize", ctx, "dev_bypass", "").Return(checkoutdomain.Bypassed{}, nil).Once()

	gen, err := f.svc.Save(ctx, domain.SaveRequest{PaymentID: "dev_bypass", OutputImageURL: "/result.png"})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.AnonymousUserID, gen.UserID)
	assert.Nil(t, gen.PaymentID)
}

func TestSaveRejectsUnauthorized(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.auth.On("Authorize", ctx, "pi_1", "bad").Return(nil, checkoutdomain.ErrUnauthorized).Once()

	_, err := f.svc.Save(ctx, domain.SaveRequest{PaymentID: "pi_1", PaymentToken: "bad", OutputImageURL: "/x.png"})
	assert.ErrorIs(t, err, checkoutdomain.ErrUnauthorized)

	_, err = f.svc.Save(ctx, domain.SaveRequest{PaymentID: "pi_1"})
	assert.ErrorIs(t, err, domain.ErrMissingOutput)
}

func TestFeedbackAndRate(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.auth.On("Authorize", ctx, "dev_bypass", "").Return(checkoutdomain.Bypassed{}, nil).Once()
	gen, err := f.svc.Save(ctx, domain.SaveRequest{PaymentID: "dev_bypass", OutputImageURL: "/result.png"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.SubmitFeedback(ctx, gen.ID, "meh"), domain.ErrInvalidFeedback)
	assert.ErrorIs(t, f.svc.SubmitFeedback(ctx, "", domain.FeedbackLike), domain.ErrMissingGenerationID)
	require.NoError(t, f.svc.SubmitFeedback(ctx, gen.ID, domain.FeedbackDislike))

	_, err = f.svc.Rate(ctx, gen.ID, 0, "")
	assert.ErrorIs(t, err, domain.ErrInvalidRating)

	rated, err := f.svc.Rate(ctx, gen.ID, 1, "nice")
	require.NoError(t, err)
	assert.Equal(t, 1, rated.UserRating)
	require.NotNil(t, rated.Feedback)
	assert.Equal(t, domain.FeedbackDislike, *rated.Feedback)
	require.NotNil(t, rated.RatedAt)
	assert.True(t, rated.RatedAt.Equal(f.clock.Now()))

	_, err = f.svc.Rate(ctx, "missing", -1, "")
	assert.ErrorIs(t, err, domain.ErrGenerationNotFound)
}
