package stripe

import (
	"context"
	"strings"

	checkoutdomain "github.com/smallbiznis/creditgate/internal/checkout/domain"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const providerName = "stripe"

// Processor creates and reads payment intents through the Stripe API.
type Processor struct {
	api *client.API
}

func NewProcessor(secretKey string, backends *stripego.Backends) *Processor {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &Processor{api: api}
}

func (p *Processor) Name() string {
	return providerName
}

func (p *Processor) CreateIntent(ctx context.Context, req checkoutdomain.CreateIntentRequest) (checkoutdomain.Intent, error) {
	params := &stripego.PaymentIntentParams{
		Amount:             stripego.Int64(req.AmountCents),
		Currency:           stripego.String(strings.ToLower(req.Currency)),
		PaymentMethodTypes: stripego.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}

	intent, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return checkoutdomain.Intent{}, err
	}
	return toIntent(intent), nil
}

func (p *Processor) RetrieveIntent(ctx context.Context, id string) (checkoutdomain.Intent, error) {
	params := &stripego.PaymentIntentParams{}
	params.Context = ctx

	intent, err := p.api.PaymentIntents.Get(id, params)
	if err != nil {
		return checkoutdomain.Intent{}, err
	}
	return toIntent(intent), nil
}

func toIntent(intent *stripego.PaymentIntent) checkoutdomain.Intent {
	return checkoutdomain.Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
	}
}
