package context

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	paymentIDKey
	clientIPKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithPaymentID annotates ctx with the payment intent the request operates on.
func WithPaymentID(ctx context.Context, paymentID string) context.Context {
	return context.WithValue(ctx, paymentIDKey, paymentID)
}

func PaymentIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(paymentIDKey).(string)
	return v
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func ClientIPFromContext(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}
