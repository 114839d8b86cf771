package domain

import "context"

type GenerateRequest struct {
	Image     string
	Mask      string
	Prompt    string
	PaymentID string
	Provider  string
	Params    InpaintParams
}

type GenerateResult struct {
	Image            string `json:"image"`
	Provider         string `json:"provider"`
	Model            string `json:"model,omitempty"`
	RemainingCredits *int   `json:"remainingCredits,omitempty"`
}

type SaveRequest struct {
	PaymentID      string
	PaymentToken   string
	AbsType        string
	Gender         string
	InputImageURL  string
	MaskImageURL   string
	OutputImageURL string
	ModelUsed      string
	Provider       string
	Prompt         string
	Intensity      *float64
	Strength       *float64
	Seed           *int64
}

type Service interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
	Save(ctx context.Context, req SaveRequest) (*Generation, error)
	SubmitFeedback(ctx context.Context, id string, feedback Feedback) error
	Rate(ctx context.Context, id string, rating int, note string) (*Generation, error)
}
