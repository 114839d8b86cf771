package domain

import "context"

const (
	DefaultStrength       = 0.35
	MinStrength           = 0.1
	MaxStrength           = 0.55
	DefaultSteps          = 26
	DefaultGuidanceScale  = 5.8
	DefaultDimension      = 1024
	DefaultMaskBlur       = 10
	DefaultMaskExpand     = 2
	DefaultNegativePrompt = "plastic skin, CGI, cartoon, harsh contrast, unnatural highlights, artifacts, low quality, blurry"
)

// InpaintParams are the tunables forwarded to the provider.
type InpaintParams struct {
	Strength       float64 `json:"strength"`
	NegativePrompt string  `json:"negative_prompt"`
	Steps          int     `json:"num_inference_steps"`
	GuidanceScale  float64 `json:"guidance_scale"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	MaskBlur       int     `json:"mask_blur"`
	MaskExpand     int     `json:"mask_expand"`
	Seed           *int64  `json:"seed,omitempty"`
}

// Normalize fills defaults and clamps strength into the accepted range.
func (p InpaintParams) Normalize() InpaintParams {
	if p.Strength == 0 {
		p.Strength = DefaultStrength
	}
	if p.Strength < MinStrength {
		p.Strength = MinStrength
	}
	if p.Strength > MaxStrength {
		p.Strength = MaxStrength
	}
	if p.NegativePrompt == "" {
		p.NegativePrompt = DefaultNegativePrompt
	}
	if p.Steps <= 0 {
		p.Steps = DefaultSteps
	}
	if p.GuidanceScale <= 0 {
		p.GuidanceScale = DefaultGuidanceScale
	}
	if p.Width <= 0 {
		p.Width = DefaultDimension
	}
	if p.Height <= 0 {
		p.Height = DefaultDimension
	}
	if p.MaskBlur <= 0 {
		p.MaskBlur = DefaultMaskBlur
	}
	if p.MaskExpand <= 0 {
		p.MaskExpand = DefaultMaskExpand
	}
	return p
}

type InpaintRequest struct {
	Image  ValidatedImage
	Mask   ValidatedImage
	Prompt string
	Params InpaintParams
}

type InpaintResult struct {
	// ImageURL is an http(s) URL or a data URL.
	ImageURL string
	Model    string
}

type Provider interface {
	Name() string
	Inpaint(ctx context.Context, req InpaintRequest) (InpaintResult, error)
}
