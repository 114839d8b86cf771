package provider

import (
	"context"

	"github.com/smallbiznis/creditgate/internal/generation/domain"
)

const DemoName = "demo"

// Demo returns a fixed result image without calling an upstream model.
type Demo struct {
	resultURL string
}

func NewDemo(resultURL string) *Demo {
	if resultURL == "" {
		resultURL = "/result.png"
	}
	return &Demo{resultURL: resultURL}
}

func (d *Demo) Name() string { return DemoName }

func (d *Demo) Inpaint(ctx context.Context, req domain.InpaintRequest) (domain.InpaintResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.InpaintResult{}, err
	}
	return domain.InpaintResult{ImageURL: d.resultURL, Model: "demo"}, nil
}
