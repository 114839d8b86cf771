package domain

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataURL(mime string, payload []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(payload)
}

func TestValidateImageDataURL(t *testing.T) {
	img, err := ValidateImageDataURL(dataURL("IMAGE/PNG", []byte("png-bytes")), "image", 0)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, 9, img.Size())

	cases := map[string]string{
		"empty":       "",
		"not a url":   "hello",
		"gif":         dataURL("image/gif", []byte("gif")),
		"empty data":  "data:image/png;base64,",
		"bad padding": "data:image/png;base64,abc=d",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateImageDataURL(input, "image", 0)
			assert.ErrorIs(t, err, ErrInvalidImage)
		})
	}
}

func TestValidateImageDataURLSize(t *testing.T) {
	payload := []byte(strings.Repeat("a", 2048))
	_, err := ValidateImageDataURL(dataURL("image/jpeg", payload), "mask", 1024)
	require.ErrorIs(t, err, ErrInvalidImage)
	assert.Contains(t, err.Error(), "mask is too large")

	_, err = ValidateImageDataURL(dataURL("image/jpeg", payload), "mask", 2048)
	assert.NoError(t, err)
}

func TestInpaintParamsNormalize(t *testing.T) {
	p := InpaintParams{}.Normalize()
	assert.Equal(t, DefaultStrength, p.Strength)
	assert.Equal(t, DefaultSteps, p.Steps)
	assert.Equal(t, DefaultDimension, p.Width)
	assert.Equal(t, DefaultNegativePrompt, p.NegativePrompt)

	assert.Equal(t, MaxStrength, InpaintParams{Strength: 0.9}.Normalize().Strength)
	assert.Equal(t, MinStrength, InpaintParams{Strength: 0.01}.Normalize().Strength)
}

func TestUsagePeriod(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	assert.Equal(t, "2026-01", UsagePeriod(time.Date(2026, 2, 1, 3, 0, 0, 0, loc)))
	assert.Equal(t, "2026-12", UsagePeriod(time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC)))
}

func TestFeedbackValid(t *testing.T) {
	assert.True(t, FeedbackLike.Valid())
	assert.True(t, FeedbackDislike.Valid())
	assert.False(t, Feedback("meh").Valid())
}
