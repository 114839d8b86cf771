package domain

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

const DefaultMaxImageBytes = 10 * 1024 * 1024

var dataURLPattern = regexp.MustCompile(`^data:([A-Za-z0-9+/.-]+);base64,([A-Za-z0-9+/=]+)$`)

var allowedImageTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
}

type ValidatedImage struct {
	MimeType string
	Data     []byte
}

func (v ValidatedImage) Size() int { return len(v.Data) }

// ValidateImageDataURL decodes a base64 data URL and checks its type and size.
// label names the field in error messages.
func ValidateImageDataURL(dataURL, label string, maxBytes int) (ValidatedImage, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	if strings.TrimSpace(dataURL) == "" {
		return ValidatedImage{}, fmt.Errorf("%w: missing %s payload", ErrInvalidImage, label)
	}

	matches := dataURLPattern.FindStringSubmatch(strings.TrimSpace(dataURL))
	if matches == nil {
		return ValidatedImage{}, fmt.Errorf("%w: invalid %s format. Please upload a valid image", ErrInvalidImage, label)
	}

	mimeType := strings.ToLower(matches[1])
	if _, ok := allowedImageTypes[mimeType]; !ok {
		return ValidatedImage{}, fmt.Errorf("%w: unsupported %s type: %s", ErrInvalidImage, label, mimeType)
	}

	data, err := base64.StdEncoding.DecodeString(matches[2])
	if err != nil {
		return ValidatedImage{}, fmt.Errorf("%w: invalid %s encoding", ErrInvalidImage, label)
	}
	if len(data) == 0 {
		return ValidatedImage{}, fmt.Errorf("%w: empty %s payload", ErrInvalidImage, label)
	}
	if len(data) > maxBytes {
		return ValidatedImage{}, fmt.Errorf("%w: %s is too large. Max size is %dMB", ErrInvalidImage, label, maxBytes/(1024*1024))
	}

	return ValidatedImage{MimeType: mimeType, Data: data}, nil
}
