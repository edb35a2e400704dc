package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/alchemorsel/recipeflow/internal/domain/generation"
	"github.com/gabriel-vasile/mimetype"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

const jpegQuality = 85

// FetchImage downloads an image, downscaled for inlining
func (f *HTTPFetcher) FetchImage(ctx context.Context, url string) (*generation.Image, error) {
	body, _, err := f.get(ctx, url, "image/jpeg,image/png,image/gif;q=0.8,image/*;q=0.5")
	if err != nil {
		return nil, err
	}

	img, err := Downscale(body, f.maxDimension)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", url, err)
	}

	f.logger.Debug("Prepared source image",
		zap.String("url", url),
		zap.String("mime_type", img.MIMEType),
		zap.Int("bytes", len(img.Data)),
	)
	return img, nil
}

// Downscale sniffs the image type and, when either side exceeds
// maxDimension, resizes it to fit while keeping the aspect ratio. Images
// already within bounds are returned untouched.
func Downscale(data []byte, maxDimension uint) (*generation.Image, error) {
	mime := mimetype.Detect(data)
	switch {
	case mime.Is("image/jpeg"), mime.Is("image/png"), mime.Is("image/gif"):
	case mime.Is("image/webp"):
		// webp cannot be decoded here but every provider accepts it inline
		return &generation.Image{MIMEType: "image/webp", Data: data}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mime.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if uint(cfg.Width) <= maxDimension && uint(cfg.Height) <= maxDimension {
		return &generation.Image{MIMEType: mime.String(), Data: data}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	scaled := resize.Thumbnail(maxDimension, maxDimension, src, resize.Lanczos3)

	var out bytes.Buffer
	if mime.Is("image/jpeg") {
		if err := jpeg.Encode(&out, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return &generation.Image{MIMEType: "image/jpeg", Data: out.Bytes()}, nil
	}
	if err := png.Encode(&out, scaled); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return &generation.Image{MIMEType: "image/png", Data: out.Bytes()}, nil
}
