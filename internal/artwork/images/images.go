// Package images validates cover images and derives presentation
// metadata: dimensions, MIME type and a blurhash placeholder string.
package images

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	"github.com/bbrks/go-blurhash"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Info describes a decoded cover image.
type Info struct {
	Width  int
	Height int
	MIME   string
}

// Probe decodes just the image header and reports dimensions and MIME
// type. It is cheap and safe to run on untrusted downloads.
func Probe(data []byte) (*Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return &Info{
		Width:  cfg.Width,
		Height: cfg.Height,
		MIME:   mimeForFormat(format),
	}, nil
}

func mimeForFormat(format string) string {
	switch format {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// blurhashSize is the target size for blurhash computation. Blurhash is a
// low-resolution placeholder, so a small thumbnail produces nearly
// identical results in a fraction of the time.
const blurhashSize = 64

// ComputeBlurhash generates a blurhash string from raw image bytes.
// Uses 4x3 components, the usual balance of string size and detail for
// square-ish covers.
func ComputeBlurhash(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	hash, err := blurhash.Encode(4, 3, resizeForBlurhash(img))
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}
	return hash, nil
}

// resizeForBlurhash creates a small thumbnail with nearest-neighbor
// scaling, which is fast and sufficient for blurhash input.
func resizeForBlurhash(img image.Image) image.Image {
	bounds := img.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()

	if srcWidth <= blurhashSize && srcHeight <= blurhashSize {
		return img
	}

	var dstWidth, dstHeight int
	if srcWidth > srcHeight {
		dstWidth = blurhashSize
		dstHeight = max((srcHeight*blurhashSize)/srcWidth, 1)
	} else {
		dstHeight = blurhashSize
		dstWidth = max((srcWidth*blurhashSize)/srcHeight, 1)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstWidth, dstHeight))
	xRatio := float64(srcWidth) / float64(dstWidth)
	yRatio := float64(srcHeight) / float64(dstHeight)
	for y := 0; y < dstHeight; y++ {
		for x := 0; x < dstWidth; x++ {
			srcX := int(float64(x) * xRatio)
			srcY := int(float64(y) * yRatio)
			dst.Set(x, y, img.At(bounds.Min.X+srcX, bounds.Min.Y+srcY))
		}
	}
	return dst
}
