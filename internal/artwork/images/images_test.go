package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProbe(t *testing.T) {
	info, err := Probe(makePNG(t, 300, 200))
	require.NoError(t, err)
	assert.Equal(t, 300, info.Width)
	assert.Equal(t, 200, info.Height)
	assert.Equal(t, "image/png", info.MIME)
}

func TestProbe_RejectsGarbage(t *testing.T) {
	_, err := Probe([]byte("this is not an image"))
	assert.Error(t, err)
}

func TestComputeBlurhash(t *testing.T) {
	hash, err := ComputeBlurhash(makePNG(t, 200, 200))
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	// Deterministic for identical input.
	again, err := ComputeBlurhash(makePNG(t, 200, 200))
	require.NoError(t, err)
	assert.Equal(t, hash, again)
}

func TestComputeBlurhash_SmallImageSkipsResize(t *testing.T) {
	hash, err := ComputeBlurhash(makePNG(t, 16, 16))
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
}
