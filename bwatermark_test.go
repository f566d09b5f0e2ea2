package blindwatermark

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourze/blind-watermark/converter"
	"github.com/tourze/blind-watermark/core"
)

// testCarrier builds a textured mid-range RGBA image. Mid-range keeps the
// watermark energy clear of clamping; texture gives geometric detection
// something to latch onto.
func testCarrier(w, h int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(64 + rng.Intn(128)),
				G: uint8(64 + rng.Intn(128)),
				B: uint8(64 + rng.Intn(128)),
				A: 255,
			})
		}
	}
	return img
}

func TestEmbedExtractText(t *testing.T) {
	bw := NewBlindWatermarker(DefaultOptions())
	src := testCarrier(256, 256, 1)

	marked, err := bw.EmbedText(src, "Hello BlindWatermark!")
	require.NoError(t, err)

	res, err := bw.Extract(marked)
	require.NoError(t, err)
	assert.Equal(t, converter.TypeText, res.Type)
	assert.Equal(t, "Hello BlindWatermark!", res.TextContent)
}

func TestEmbedExtractEmptyText(t *testing.T) {
	bw := NewBlindWatermarker(DefaultOptions())
	marked, err := bw.EmbedText(testCarrier(128, 128, 2), "")
	require.NoError(t, err)

	res, err := bw.Extract(marked)
	require.NoError(t, err)
	assert.Equal(t, converter.TypeText, res.Type)
	assert.Equal(t, "", res.TextContent)
}

func TestEmbedExtractBytes(t *testing.T) {
	bw := NewBlindWatermarker(DefaultOptions())
	payload := []byte{0x00, 0xFF, 0x10, 0x20, 0x7F}
	marked, err := bw.EmbedBytes(testCarrier(128, 128, 3), payload)
	require.NoError(t, err)

	got, err := bw.ExtractBytes(marked)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestEmbedExtractEmptyBytes(t *testing.T) {
	bw := NewBlindWatermarker(DefaultOptions())
	marked, err := bw.EmbedBytes(testCarrier(128, 128, 4), nil)
	require.NoError(t, err)

	got, err := bw.ExtractBytes(marked)
	require.NoError(t, err)
	assert.Empty(t, got)

	res, err := bw.Extract(marked)
	require.NoError(t, err)
	assert.Equal(t, converter.WatermarkType(0), res.Type)
}

func TestEmbedExtractQRCode(t *testing.T) {
	bw := NewBlindWatermarker(DefaultOptions())
	marked, err := bw.EmbedQRCode(testCarrier(256, 256, 5), "https://example.com/owner")
	require.NoError(t, err)

	res, err := bw.Extract(marked)
	require.NoError(t, err)
	assert.Equal(t, converter.TypeQRCode, res.Type)
	assert.Equal(t, "https://example.com/owner", res.TextContent)

	// The QR image is regenerated from the text, so it decodes as a PNG.
	qrImg, err := png.Decode(bytes.NewReader(res.ImageBytes))
	require.NoError(t, err)
	assert.Equal(t, 256, qrImg.Bounds().Dx())
}

func TestEmbedExtractImageWatermark(t *testing.T) {
	bw := NewBlindWatermarker(DefaultOptions())

	// 16x16 checkerboard watermark.
	wm := image.NewGray(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if (x+y)%2 == 0 {
				wm.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	marked, err := bw.EmbedImage(testCarrier(256, 256, 6), wm)
	require.NoError(t, err)

	res, err := bw.Extract(marked)
	require.NoError(t, err)
	assert.Equal(t, converter.TypeImage, res.Type)

	rebuilt, err := png.Decode(bytes.NewReader(res.ImageBytes))
	require.NoError(t, err)
	require.Equal(t, 16, rebuilt.Bounds().Dx())
	require.Equal(t, 16, rebuilt.Bounds().Dy())
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			r, _, _, _ := rebuilt.At(x, y).RGBA()
			if (x+y)%2 == 0 {
				assert.Equal(t, uint32(0xFFFF), r, "pixel (%d,%d) should be white", x, y)
			} else {
				assert.Equal(t, uint32(0), r, "pixel (%d,%d) should be black", x, y)
			}
		}
	}
}

func TestEmbedExtractWithKey(t *testing.T) {
	opts := DefaultOptions()
	opts.Key = "watermark-key"
	bw := NewBlindWatermarker(opts)

	marked, err := bw.EmbedText(testCarrier(256, 256, 7), "keyed payload")
	require.NoError(t, err)

	res, err := bw.Extract(marked)
	require.NoError(t, err)
	assert.Equal(t, "keyed payload", res.TextContent)

	// A different key unscrambles into noise, never the original text.
	wrongOpts := DefaultOptions()
	wrongOpts.Key = "other-key"
	wrong := NewBlindWatermarker(wrongOpts)
	wrongRes, err := wrong.Extract(marked)
	if err == nil {
		assert.NotEqual(t, "keyed payload", wrongRes.TextContent)
	}
}

func TestEmbedExtractSymmetricOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.SymmetricEmbedding = true
	opts.MultiPointEmbedding = true
	bw := NewBlindWatermarker(opts)

	marked, err := bw.EmbedText(testCarrier(192, 192, 8), "redundant bits")
	require.NoError(t, err)
	res, err := bw.Extract(marked)
	require.NoError(t, err)
	assert.Equal(t, "redundant bits", res.TextContent)
}

func TestEmbedExtractWaveletMode(t *testing.T) {
	opts := DefaultOptions()
	opts.WaveletEmbedding = true
	bw := NewBlindWatermarker(opts)

	src := testCarrier(256, 256, 9)
	marked, err := bw.EmbedText(src, "HL subband")
	require.NoError(t, err)
	res, err := bw.Extract(marked)
	require.NoError(t, err)
	assert.Equal(t, "HL subband", res.TextContent)
}

func TestCapacity(t *testing.T) {
	bw := NewBlindWatermarker(DefaultOptions())
	assert.Equal(t, 1024, bw.Capacity(testCarrier(256, 256, 10)))
	assert.Equal(t, 4, bw.Capacity(testCarrier(17, 17, 11)))

	opts := DefaultOptions()
	opts.WaveletEmbedding = true
	assert.Equal(t, 256, NewBlindWatermarker(opts).Capacity(testCarrier(256, 256, 12)))
}

func TestEmbedRejectsOversizedPayload(t *testing.T) {
	bw := NewBlindWatermarker(DefaultOptions())
	// 32x32 carrier: 16 blocks, not even room for the header.
	_, err := bw.EmbedText(testCarrier(32, 32, 13), "this will not fit at all")
	assert.ErrorIs(t, err, ErrImageTooSmall)
}

func TestInvalidBlockSizeOption(t *testing.T) {
	opts := DefaultOptions()
	opts.BlockSize = 0
	bw := NewBlindWatermarker(opts)

	// The capacity arithmetic divides by the block size; an unusable size
	// must surface as a typed error, never a divide-by-zero panic.
	_, err := bw.EmbedText(testCarrier(64, 64, 18), "no tiles")
	assert.ErrorIs(t, err, core.ErrInvalidBlockSize)
	_, err = bw.EmbedImage(testCarrier(64, 64, 19), image.NewGray(image.Rect(0, 0, 4, 4)))
	assert.ErrorIs(t, err, core.ErrInvalidBlockSize)
	assert.Equal(t, 0, bw.Capacity(testCarrier(64, 64, 20)))

	opts.BlockSize = -4
	_, err = NewBlindWatermarker(opts).EmbedText(testCarrier(64, 64, 21), "negative")
	assert.ErrorIs(t, err, core.ErrInvalidBlockSize)
}

func TestEmbedImageByteBudget(t *testing.T) {
	// 88x88 carrier: 121 blocks; after the length header, type byte and size
	// prefix the pixel budget is 65 bits, rounded down to 64 because pixels
	// pack into whole bytes.
	bw := NewBlindWatermarker(DefaultOptions())

	// Exactly at the rounded budget: embeds without downscaling.
	fit := image.NewGray(image.Rect(0, 0, 8, 8))
	marked, err := bw.EmbedImage(testCarrier(88, 88, 22), fit)
	require.NoError(t, err)
	res, err := bw.Extract(marked)
	require.NoError(t, err)
	require.Equal(t, converter.TypeImage, res.Type)
	img, err := png.Decode(bytes.NewReader(res.ImageBytes))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())

	// One pixel over the rounded budget: downscaled to fit, not bounced off
	// the capacity check.
	over := image.NewGray(image.Rect(0, 0, 13, 5))
	marked, err = bw.EmbedImage(testCarrier(88, 88, 23), over)
	require.NoError(t, err)
	res, err = bw.Extract(marked)
	require.NoError(t, err)
	require.Equal(t, converter.TypeImage, res.Type)
	img, err = png.Decode(bytes.NewReader(res.ImageBytes))
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())
}

func TestExtractUnmarkedTinyImage(t *testing.T) {
	bw := NewBlindWatermarker(DefaultOptions())
	_, err := bw.Extract(testCarrier(16, 16, 14))
	assert.ErrorIs(t, err, core.ErrNoWatermark)
}

func TestExtractWithReferenceAfterRotation(t *testing.T) {
	bw := NewBlindWatermarker(DefaultOptions())
	src := testCarrier(192, 160, 15)
	marked, err := bw.EmbedText(src, "upright again")
	require.NoError(t, err)

	for _, angle := range []int{90, 180, 270} {
		t.Run(map[int]string{90: "rot90", 180: "rot180", 270: "rot270"}[angle], func(t *testing.T) {
			attacked := rotateImage(marked, angle)
			res, err := bw.ExtractWithReference(attacked, marked)
			require.NoError(t, err)
			assert.Equal(t, "upright again", res.TextContent)
		})
	}
}

func TestExtractWithReferenceAfterFlip(t *testing.T) {
	bw := NewBlindWatermarker(DefaultOptions())
	marked, err := bw.EmbedText(testCarrier(192, 160, 16), "mirror mirror")
	require.NoError(t, err)

	r, g, b := SplitChannels(marked)
	flipped := MergeChannels(core.FlipHorizontal(r), core.FlipHorizontal(g), core.FlipHorizontal(b))
	res, err := bw.ExtractWithReference(flipped, marked)
	require.NoError(t, err)
	assert.Equal(t, "mirror mirror", res.TextContent)
}

// rotateImage rotates all three channels through the core primitives; the
// test only needs a geometric attack, not an imaging library.
func rotateImage(img image.Image, angle int) image.Image {
	r, g, b := SplitChannels(img)
	return MergeChannels(core.Rotate(r, angle), core.Rotate(g, angle), core.Rotate(b, angle))
}

func TestSplitMergeChannels(t *testing.T) {
	src := testCarrier(24, 16, 17)
	r, g, b := SplitChannels(src)
	out := MergeChannels(r, g, b)
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			assert.Equal(t, src.RGBAAt(x, y), out.RGBAAt(x, y))
		}
	}
}

func TestConvertToBinary(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 1))
	img.SetGray(0, 0, color.Gray{Y: 200})
	img.SetGray(1, 0, color.Gray{Y: 20})
	bin := ConvertToBinary(img, 128)
	assert.Equal(t, uint8(255), bin.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(0), bin.GrayAt(1, 0).Y)
}
