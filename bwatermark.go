package blindwatermark

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/mat"

	"github.com/tourze/blind-watermark/converter"
	"github.com/tourze/blind-watermark/core"
)

var (
	// ErrImageTooSmall is returned when the carrier image cannot hold the
	// full payload. The root API is strict; callers wanting best-effort
	// truncation use core.Embedder directly.
	ErrImageTooSmall = errors.New("image too small to hold this watermark")
	// ErrWatermarkTooLarge is returned for watermark images whose dimensions
	// overflow the uint16 size prefix.
	ErrWatermarkTooLarge = errors.New("watermark image too large")
)

// Options configures a BlindWatermarker. The zero value is not useful;
// start from DefaultOptions.
type Options struct {
	// BlockSize is the DCT tile size. Sizes other than 8 work but move away
	// from the JPEG-aligned sweet spot.
	BlockSize int
	// Position is the mid-frequency coefficient that carries each bit. Must
	// lie inside the block; out-of-bounds positions are rejected, not
	// clamped.
	Position core.Point
	// Strength is the signed magnitude written to the coefficient. Higher
	// survives more abuse and distorts more.
	Strength float64

	SymmetricEmbedding  bool
	MultiPointEmbedding bool
	ExtraPositions      []core.Point

	// WaveletEmbedding embeds into the HL subband of a one-level Haar
	// transform instead of the raw channel.
	WaveletEmbedding bool

	// Key scrambles the payload bit order with a keyed permutation. This is
	// obfuscation, not encryption. Empty disables it.
	Key string

	// Channel is the RGB plane that carries the mark.
	Channel ColorChannel

	Logger zerolog.Logger
}

// DefaultOptions returns the conventional parameters: 8x8 blocks, position
// (3,4), strength 36, blue channel.
func DefaultOptions() Options {
	return Options{
		BlockSize: 8,
		Position:  core.Point{Row: 3, Col: 4},
		Strength:  36.0,
		Channel:   ChannelBlue,
	}
}

// BlindWatermarker embeds payloads into images and recovers them without the
// original.
type BlindWatermarker struct {
	opts   Options
	engine *core.Engine
}

// NewBlindWatermarker builds a watermarker around a fresh DCT engine.
func NewBlindWatermarker(opts Options) *BlindWatermarker {
	return &BlindWatermarker{opts: opts, engine: core.NewEngine()}
}

// Result is an extracted watermark, decoded by payload type.
type Result struct {
	Type        converter.WatermarkType
	TextContent string
	ImageBytes  []byte // PNG bytes for image and QR payloads
}

// validateOptions rejects option values the block math cannot work with.
// The core layers validate again, but the root capacity arithmetic divides by
// the block size before they run.
func (b *BlindWatermarker) validateOptions() error {
	if b.opts.BlockSize < 1 {
		return fmt.Errorf("%w: %d", core.ErrInvalidBlockSize, b.opts.BlockSize)
	}
	return nil
}

// Capacity returns how many bits the image can carry with the current
// options, length header included. An unusable block size has no capacity.
func (b *BlindWatermarker) Capacity(src image.Image) int {
	if b.opts.BlockSize < 1 {
		return 0
	}
	h, w := src.Bounds().Dy(), src.Bounds().Dx()
	if b.opts.WaveletEmbedding {
		h, w = (h-h%2)/2, (w-w%2)/2
	}
	return (h / b.opts.BlockSize) * (w / b.opts.BlockSize)
}

// EmbedText embeds a text watermark.
func (b *BlindWatermarker) EmbedText(src image.Image, text string) (image.Image, error) {
	return b.embedPayload(src, converter.Pack(converter.TypeText, []byte(text)))
}

// EmbedQRCode embeds a QR watermark. Only the content string is stored; the
// QR image is regenerated on extraction, so it costs no more capacity than
// text.
func (b *BlindWatermarker) EmbedQRCode(src image.Image, content string) (image.Image, error) {
	return b.embedPayload(src, converter.Pack(converter.TypeQRCode, []byte(content)))
}

// EmbedBytes embeds an opaque byte payload with no type tag. Extraction via
// ExtractBytes returns exactly these bytes.
func (b *BlindWatermarker) EmbedBytes(src image.Image, payload []byte) (image.Image, error) {
	return b.embedPayload(src, payload)
}

// EmbedImage embeds a binarized image watermark. The watermark is stored as
// a uint16 width/height prefix plus one bit per pixel; if it exceeds the
// carrier's capacity it is downscaled to fit.
func (b *BlindWatermarker) EmbedImage(src image.Image, wmImage image.Image) (image.Image, error) {
	if err := b.validateOptions(); err != nil {
		return nil, err
	}
	wmImage = ConvertToGray(wmImage)
	w := wmImage.Bounds().Dx()
	h := wmImage.Bounds().Dy()

	// Bits available for pixels after the length header, type byte and size
	// prefix. The pixel bits are packed into whole bytes, so the budget is
	// rounded down to a byte multiple.
	maxPixels := b.Capacity(src) - converter.HeaderBits - 8 - 32
	maxPixels -= maxPixels % 8
	if maxPixels <= 0 {
		return nil, fmt.Errorf("%w: no room for an image watermark", ErrImageTooSmall)
	}
	if w*h > maxPixels {
		ratio := math.Sqrt(float64(maxPixels) / float64(w*h))
		newW := int(float64(w) * ratio)
		newH := int(float64(h) * ratio)
		if newW < 1 || newH < 1 {
			return nil, fmt.Errorf("%w: carrier fits %d watermark pixels", ErrImageTooSmall, maxPixels)
		}
		b.opts.Logger.Warn().
			Int("width", w).Int("height", h).
			Int("new_width", newW).Int("new_height", newH).
			Msg("watermark image exceeds capacity, downscaling")
		dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
		draw.CatmullRom.Scale(dst, dst.Rect, wmImage, wmImage.Bounds(), draw.Over, nil)
		wmImage = dst
		w, h = newW, newH
	}
	if w > 65535 || h > 65535 {
		return nil, ErrWatermarkTooLarge
	}

	pixelLen := (w*h + 7) / 8
	payload := make([]byte, 4+pixelLen)
	binary.BigEndian.PutUint16(payload[0:2], uint16(w))
	binary.BigEndian.PutUint16(payload[2:4], uint16(h))
	pixelData := payload[4:]
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bb, _ := wmImage.At(x, y).RGBA()
			lum := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bb)
			if lum/256 > 128 {
				idx := y*w + x
				pixelData[idx/8] |= 1 << uint(7-idx%8)
			}
		}
	}
	return b.embedPayload(src, converter.Pack(converter.TypeImage, payload))
}

// Extract recovers a typed watermark blindly.
func (b *BlindWatermarker) Extract(src image.Image) (*Result, error) {
	return b.extract(src, nil)
}

// ExtractWithReference recovers a typed watermark after detecting and
// undoing flips/rotations against a reference image captured at embedding
// time. The reference is only read for comparison.
func (b *BlindWatermarker) ExtractWithReference(src, reference image.Image) (*Result, error) {
	return b.extract(src, b.ReferenceChannel(reference))
}

// ExtractBytes recovers an opaque byte payload embedded with EmbedBytes.
func (b *BlindWatermarker) ExtractBytes(src image.Image) ([]byte, error) {
	return b.extractPayload(src, nil)
}

// ReferenceChannel snapshots the configured carrier channel of an image, for
// later use as a geometric-correction reference.
func (b *BlindWatermarker) ReferenceChannel(src image.Image) *mat.Dense {
	r, g, bl := SplitChannels(src)
	switch b.opts.Channel {
	case ChannelRed:
		return r
	case ChannelGreen:
		return g
	default:
		return bl
	}
}

func (b *BlindWatermarker) embedPayload(src image.Image, payload []byte) (image.Image, error) {
	if err := b.validateOptions(); err != nil {
		return nil, err
	}
	need := converter.HeaderBits + len(payload)*8
	capacity := b.Capacity(src)
	b.opts.Logger.Debug().
		Int("capacity_bits", capacity).
		Int("payload_bits", need).
		Msg("embedding watermark")
	if need > capacity {
		return nil, fmt.Errorf("%w: capacity %d bits, need %d bits", ErrImageTooSmall, capacity, need)
	}

	if b.opts.Key != "" {
		payload = scramble(payload, b.opts.Key)
	}

	r, g, bl := SplitChannels(src)
	carrier := b.pick(r, g, bl)
	em := b.embedder()
	marked, report, err := em.Embed(carrier, payload)
	if err != nil {
		return nil, err
	}
	if report.Truncated {
		// Cannot happen after the capacity check above, but the report is
		// the authoritative signal.
		return nil, fmt.Errorf("%w: embedded %d of %d bits", ErrImageTooSmall, report.EmbeddedBits, report.PayloadBits)
	}

	switch b.opts.Channel {
	case ChannelRed:
		r = marked
	case ChannelGreen:
		g = marked
	default:
		bl = marked
	}
	return MergeChannels(r, g, bl), nil
}

func (b *BlindWatermarker) extractPayload(src image.Image, reference *mat.Dense) ([]byte, error) {
	r, g, bl := SplitChannels(src)
	ex := b.extractor()
	if reference != nil {
		ex.Reference = reference
		ex.GeometricCorrection = true
	}
	payload, err := ex.Extract(b.pick(r, g, bl))
	if err != nil {
		return nil, err
	}
	if b.opts.Key != "" {
		payload = unscramble(payload, b.opts.Key)
	}
	return payload, nil
}

func (b *BlindWatermarker) extract(src image.Image, reference *mat.Dense) (*Result, error) {
	payload, err := b.extractPayload(src, reference)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return &Result{}, nil
	}
	wmType, data, err := converter.Unpack(payload)
	if err != nil {
		return nil, err
	}

	res := &Result{Type: wmType}
	switch wmType {
	case converter.TypeText:
		res.TextContent = string(data)
	case converter.TypeQRCode:
		res.TextContent = string(data)
		qrPng, qrErr := qrcode.Encode(res.TextContent, qrcode.Medium, 256)
		if qrErr != nil {
			b.opts.Logger.Warn().Err(qrErr).Msg("failed to regenerate QR image")
		} else {
			res.ImageBytes = qrPng
		}
	case converter.TypeImage:
		img, imgErr := decodeBinaryImage(data)
		if imgErr != nil {
			res.ImageBytes = data
			b.opts.Logger.Warn().Err(imgErr).Msg("image watermark payload malformed")
			break
		}
		var buf bytes.Buffer
		if encErr := png.Encode(&buf, img); encErr != nil {
			return nil, encErr
		}
		res.ImageBytes = buf.Bytes()
	default:
		res.TextContent = string(data)
	}
	return res, nil
}

func (b *BlindWatermarker) pick(r, g, bl *mat.Dense) *mat.Dense {
	switch b.opts.Channel {
	case ChannelRed:
		return r
	case ChannelGreen:
		return g
	default:
		return bl
	}
}

func (b *BlindWatermarker) embedder() *core.Embedder {
	em := core.NewEmbedder(b.engine)
	em.BlockSize = b.opts.BlockSize
	em.Position = b.opts.Position
	em.Strength = b.opts.Strength
	em.Symmetric = b.opts.SymmetricEmbedding
	em.MultiPoint = b.opts.MultiPointEmbedding
	em.ExtraPositions = b.opts.ExtraPositions
	em.Wavelet = b.opts.WaveletEmbedding
	em.Logger = b.opts.Logger
	return em
}

func (b *BlindWatermarker) extractor() *core.Extractor {
	ex := core.NewExtractor(b.engine)
	ex.BlockSize = b.opts.BlockSize
	ex.Position = b.opts.Position
	ex.Symmetric = b.opts.SymmetricEmbedding
	ex.MultiPoint = b.opts.MultiPointEmbedding
	ex.ExtraPositions = b.opts.ExtraPositions
	ex.Wavelet = b.opts.WaveletEmbedding
	ex.Logger = b.opts.Logger
	return ex
}

// scramble permutes the payload's bit order under the key; unscramble
// inverts it. Payload bit counts are always byte multiples, so the round
// trip through bytes is lossless.
func scramble(payload []byte, key string) []byte {
	p := converter.NewPermuter(key)
	return converter.BitsToBytes(p.Scramble(converter.BytesToBits(payload)))
}

func unscramble(payload []byte, key string) []byte {
	p := converter.NewPermuter(key)
	return converter.BitsToBytes(p.Unscramble(converter.BytesToBits(payload)))
}

// decodeBinaryImage rebuilds the black-and-white watermark image from its
// size-prefixed bit payload.
func decodeBinaryImage(data []byte) (image.Image, error) {
	if len(data) < 4 {
		return nil, errors.New("data too short to contain dimensions")
	}
	w := int(binary.BigEndian.Uint16(data[0:2]))
	h := int(binary.BigEndian.Uint16(data[2:4]))
	expected := (w*h + 7) / 8
	pixelData := data[4:]
	if len(pixelData) < expected {
		return nil, fmt.Errorf("incomplete pixel data: want %d bytes, have %d", expected, len(pixelData))
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	black := color.RGBA{0, 0, 0, 255}
	white := color.RGBA{255, 255, 255, 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if (pixelData[idx/8]>>uint(7-idx%8))&1 == 1 {
				img.Set(x, y, white)
			} else {
				img.Set(x, y, black)
			}
		}
	}
	return img, nil
}

// SaveImgFile writes an image by extension: .png lossless, anything else
// JPEG at quality 100 to keep coefficient damage minimal.
func (b *BlindWatermarker) SaveImgFile(name string, img image.Image) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	if filepath.Ext(name) == ".png" {
		return png.Encode(f, img)
	}
	return jpeg.Encode(f, img, &jpeg.Options{Quality: 100})
}
