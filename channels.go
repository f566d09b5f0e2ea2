package blindwatermark

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/mat"
)

// ColorChannel selects which RGB plane carries the watermark.
type ColorChannel int

const (
	ChannelRed ColorChannel = iota
	ChannelGreen
	// ChannelBlue is the conventional carrier: the human eye is least
	// sensitive to blue, so the coefficient distortion is hardest to see.
	ChannelBlue
)

// SplitChannels decomposes an image into three channel matrices of 8-bit
// intensities. This is the raster I/O boundary: past this point the codec
// only sees matrices.
func SplitChannels(img image.Image) (r, g, b *mat.Dense) {
	bounds := img.Bounds()
	h, w := bounds.Dy(), bounds.Dx()
	if h == 0 || w == 0 {
		return nil, nil, nil
	}
	r = mat.NewDense(h, w, nil)
	g = mat.NewDense(h, w, nil)
	b = mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cr, cg, cb, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			r.Set(y, x, float64(cr>>8))
			g.Set(y, x, float64(cg>>8))
			b.Set(y, x, float64(cb>>8))
		}
	}
	return r, g, b
}

// MergeChannels recomposes the three channel matrices into an opaque RGBA
// image. All three must share dimensions.
func MergeChannels(r, g, b *mat.Dense) *image.RGBA {
	if r == nil {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	h, w := r.Dims()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.SetRGBA(x, y, color.RGBA{
				R: clampByte(r.At(y, x)),
				G: clampByte(g.At(y, x)),
				B: clampByte(b.At(y, x)),
				A: 255,
			})
		}
	}
	return out
}

// ConvertToGray converts any image to an 8-bit grayscale image. The draw
// package handles the color model conversion.
func ConvertToGray(src image.Image) *image.Gray {
	bounds := src.Bounds()
	grayImg := image.NewGray(bounds)
	draw.Draw(grayImg, bounds, src, bounds.Min, draw.Src)
	return grayImg
}

// ConvertToBinary thresholds an image to pure black and white. Luminance
// above threshold maps to white.
func ConvertToBinary(src image.Image, threshold uint8) *image.Gray {
	bounds := src.Bounds()
	grayImg := image.NewGray(bounds)
	black := color.Gray{Y: 0}
	white := color.Gray{Y: 255}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := src.At(x, y).RGBA()
			lum := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
			if uint8(lum/256) > threshold {
				grayImg.SetGray(x, y, white)
			} else {
				grayImg.SetGray(x, y, black)
			}
		}
	}
	return grayImg
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
