package learnsvc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"github.com/mkrupp/learnai-dashboard/internal/domain"
)

var (
	// ErrUnknownInterpolator is returned when an unsupported interpolation method is configured.
	ErrUnknownInterpolator = errors.New("unknown interpolator")
	// ErrUnsupportedFormat is returned for thumbnail formats other than png, jpeg and tiff.
	ErrUnsupportedFormat = errors.New("unsupported thumbnail format")
)

const (
	baseWidth  = 160
	baseHeight = 90

	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatTIFF = "tiff"
)

// ThumbnailConfig holds configuration for course thumbnails.
type ThumbnailConfig struct {
	// DefaultWidth is used when no width is requested
	DefaultWidth int `env:"DEFAULT_WIDTH" default:"320"`
	// MaxWidth caps requested widths
	MaxWidth int `env:"MAX_WIDTH" default:"1920"`
	// Interpolator is one of "nearestneighbor", "catmullrom", "bilinear", "approxbilinear"
	Interpolator string `env:"INTERPOLATOR" default:"catmullrom"`
}

//nolint:gochecknoglobals
var (
	interpolMap = map[string]draw.Interpolator{
		"nearestneighbor": draw.NearestNeighbor,
		"catmullrom":      draw.CatmullRom,
		"bilinear":        draw.BiLinear,
		"approxbilinear":  draw.ApproxBiLinear,
	}

	thumbnailEncoders = map[string]func(io.Writer, image.Image) error{
		FormatPNG:  png.Encode,
		FormatJPEG: func(w io.Writer, i image.Image) error { return jpeg.Encode(w, i, nil) },
		FormatTIFF: func(w io.Writer, i image.Image) error { return tiff.Encode(w, i, nil) },
	}

	thumbnailMIMETypes = map[string]string{
		FormatPNG:  "image/png",
		FormatJPEG: "image/jpeg",
		FormatTIFF: "image/tiff",
	}

	// Gradient stops used by the catalog, in Tailwind's default palette.
	gradientColors = map[string]color.RGBA{
		"purple-500": {R: 0xa8, G: 0x55, B: 0xf7, A: 0xff},
		"blue-500":   {R: 0x3b, G: 0x82, B: 0xf6, A: 0xff},
		"amber-500":  {R: 0xf5, G: 0x9e, B: 0x0b, A: 0xff},
		"orange-500": {R: 0xf9, G: 0x73, B: 0x16, A: 0xff},
		"teal-500":   {R: 0x14, G: 0xb8, B: 0xa6, A: 0xff},
		"cyan-500":   {R: 0x06, G: 0xb6, B: 0xd4, A: 0xff},
		"yellow-500": {R: 0xea, G: 0xb3, B: 0x08, A: 0xff},
		"pink-500":   {R: 0xec, G: 0x48, B: 0x99, A: 0xff},
		"rose-500":   {R: 0xf4, G: 0x3f, B: 0x5e, A: 0xff},
		"green-500":  {R: 0x22, G: 0xc5, B: 0x5e, A: 0xff},
		"indigo-500": {R: 0x63, G: 0x66, B: 0xf1, A: 0xff},
		"slate-500":  {R: 0x64, G: 0x74, B: 0x8b, A: 0xff},
	}

	fallbackColor = gradientColors["slate-500"]
)

// Thumbnail is an encoded course cover image.
type Thumbnail struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// Thumbnailer renders course cover images from their gradient tokens.
type Thumbnailer struct {
	cfg      ThumbnailConfig
	interpol draw.Interpolator
}

// NewThumbnailer creates a Thumbnailer.
// Returns ErrUnknownInterpolator if the configured interpolator is not supported.
func NewThumbnailer(cfg ThumbnailConfig) (*Thumbnailer, error) {
	interpol, ok := interpolMap[strings.ToLower(cfg.Interpolator)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInterpolator, cfg.Interpolator)
	}

	if cfg.MaxWidth < 1 {
		cfg.MaxWidth = 1
	}

	return &Thumbnailer{cfg: cfg, interpol: interpol}, nil
}

// Render draws the course gradient at 16:9 and encodes it in format. A zero width selects
// the configured default; other widths are clamped to [1, MaxWidth].
func (t *Thumbnailer) Render(c domain.Course, width int, format string) (*Thumbnail, error) {
	if format == "" {
		format = FormatPNG
	}

	encode, ok := thumbnailEncoders[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	width = t.clampWidth(width)
	height := max(1, width*baseHeight/baseWidth)

	from, to := ParseGradient(c.Thumbnail)
	base := renderGradient(from, to)

	bitmap := image.NewRGBA(image.Rect(0, 0, width, height))
	t.interpol.Scale(bitmap, bitmap.Bounds(), base, base.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := encode(&buf, bitmap); err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}

	return &Thumbnail{
		Data:     buf.Bytes(),
		MIMEType: thumbnailMIMETypes[strings.ToLower(format)],
		Width:    width,
		Height:   height,
	}, nil
}

func (t *Thumbnailer) clampWidth(width int) int {
	if width == 0 {
		width = t.cfg.DefaultWidth
	}

	return min(max(width, 1), t.cfg.MaxWidth)
}

// ParseGradient reads "from-<color> to-<color>" tokens. Missing or unknown colors fall back
// to slate.
func ParseGradient(tokens string) (from, to color.RGBA) {
	from, to = fallbackColor, fallbackColor

	for _, token := range strings.Fields(tokens) {
		if name, ok := strings.CutPrefix(token, "from-"); ok {
			from = lookupColor(name)
		} else if name, ok := strings.CutPrefix(token, "to-"); ok {
			to = lookupColor(name)
		}
	}

	return from, to
}

func lookupColor(name string) color.RGBA {
	if c, ok := gradientColors[name]; ok {
		return c
	}

	return fallbackColor
}

// renderGradient draws a top-left to bottom-right gradient at base resolution.
func renderGradient(from, to color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, baseWidth, baseHeight))
	span := baseWidth + baseHeight - 2

	for y := range baseHeight {
		for x := range baseWidth {
			img.SetRGBA(x, y, lerp(from, to, x+y, span))
		}
	}

	return img
}

func lerp(from, to color.RGBA, pos, span int) color.RGBA {
	mix := func(a, b uint8) uint8 {
		return uint8((int(a)*(span-pos) + int(b)*pos) / span)
	}

	return color.RGBA{R: mix(from.R, to.R), G: mix(from.G, to.G), B: mix(from.B, to.B), A: 0xff}
}
