package render

import (
	"fmt"
	"strings"

	"golang.org/x/image/draw"
)

// Interpolator selects the resampling kernel.
type Interpolator string

const (
	InterpolatorNearest    Interpolator = "nearest"
	InterpolatorBilinear   Interpolator = "bilinear"
	InterpolatorCatmullRom Interpolator = "catmullrom"
)

// ParseInterpolator validates a kernel name.
func ParseInterpolator(s string) (Interpolator, error) {
	switch i := Interpolator(strings.ToLower(s)); i {
	case InterpolatorNearest, InterpolatorBilinear, InterpolatorCatmullRom:
		return i, nil
	default:
		return "", fmt.Errorf("unknown interpolator %q", s)
	}
}

func (i Interpolator) transformer() draw.Transformer {
	switch i {
	case InterpolatorNearest:
		return draw.NearestNeighbor
	case InterpolatorCatmullRom:
		return draw.CatmullRom
	default:
		return draw.BiLinear
	}
}

// Format is the output encoding.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// ParseFormat validates an output format name. "jpg" is accepted.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Ext returns the file extension for the format, with a leading dot.
func (f Format) Ext() string {
	if f == FormatPNG {
		return ".png"
	}
	return ".jpg"
}

// DefaultQuality is the JPEG quality of captured output.
const DefaultQuality = 90
