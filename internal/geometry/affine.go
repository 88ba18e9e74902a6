package geometry

import (
	"fmt"

	"golang.org/x/image/math/f64"
	"gonum.org/v1/gonum/mat"

	"github.com/roach88/cropper/internal/crop"
)

// Rect is an axis-aligned rectangle in image pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func translation(dx, dy float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, dx,
		0, 1, dy,
		0, 0, 1,
	})
}

func scaling(s float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		s, 0, 0,
		0, s, 0,
		0, 0, 1,
	})
}

// viewMatrix composes T(viewport centre + t) · S(scale) · T(-image centre).
func viewMatrix(t crop.Transform, imageW, imageH float64, vp crop.Viewport) *mat.Dense {
	var m, out mat.Dense
	m.Mul(scaling(t.Scale), translation(-imageW/2, -imageH/2))
	out.Mul(translation(vp.Width/2+t.TranslateX, vp.Height/2+t.TranslateY), &m)
	return &out
}

func toAff3(m mat.Matrix) f64.Aff3 {
	return f64.Aff3{
		m.At(0, 0), m.At(0, 1), m.At(0, 2),
		m.At(1, 0), m.At(1, 1), m.At(1, 2),
	}
}

// ViewMatrix returns the affine map from image pixels to viewport points.
func ViewMatrix(t crop.Transform, imageW, imageH float64, vp crop.Viewport) f64.Aff3 {
	return toAff3(viewMatrix(t, imageW, imageH, vp))
}

// VisibleRect returns the part of the image, in image pixels, that shows
// through the viewport. The result is empty when nothing is visible.
func VisibleRect(t crop.Transform, imageW, imageH float64, vp crop.Viewport) (Rect, error) {
	if t.Scale <= 0 {
		return Rect{}, fmt.Errorf("scale must be positive, got %v", t.Scale)
	}

	var inv mat.Dense
	if err := inv.Inverse(viewMatrix(t, imageW, imageH, vp)); err != nil {
		return Rect{}, fmt.Errorf("invert view matrix: %w", err)
	}

	topLeft := project(&inv, 0, 0)
	bottomRight := project(&inv, vp.Width, vp.Height)

	x0 := clamp(topLeft.AtVec(0), 0, imageW)
	y0 := clamp(topLeft.AtVec(1), 0, imageH)
	x1 := clamp(bottomRight.AtVec(0), 0, imageW)
	y1 := clamp(bottomRight.AtVec(1), 0, imageH)

	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}, nil
}

func project(m mat.Matrix, x, y float64) *mat.VecDense {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{x, y, 1}))
	return &out
}
