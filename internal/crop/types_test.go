package crop

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewViewport_ThreeByFour(t *testing.T) {
	vp := NewViewport(300)
	assert.Equal(t, 300.0, vp.Width)
	assert.Equal(t, 400.0, vp.Height)

	w, h := vp.PixelSize()
	assert.Equal(t, 300, w)
	assert.Equal(t, 400, h)
}

func TestNewViewportWithAspect(t *testing.T) {
	vp := NewViewportWithAspect(400, 1, 1)
	assert.Equal(t, 400.0, vp.Height)

	// invalid aspect falls back to 3:4
	vp = NewViewportWithAspect(300, 0, 4)
	assert.Equal(t, 400.0, vp.Height)
}

func TestViewport_PixelSizeRounds(t *testing.T) {
	vp := NewViewport(301)
	w, h := vp.PixelSize()
	assert.Equal(t, 301, w)
	assert.Equal(t, 401, h) // 401.33
}

func TestViewport_HasLayout(t *testing.T) {
	assert.True(t, NewViewport(1).HasLayout())
	assert.False(t, NewViewport(0).HasLayout())
	assert.False(t, Viewport{Width: math.Inf(1), Height: 1}.HasLayout())
}

func TestTransform_Sanitize(t *testing.T) {
	got := Transform{Scale: 0, TranslateX: math.NaN(), TranslateY: 4}.Sanitize()
	assert.Equal(t, Transform{Scale: 1, TranslateX: 0, TranslateY: 4}, got)

	ok := Transform{Scale: 2.5, TranslateX: -3, TranslateY: 7}
	assert.Equal(t, ok, ok.Sanitize())
}

func TestRecord_JSONLayout(t *testing.T) {
	rec := NewRecord(Transform{Scale: 0.3, TranslateX: 1.5, TranslateY: -2})

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"scale":0.3,"translateX":1.5,"translateY":-2,"crop":{"x":0,"y":0},"zoom":1,"minZoom":1}`,
		string(data))
}

func TestRecord_WithTransformKeepsLegacyFields(t *testing.T) {
	rec := Record{Scale: 1, Crop: Point{X: 12, Y: 8}, Zoom: 2, MinZoom: 1.5, Seq: 9}

	got := rec.WithTransform(Transform{Scale: 3, TranslateX: 4, TranslateY: 5})
	assert.Equal(t, Point{X: 12, Y: 8}, got.Crop)
	assert.Equal(t, 2.0, got.Zoom)
	assert.Equal(t, 1.5, got.MinZoom)
	assert.Equal(t, int64(9), got.Seq)
	assert.Equal(t, Transform{Scale: 3, TranslateX: 4, TranslateY: 5}, got.Transform())
}

func TestRecord_TransformDefaultsMissingScale(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"translateX":5}`), &rec))
	assert.Equal(t, Transform{Scale: 1, TranslateX: 5}, rec.Transform())
}

func TestNormalizeFileID(t *testing.T) {
	decomposed := "cafe\u0301"
	composed := "caf\u00e9"
	assert.NotEqual(t, composed, decomposed)
	assert.Equal(t, composed, NormalizeFileID(decomposed))
	assert.Equal(t, composed, NormalizeFileID(composed))
}
