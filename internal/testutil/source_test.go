package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeSource_ProbeAndDecode(t *testing.T) {
	s := NewFakeSource()
	s.AddSize("a", 30, 40)
	s.Add("b", SplitImage(8, 2))

	asset, err := s.Probe(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 30, asset.Width)
	assert.Equal(t, 40, asset.Height)

	img, err := s.Decode(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 30, img.Bounds().Dx())

	img, err = s.Decode(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, Red, img.At(0, 0))
	assert.Equal(t, Blue, img.At(7, 1))
}

func TestFakeSource_Fail(t *testing.T) {
	s := NewFakeSource()
	boom := errors.New("boom")
	s.Fail("x", boom)

	_, err := s.Probe(context.Background(), "x")
	assert.ErrorIs(t, err, boom)

	_, err = s.Probe(context.Background(), "missing")
	assert.Error(t, err)
}

func TestFakeSource_Hold(t *testing.T) {
	s := NewFakeSource()
	s.AddSize("a", 1, 1)
	s.Hold()

	done := make(chan error, 1)
	go func() {
		_, err := s.Probe(context.Background(), "a")
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("probe returned while held")
	case <-time.After(20 * time.Millisecond):
	}

	s.Release()
	require.NoError(t, <-done)
	assert.Equal(t, 1, s.Probes())
}

func TestFakeSource_HoldCancelled(t *testing.T) {
	s := NewFakeSource()
	s.AddSize("a", 1, 1)
	s.Hold()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Probe(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}
