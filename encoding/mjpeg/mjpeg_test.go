package mjpeg

import (
	"bytes"
	"context"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestEncoder(t *testing.T) {
	enc := NewEncoder(60, 80)
	assert.Error(t, enc.Flush())

	m := tensor.New(tensor.WithShape(2, 3, 3), tensor.Of(tensor.Float64))
	m.Float64s()[4] = 1
	require.NoError(t, enc.Encode("C1 scale 0", m))
	require.NoError(t, enc.Encode("C1 scale 1", m))
	assert.Error(t, enc.Encode("too big", tensor.New(tensor.WithShape(100, 100), tensor.Of(tensor.Float64))))
	require.NoError(t, enc.Flush())
	assert.Equal(t, 2, enc.Frames())

	im, err := jpeg.Decode(bytes.NewReader(enc.Frame(1)))
	require.NoError(t, err)
	assert.Equal(t, 80, im.Bounds().Dx())
	assert.Equal(t, 60, im.Bounds().Dy())
}

func TestPlay(t *testing.T) {
	enc := NewEncoder(60, 80)
	assert.Error(t, enc.Play(context.Background(), time.Millisecond))

	require.NoError(t, enc.Encode("matrix", tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float64{0, 1, 2, 3}))))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NoError(t, enc.Play(ctx, time.Millisecond))
}
