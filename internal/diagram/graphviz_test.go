package diagram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPNG(t *testing.T, png []byte) {
	t.Helper()
	require.True(t, len(png) > 8, "PNG should be larger than header")
	assert.Equal(t, byte(0x89), png[0])
	assert.Equal(t, byte('P'), png[1])
	assert.Equal(t, byte('N'), png[2])
	assert.Equal(t, byte('G'), png[3])
}

func TestRenderImage(t *testing.T) {
	png, err := RenderImage(context.Background(), buildModel(t, refundWorkflow(), nil), DefaultScale)
	require.NoError(t, err)
	assertPNG(t, png)
}

func TestRenderImage_LoopAndTrace(t *testing.T) {
	def := loopWorkflow()
	png, err := RenderImage(context.Background(), buildModel(t, def, traceOverlay(t, def, nil)), Scale{X: 200, Y: 120})
	require.NoError(t, err)
	assertPNG(t, png)
}

func TestRenderImage_InvalidScaleFallsBack(t *testing.T) {
	png, err := RenderImage(context.Background(), buildModel(t, refundWorkflow(), nil), Scale{})
	require.NoError(t, err)
	assertPNG(t, png)
}

func TestScale(t *testing.T) {
	px, py := Scale{X: 10, Y: 20}.Project(3, 2)
	assert.Equal(t, 30.0, px)
	assert.Equal(t, 40.0, py)
	assert.False(t, Scale{X: 1}.Valid())
	assert.True(t, DefaultScale.Valid())
}
