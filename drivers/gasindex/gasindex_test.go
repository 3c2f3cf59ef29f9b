package gasindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(a *Algorithm, sraw int32, n int) int32 {
	var idx int32
	for i := 0; i < n; i++ {
		idx = a.Process(sraw)
	}
	return idx
}

func TestBlackout(t *testing.T) {
	a := New(VOC, 1)
	assert.False(t, a.Ready())
	// uptime 0..45 s inclusive
	assert.Equal(t, int32(0), feed(a, 30000, 46))
	assert.True(t, a.Ready())
	assert.NotEqual(t, int32(0), a.Process(30000))
}

func TestVOCSettlesAtBaseline(t *testing.T) {
	a := New(VOC, 1)
	idx := feed(a, 30000, 3600)
	assert.InDelta(t, 100, idx, 2)
}

func TestVOCRisesWhenRawDrops(t *testing.T) {
	a := New(VOC, 1)
	base := feed(a, 30000, 3600)
	// the MOX signal falls as VOC concentration rises
	idx := feed(a, 28000, 120)
	assert.Greater(t, idx, base+20)
	assert.LessOrEqual(t, idx, int32(500))
}

func TestNOxSettlesAtBaseline(t *testing.T) {
	a := New(NOx, 1)
	require.Equal(t, NOx, a.Kind())
	idx := feed(a, 15000, 3600)
	assert.Equal(t, int32(1), idx)
}

func TestLongerInterval(t *testing.T) {
	a := New(VOC, 60)
	assert.Equal(t, int32(0), a.Process(30000))
	idx := feed(a, 30000, 120)
	assert.InDelta(t, 100, idx, 5)
}

func TestReset(t *testing.T) {
	a := New(VOC, 1)
	feed(a, 30000, 100)
	a.Reset()
	assert.False(t, a.Ready())
	assert.Equal(t, int32(0), a.Process(30000))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "voc", VOC.String())
	assert.Equal(t, "nox", NOx.String())
}
