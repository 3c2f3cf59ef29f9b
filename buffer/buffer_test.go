package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddItem(t *testing.T) {
	buf := NewBuffer(4)

	a, mn, mx, s := buf.GetAverageMinMaxSum()
	assert.Equal(t, Average(0), a)
	assert.Equal(t, Sum(0), s)

	buf.AddItem(2)
	buf.AddItem(4)

	a, mn, mx, s = buf.GetAverageMinMaxSum()
	assert.Equal(t, Average(3), a)
	assert.Equal(t, Minimum(2), mn)
	assert.Equal(t, Maximum(4), mx)
	assert.Equal(t, Sum(6), s)
	assert.Equal(t, 2, buf.Count())

	buf.AddItem(6)
	buf.AddItem(8)
	buf.AddItem(10)

	a, mn, mx, s = buf.GetAverageMinMaxSum()
	assert.Equal(t, Average(7), a)
	assert.Equal(t, Minimum(4), mn)
	assert.Equal(t, Maximum(10), mx)
	assert.Equal(t, Sum(28), s)
	assert.Equal(t, 4, buf.Count())
	assert.Equal(t, 10.0, buf.GetLast())

	s, mn, mx = buf.SumMinMaxLast(3)
	assert.Equal(t, Minimum(6), mn)
	assert.Equal(t, Maximum(10), mx)
	assert.Equal(t, Sum(24), s)
}

func TestNegativeSamples(t *testing.T) {
	buf := NewBuffer(3)
	buf.AddItem(-3)
	buf.AddItem(-1)

	_, mn, mx, _ := buf.GetAverageMinMaxSum()
	assert.Equal(t, Minimum(-3), mn)
	assert.Equal(t, Maximum(-1), mx)
}

func TestAverageLast(t *testing.T) {
	buf := NewBuffer(10)

	buf.AddItem(4)
	buf.AddItem(4)
	buf.AddItem(4)
	buf.AddItem(4)
	buf.AddItem(4)
	buf.AddItem(2)
	buf.AddItem(2)
	buf.AddItem(2)
	buf.AddItem(2)
	buf.AddItem(2)

	a := buf.AverageLast(2)
	assert.Equal(t, Average(2), a)
	a = buf.AverageLast(6)
	assert.InDelta(t, 2.3333333333333335, float64(a), 1e-12)

	buf.AddItem(2)
	buf.AddItem(2)
	buf.AddItem(2)
	buf.AddItem(2)

	a = buf.AverageLast(9)
	assert.Equal(t, Average(2), a)

	a = buf.AverageLast(10)
	assert.InDelta(t, 2.2, float64(a), 1e-12)

	// more than held
	a = buf.AverageLast(50)
	assert.InDelta(t, 2.2, float64(a), 1e-12)
}

func TestMovingAverageWindow(t *testing.T) {
	samples := []float64{100, 200, 300, 50, 75, 1000, 0, 42, 7, 9}

	for window := 1; window <= 6; window++ {
		buf := NewBuffer(window)
		for i, v := range samples {
			buf.AddItem(v)

			seen := samples[:i+1]
			if len(seen) > window {
				seen = seen[len(seen)-window:]
			}
			want := 0.0
			for _, x := range seen {
				want += x
			}
			want /= float64(len(seen))

			assert.InDelta(t, want, float64(buf.Average()), 1e-9, "window %d after %d samples", window, i+1)
		}
	}
}

func TestZeroSizeBuffer(t *testing.T) {
	buf := NewBuffer(0)
	buf.AddItem(5)
	buf.AddItem(6)
	assert.Equal(t, 1, buf.GetSize())
	assert.Equal(t, Average(6), buf.Average())
}
