package buffer

import (
	"math"
	"sync"
)

type Average float64
type Minimum float64
type Maximum float64
type Sum float64

// SampleBuffer is a fixed size ring of samples. Until it has wrapped once
// only the filled slots take part in the statistics.
type SampleBuffer struct {
	position int
	size     int
	count    int
	data     []float64
	lock     sync.Mutex
}

func NewBuffer(size int) *SampleBuffer {
	if size < 1 {
		size = 1
	}
	b := SampleBuffer{}
	b.size = size
	b.data = make([]float64, size)

	return &b
}

func (b *SampleBuffer) AddItem(val float64) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.data[b.position] = val
	b.position += 1
	if b.position == b.size {
		b.position = 0
	}
	if b.count < b.size {
		b.count += 1
	}
}

// Average is the mean of the filled slots, 0 when empty.
func (b *SampleBuffer) Average() Average {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.averageLast(b.count)
}

// AverageLast is the mean of the newest numberOfItems samples, or of all
// filled slots when fewer are held.
func (b *SampleBuffer) AverageLast(numberOfItems int) Average {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.averageLast(numberOfItems)
}

func (b *SampleBuffer) averageLast(numberOfItems int) Average {
	s, _, _, n := b.sumMinMaxLast(numberOfItems)
	if n == 0 {
		return 0
	}
	return Average(float64(s) / float64(n))
}

func (b *SampleBuffer) SumMinMaxLast(numberOfItems int) (Sum, Minimum, Maximum) {
	b.lock.Lock()
	defer b.lock.Unlock()
	s, mn, mx, _ := b.sumMinMaxLast(numberOfItems)
	return s, mn, mx
}

func (b *SampleBuffer) sumMinMaxLast(numberOfItems int) (Sum, Minimum, Maximum, int) {
	if numberOfItems > b.count {
		numberOfItems = b.count
	}
	if numberOfItems <= 0 {
		return 0, 0, 0, 0
	}
	index := b.position - numberOfItems
	if index < 0 {
		// we are at the start of the array, so need to reverse wrap
		index += b.size
	}
	items := numberOfItems
	min := math.MaxFloat64
	max := -math.MaxFloat64
	sum := 0.0
	for numberOfItems > 0 {
		x := b.data[index]
		sum += x
		if x > max {
			max = x
		}
		if x < min {
			min = x
		}
		index += 1
		if index == b.size {
			index = 0
		}
		numberOfItems -= 1
	}
	return Sum(sum), Minimum(min), Maximum(max), items
}

func (b *SampleBuffer) GetAverageMinMaxSum() (Average, Minimum, Maximum, Sum) {
	b.lock.Lock()
	defer b.lock.Unlock()
	s, mn, mx, n := b.sumMinMaxLast(b.count)
	if n == 0 {
		return 0, 0, 0, 0
	}
	return Average(float64(s) / float64(n)), mn, mx, s
}

// Count is the number of filled slots.
func (b *SampleBuffer) Count() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.count
}

func (b *SampleBuffer) GetSize() int {
	return b.size
}

// GetLast returns the newest sample, 0 when empty.
func (b *SampleBuffer) GetLast() float64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.count == 0 {
		return 0
	}
	index := b.position - 1
	if index < 0 {
		index += b.size
	}
	return b.data[index]
}
