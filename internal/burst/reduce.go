package burst

import (
	"math"
	"slices"
)

// Reduce folds a burst of equally sized frames into per-pixel statistics.
// Median, min and max keep the input's integer type; the median of an even
// count is the truncated mean of the two middle values. Std is computed on the
// decoded values and re-encoded: std((raw-Offset)/Scale)*Scale + Offset.
func Reduce(frames []Frame) Stats {
	if len(frames) == 0 {
		return Stats{}
	}

	pixels := len(frames[0].Pix)
	n := len(frames)
	out := Stats{
		Median: make([]uint16, pixels),
		Min:    make([]uint16, pixels),
		Max:    make([]uint16, pixels),
		Std:    make([]uint16, pixels),
	}

	column := make([]uint16, n)
	for p := 0; p < pixels; p++ {
		for i := range frames {
			column[i] = frames[i].Pix[p]
		}
		slices.Sort(column)

		out.Min[p] = column[0]
		out.Max[p] = column[n-1]
		out.Median[p] = median(column)
		out.Std[p] = encodedStd(column)
	}

	return out
}

// median expects sorted input.
func median(sorted []uint16) uint16 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}

	return uint16((uint32(sorted[n/2-1]) + uint32(sorted[n/2])) / 2)
}

func encodedStd(values []uint16) uint16 {
	n := float64(len(values))

	var sum float64
	for _, v := range values {
		sum += decode(v)
	}
	mean := sum / n

	var sq float64
	for _, v := range values {
		d := decode(v) - mean
		sq += d * d
	}

	return toUint16(math.Sqrt(sq/n)*Scale + Offset)
}

func decode(raw uint16) float64 {
	return (float64(raw) - Offset) / Scale
}

// Celsius converts an encoded sample to degrees Celsius.
func Celsius(raw uint16) float64 {
	return decode(raw)
}

// toUint16 truncates toward zero and saturates at the type bounds.
func toUint16(v float64) uint16 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	}

	return uint16(v)
}
