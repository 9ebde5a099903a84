package dsp

// binRange clamps [start,end) to [0,n).
// If the resulting interval is empty, it returns (0,0).
func binRange(n, start, end int) (int, int) {
	if n <= 0 {
		return 0, 0
	}
	if start < 0 {
		start = 0
	}
	if end <= 0 || end > n {
		end = n
	}
	if start >= end {
		return 0, 0
	}
	return start, end
}

// PeakInBand returns the maximum power in [start,end) and its bin.
// ok is false if the band is empty.
func PeakInBand(power []float32, start, end int) (peak float32, bin int, ok bool) {
	s, e := binRange(len(power), start, end)
	if s == e {
		return 0, 0, false
	}
	peak = power[s]
	bin = s
	for i := s + 1; i < e; i++ {
		if power[i] > peak {
			peak = power[i]
			bin = i
		}
	}
	return peak, bin, true
}

// NoiseFloor computes the average power over the whole spectrum excluding a
// one-bin guard region around the signal bin, so the estimate is not biased
// by spectral leakage from the peak itself.
func NoiseFloor(power []float32, signalBin int) (float32, bool) {
	if len(power) == 0 {
		return 0, false
	}
	var sum float64
	var count int
	for i, v := range power {
		if i >= signalBin-1 && i <= signalBin+1 {
			continue
		}
		sum += float64(v)
		count++
	}
	if count == 0 {
		return 0, false
	}
	return float32(sum / float64(count)), true
}

// InterpolateParabolic refines a peak location from the power values at the
// peak bin and its two neighbours. The returned offset is the vertex of the
// parabola through the three points, clamped to (-0.5, 0.5).
func InterpolateParabolic(prev, mid, next float32) float32 {
	denom := prev - 2*mid + next
	if denom == 0 {
		return 0
	}
	off := 0.5 * (prev - next) / denom
	if off >= 0.5 {
		off = 0.49999
	}
	if off <= -0.5 {
		off = -0.49999
	}
	return off
}
