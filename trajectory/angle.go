package trajectory

import "math"

// NearestAngle maps angle a to the equivalent angle in (-pi, pi].
func NearestAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}

	return a - math.Pi
}

// WrapDiff stores a - b in dst and maps components listed in angles to the nearest equivalent angle.
// It returns dst.
func WrapDiff(dst, a, b []float64, angles []int) []float64 {
	if dst == nil {
		dst = make([]float64, len(a))
	}

	for i := range a {
		dst[i] = a[i] - b[i]
	}

	for _, i := range angles {
		if i >= 0 && i < len(dst) {
			dst[i] = NearestAngle(dst[i])
		}
	}

	return dst
}
