package jpegscan

// ScaledLuminanceQuant returns the Annex K luminance table scaled to
// quality q, zig-zag order. For q >= 50 each entry is
// max(std*(100-q)/50, 1); below 50 it is min(std*50/q, 255).
func ScaledLuminanceQuant(q int) [64]uint16 {
	var tbl [64]uint16
	for i, std := range StdLuminanceQuant {
		var v int
		if q >= 50 {
			v = int(std) * (100 - q) / 50
			if v < 1 {
				v = 1
			}
		} else {
			v = int(std) * 50 / q
			if v > 255 {
				v = 255
			}
		}
		tbl[i] = uint16(v)
	}
	return tbl
}

// recoverQFactor maps an observed luminance quantization table back to a
// quality factor. It generates the scaled Annex K table for every quality
// in [1,100] and picks the one with the smallest sum of absolute entry
// differences; the first minimum wins, so the result is deterministic and
// exact for tables produced by the scaling formula.
func recoverQFactor(observed [64]uint16) int {
	best := 1
	bestDist := -1
	for q := 1; q <= 100; q++ {
		ref := ScaledLuminanceQuant(q)
		dist := 0
		for i := 0; i < 64; i++ {
			d := int(observed[i]) - int(ref[i])
			if d < 0 {
				d = -d
			}
			dist += d
		}
		if bestDist < 0 || dist < bestDist {
			best = q
			bestDist = dist
			if dist == 0 {
				break
			}
		}
	}
	return best
}
