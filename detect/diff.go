package detect

import "github.com/turboshun/crowd-detection/jpegscan"

// DiffResult carries the outcome of one interframe comparison
type DiffResult struct {
	// BlockCount is the number of blocks whose difference met the threshold
	BlockCount int

	// MaxDiff is the largest per-block difference, -1 when no block was compared
	MaxDiff int
}

// qCorrection returns the quality-dependent scaling of raw coefficient
// difference sums. High-quality tables quantize lightly, so raw sums grow
// and must be knocked back down before thresholding.
func qCorrection(qFactor int) (shift uint, adjust int) {
	switch {
	case qFactor <= 68:
		return 0, 1
	case qFactor < 97:
		return 5, 100 - qFactor
	default:
		return 7, 112 - qFactor
	}
}

// diffFrames fills changeMap with the per-block absolute coefficient
// difference of cur against prev, corrected for the Q factor and clamped
// to [0,255]. threshold is the internal sensitivity in [1,256]. Returns
// false, clearing the map, when the pair is not comparable.
func diffFrames(cur, prev *jpegscan.Frame, curOK, prevOK bool, changeMap []int, threshold int) (DiffResult, bool) {
	for i := range changeMap {
		changeMap[i] = 0
	}
	result := DiffResult{MaxDiff: -1}

	if !curOK || !prevOK {
		return result, false
	}
	if cur.BlockNumX == 0 || cur.BlockNumY == 0 {
		return result, false
	}
	if cur.BlockNumX != prev.BlockNumX || cur.BlockNumY != prev.BlockNumY {
		return result, false
	}
	if cur.QFactor != prev.QFactor {
		return result, false
	}
	if changeMap == nil || len(changeMap) != cur.BlockCount() {
		return result, false
	}
	if threshold <= 0 {
		return result, false
	}

	shift, adjust := qCorrection(cur.QFactor)

	for b := 0; b < len(changeMap); b++ {
		c := cur.Coeffs[b*64 : b*64+64]
		p := prev.Coeffs[b*64 : b*64+64]
		diff := 0
		for k := 0; k < 64; k++ {
			d := int(c[k]) - int(p[k])
			if d < 0 {
				d = -d
			}
			diff += d
		}

		diff = diff * adjust >> shift
		if diff > 255 {
			diff = 255
		}
		changeMap[b] = diff

		if diff >= threshold {
			result.BlockCount++
		}
		if diff >= result.MaxDiff {
			result.MaxDiff = diff
		}
	}
	return result, true
}
