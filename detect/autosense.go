package detect

import "time"

// AutoStatus is the per-frame outcome of the sensitivity calibration
type AutoStatus int

const (
	// AutoNoStart means no calibration is running
	AutoNoStart AutoStatus = iota

	// AutoContinue means the observation window is still filling
	AutoContinue

	// AutoError means the window expired before enough samples arrived
	AutoError

	// AutoSuccess means a sensitivity has been estimated
	AutoSuccess
)

const (
	// autoTopK is the rank window size
	autoTopK = 5

	// autoWaitFirst is the minimum observation time before success
	autoWaitFirst = 2000 * time.Millisecond

	// autoWaitLimit is the deadline for collecting autoTopK samples
	autoWaitLimit = 10000 * time.Millisecond

	// autoOffset is added to the trimmed average to sit above noise
	autoOffset = 5
)

// AutoSensitivity learns a detection threshold from the per-frame maximum
// block differences observed during a calibration window. It retains up to
// autoTopK maxima in descending order (SetMax describes which ones are
// kept) and recommends a trimmed average of them.
type AutoSensitivity struct {
	running  bool
	maxCount int
	topK     [autoTopK]int
	start    time.Time

	// now is the monotonic clock, replaceable in tests
	now func() time.Time
}

// NewAutoSensitivity creates a stopped estimator
func NewAutoSensitivity() *AutoSensitivity {
	return &AutoSensitivity{now: time.Now}
}

// Start begins a calibration window. Returns false, changing nothing,
// when a window is already running.
func (a *AutoSensitivity) Start() bool {
	if a.running {
		return false
	}
	a.maxCount = 0
	for i := range a.topK {
		a.topK[i] = -1
	}
	a.start = a.now()
	a.running = true
	return true
}

// Running reports whether a calibration window is open
func (a *AutoSensitivity) Running() bool {
	return a.running
}

// SetMax offers a frame's maximum block difference. The sample is kept
// when it beats the smallest retained value. Once the window already
// holds autoTopK samples, an accepted sample evicts the current maximum,
// which continuously sheds the outlier the trimmed average would drop
// anyway. Returns true only when the window is full and the minimum
// observation time has passed.
func (a *AutoSensitivity) SetMax(m int) bool {
	if !a.running || m < 0 || m <= a.topK[autoTopK-1] {
		return false
	}

	if a.maxCount < autoTopK {
		a.maxCount++
	} else {
		copy(a.topK[:], a.topK[1:])
	}
	a.insert(m)

	return a.maxCount >= autoTopK && a.now().Sub(a.start) > autoWaitFirst
}

// insert places m into topK keeping descending order, dropping the tail
func (a *AutoSensitivity) insert(m int) {
	i := 0
	for i < autoTopK && a.topK[i] >= m {
		i++
	}
	if i >= autoTopK {
		return
	}
	copy(a.topK[i+1:], a.topK[i:autoTopK-1])
	a.topK[i] = m
}

// Auto evaluates the window once per frame. On AutoSuccess the returned
// sensitivity is the internal threshold in [1,256] and the window is
// closed; on AutoError the window is closed and 0 is returned; otherwise
// the caller keeps feeding frames.
func (a *AutoSensitivity) Auto() (AutoStatus, int) {
	if !a.running {
		return AutoNoStart, 0
	}

	elapsed := a.now().Sub(a.start)
	if elapsed < autoWaitFirst || (elapsed < autoWaitLimit && a.maxCount < autoTopK) {
		return AutoContinue, 0
	}
	if a.maxCount < autoTopK {
		a.running = false
		detectLogger.Debugf(nil, "auto sensitivity timed out with %d samples", a.maxCount)
		return AutoError, 0
	}

	// Drop the retained maximum to reject outliers, average the rest
	sum := 0
	for i := 1; i < autoTopK; i++ {
		sum += a.topK[i]
	}
	sensitivity := sum/(autoTopK-1) + autoOffset
	if sensitivity < 1 {
		sensitivity = 1
	}
	if sensitivity > 256 {
		sensitivity = 256
	}

	a.running = false
	return AutoSuccess, sensitivity
}
