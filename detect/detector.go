package detect

// Listener signatures. Any of them may be left unset. Callbacks fire
// synchronously, in fixed order, from within ProcessFrame; they must not
// re-enter the detector and should copy out any slice they keep.
type (
	// ImageListener receives the frame that was just compared, or nil
	// when the comparison failed. org is the host-supplied companion blob.
	ImageListener func(img, org []byte)

	// DetectInfoListener receives the per-block change map together with
	// the internal threshold that was applied to it.
	DetectInfoListener func(img []byte, changeMap []int, threshold int, org []byte)

	// AreaListener receives the detected-area percentage, 0..100
	AreaListener func(pct float64)

	// AutoSensitivityListener receives a calibrated user-facing
	// sensitivity in [1,256], or 0 when calibration failed.
	AutoSensitivityListener func(sensitivity int)
)

// Detector binds the scanner, frame store, difference engine and
// sensitivity calibration into the per-frame pipeline. One Detector
// serves one stream; instances share no state. Not safe for concurrent
// use: each frame is processed to completion on the caller's goroutine.
type Detector struct {
	store *FrameStore
	auto  *AutoSensitivity

	// threshold is the internal sensitivity in [1,256]; lower detects more
	threshold int

	// areaThreshold is a reporting threshold carried for the host, 0..100
	areaThreshold float64

	OnImage           ImageListener
	OnDetectInfo      DetectInfoListener
	OnArea            AreaListener
	OnAutoSensitivity AutoSensitivityListener
}

// NewDetector creates a detector at the least sensitive setting
func NewDetector() *Detector {
	return &Detector{
		store:         NewFrameStore(),
		auto:          NewAutoSensitivity(),
		threshold:     256,
		areaThreshold: 10.0,
	}
}

// SetSensitivity sets the user-facing sensitivity, clamped to [1,256].
// Higher user values detect more; internally the scale is inverted.
func (d *Detector) SetSensitivity(v int) {
	d.threshold = 257 - clampInt(v, 1, 256)
}

// Sensitivity returns the user-facing sensitivity in [1,256]
func (d *Detector) Sensitivity() int {
	return 257 - d.threshold
}

// SetDetectedAreaThreshold stores the reporting threshold, clamped to
// [0,100]. The detector itself does not act on it.
func (d *Detector) SetDetectedAreaThreshold(pct float64) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	d.areaThreshold = pct
}

// DetectedAreaThreshold returns the stored reporting threshold
func (d *Detector) DetectedAreaThreshold() float64 {
	return d.areaThreshold
}

// StartAutoSensitivity opens a calibration window. Returns false when one
// is already running.
func (d *Detector) StartAutoSensitivity() bool {
	return d.auto.Start()
}

// ProcessFrame runs one JPEG through the pipeline and fires the
// listeners. org is carried to the listeners untouched.
func (d *Detector) ProcessFrame(jpeg, org []byte) {
	d.store.Write(jpeg)

	cur, curOK := d.store.Current()
	prev, prevOK := d.store.Previous()
	result, ok := diffFrames(cur, prev, curOK, prevOK, d.store.ChangeMap(), d.threshold)

	area := 0.0
	var img []byte
	if ok {
		img = jpeg
		area = 100.0 * float64(result.BlockCount) / float64(len(d.store.ChangeMap()))
	}

	if d.OnImage != nil {
		if ok {
			d.OnImage(jpeg, org)
		} else {
			d.OnImage(nil, nil)
		}
	}
	if d.OnDetectInfo != nil {
		d.OnDetectInfo(img, d.store.ChangeMap(), d.threshold, org)
	}
	if d.OnArea != nil {
		d.OnArea(area)
	}

	if ok {
		d.auto.SetMax(result.MaxDiff)
		status, sensitivity := d.auto.Auto()
		switch status {
		case AutoSuccess:
			if d.OnAutoSensitivity != nil {
				d.OnAutoSensitivity(257 - sensitivity)
			}
		case AutoError:
			if d.OnAutoSensitivity != nil {
				d.OnAutoSensitivity(0)
			}
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
