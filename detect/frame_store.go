// Package detect implements interframe crowd/motion detection over the
// quantized DCT coefficients of successive JPEG frames.
package detect

import (
	"github.com/dsoprea/go-logging"

	"github.com/turboshun/crowd-detection/jpegscan"
)

var detectLogger = log.NewLogger("crowd.detect")

// FrameStore holds the two most recent coefficient frames with ping-pong
// indexing, plus the shared per-block change map. Frame buffers are
// reused across writes; the change map is allocated once, on the first
// successfully parsed frame, and frames of any other geometry are left
// for the difference step to reject.
type FrameStore struct {
	scanner *jpegscan.Scanner
	frames  [2]jpegscan.Frame
	valid   [2]bool
	cur     int

	changeMap   []int
	sizeChecked bool
	blockNumX   int
	blockNumY   int
}

// NewFrameStore creates an empty FrameStore
func NewFrameStore() *FrameStore {
	return &FrameStore{scanner: jpegscan.NewScanner()}
}

// Write parses a JPEG into the next slot, making it the current frame.
// Returns false when the parse fails; the slot is then marked invalid but
// the toggle has still happened, so the failed frame ages out normally.
func (fs *FrameStore) Write(jpeg []byte) bool {
	fs.cur ^= 1
	err := fs.scanner.ParseInto(jpeg, &fs.frames[fs.cur])
	fs.valid[fs.cur] = err == nil
	if err != nil {
		detectLogger.Debugf(nil, "frame dropped: %s", err)
		return false
	}

	if !fs.sizeChecked {
		fs.blockNumX = fs.frames[fs.cur].BlockNumX
		fs.blockNumY = fs.frames[fs.cur].BlockNumY
		fs.changeMap = make([]int, fs.blockNumX*fs.blockNumY)
		fs.sizeChecked = true
	}
	return true
}

// Current returns the most recently written frame and whether it parsed
func (fs *FrameStore) Current() (*jpegscan.Frame, bool) {
	return &fs.frames[fs.cur], fs.valid[fs.cur]
}

// Previous returns the frame before the current one and whether it parsed
func (fs *FrameStore) Previous() (*jpegscan.Frame, bool) {
	prev := fs.cur ^ 1
	return &fs.frames[prev], fs.valid[prev]
}

// ChangeMap returns the shared per-block difference buffer, nil until the
// first frame has parsed.
func (fs *FrameStore) ChangeMap() []int {
	return fs.changeMap
}
