package jpegscan

import (
	"bytes"
	"testing"
)

// grayImage builds a single-component test image with the given blocks
func grayImage(t *testing.T, w, h, q int, blocks [][64]int16) []byte {
	t.Helper()
	ti := &TestImage{Width: w, Height: h, Quality: q, LumaH: 1, LumaV: 1, Gray: true, Blocks: blocks}
	data, err := ti.Encode()
	if err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return data
}

// TestParseGrayscale verifies geometry, Q factor and coefficient recovery
func TestParseGrayscale(t *testing.T) {
	blocks := make([][64]int16, 4)
	blocks[0][0] = 10
	blocks[1][0] = -3
	blocks[1][5] = 7
	blocks[2][63] = -1
	blocks[3][0] = 120

	data := grayImage(t, 16, 16, 50, blocks)

	frame, err := NewScanner().Parse(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if frame.Width != 16 || frame.Height != 16 {
		t.Errorf("got %dx%d, want 16x16", frame.Width, frame.Height)
	}
	if frame.BlockNumX != 2 || frame.BlockNumY != 2 {
		t.Errorf("got %dx%d blocks, want 2x2", frame.BlockNumX, frame.BlockNumY)
	}
	if frame.QFactor != 50 {
		t.Errorf("got Q factor %d, want 50", frame.QFactor)
	}
	if len(frame.Coeffs) != 4*64 {
		t.Fatalf("got %d coefficients, want %d", len(frame.Coeffs), 4*64)
	}

	for i, want := range blocks {
		got := frame.Block(i)
		for k := 0; k < 64; k++ {
			if got[k] != want[k] {
				t.Errorf("block %d coefficient %d: got %d, want %d", i, k, got[k], want[k])
			}
		}
	}
}

// TestParseIdempotent verifies parsing the same bytes twice yields
// identical coefficients.
func TestParseIdempotent(t *testing.T) {
	blocks := make([][64]int16, 4)
	blocks[0][0] = 55
	blocks[2][17] = -9
	data := grayImage(t, 16, 16, 75, blocks)

	s := NewScanner()
	a, err := s.Parse(data)
	if err != nil {
		t.Fatalf("first parse failed: %v", err)
	}
	b, err := s.Parse(data)
	if err != nil {
		t.Fatalf("second parse failed: %v", err)
	}

	if a.QFactor != b.QFactor {
		t.Errorf("Q factors differ: %d vs %d", a.QFactor, b.QFactor)
	}
	if len(a.Coeffs) != len(b.Coeffs) {
		t.Fatalf("coefficient counts differ: %d vs %d", len(a.Coeffs), len(b.Coeffs))
	}
	for i := range a.Coeffs {
		if a.Coeffs[i] != b.Coeffs[i] {
			t.Fatalf("coefficient %d differs: %d vs %d", i, a.Coeffs[i], b.Coeffs[i])
		}
	}
}

// TestParseSamplings exercises the MCU geometry for all supported
// luminance sampling ratios.
func TestParseSamplings(t *testing.T) {
	testCases := []struct {
		name   string
		h, v   int
		w, ht  int
		wantBX int
		wantBY int
	}{
		{"1x1", 1, 1, 32, 32, 4, 4},
		{"2x1", 2, 1, 32, 32, 4, 4},
		{"1x2", 1, 2, 32, 32, 4, 4},
		{"2x2", 2, 2, 32, 32, 4, 4},
		{"2x2 wide", 2, 2, 48, 32, 6, 4},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			blocks := make([][64]int16, tc.wantBX*tc.wantBY)
			for i := range blocks {
				// A distinct DC per block pins down placement
				blocks[i][0] = int16(3*i - 20)
				blocks[i][1] = int16(i % 5)
			}
			ti := &TestImage{
				Width: tc.w, Height: tc.ht, Quality: 50,
				LumaH: tc.h, LumaV: tc.v, Blocks: blocks,
			}
			data, err := ti.Encode()
			if err != nil {
				t.Fatalf("failed to encode: %v", err)
			}

			frame, err := NewScanner().Parse(data)
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if frame.BlockNumX != tc.wantBX || frame.BlockNumY != tc.wantBY {
				t.Fatalf("got %dx%d blocks, want %dx%d",
					frame.BlockNumX, frame.BlockNumY, tc.wantBX, tc.wantBY)
			}
			for i := range blocks {
				got := frame.Block(i)
				if got[0] != blocks[i][0] || got[1] != blocks[i][1] {
					t.Errorf("block %d: got DC %d/%d, want %d/%d",
						i, got[0], got[1], blocks[i][0], blocks[i][1])
				}
			}
		})
	}
}

// TestQFactorRecovery verifies the DQT-to-quality inversion round-trips
// for tables produced by the scaling formula.
func TestQFactorRecovery(t *testing.T) {
	for _, q := range []int{1, 10, 25, 50, 68, 69, 80, 96, 97, 100} {
		blocks := make([][64]int16, 1)
		ti := &TestImage{Width: 8, Height: 8, Quality: q, LumaH: 1, LumaV: 1, Gray: true, Blocks: blocks}
		data, err := ti.Encode()
		if err != nil {
			t.Fatalf("failed to encode Q%d: %v", q, err)
		}
		frame, err := NewScanner().Parse(data)
		if err != nil {
			t.Fatalf("parse of Q%d failed: %v", q, err)
		}
		if frame.QFactor != q {
			t.Errorf("Q%d: recovered %d", q, frame.QFactor)
		}
	}
}

// TestByteStuffingRoundTrip verifies an entropy segment containing a
// stuffed 0xFF00 decodes to the original coefficients.
func TestByteStuffingRoundTrip(t *testing.T) {
	blocks := make([][64]int16, 1)
	// DC category 11 emits the code 111111110 followed by eleven 1-bits;
	// the leading eight 1-bits force an 0xFF into the entropy segment
	blocks[0][0] = 2047

	data := grayImage(t, 8, 8, 50, blocks)
	if !bytes.Contains(data, []byte{0xFF, 0x00}) {
		t.Fatal("test image does not exercise byte stuffing")
	}

	frame, err := NewScanner().Parse(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if frame.Coeffs[0] != 2047 {
		t.Errorf("got DC %d, want 2047", frame.Coeffs[0])
	}
}

// TestColorImageDiscardsChroma verifies chroma blocks are consumed but
// only luminance coefficients are stored.
func TestColorImageDiscardsChroma(t *testing.T) {
	blocks := make([][64]int16, 4)
	for i := range blocks {
		blocks[i][0] = int16(10 * (i + 1))
	}
	ti := &TestImage{Width: 16, Height: 16, Quality: 50, LumaH: 2, LumaV: 2, Blocks: blocks}
	data, err := ti.Encode()
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}

	frame, err := NewScanner().Parse(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if frame.BlockCount() != 4 {
		t.Fatalf("got %d blocks, want 4", frame.BlockCount())
	}
	for i := range blocks {
		if frame.Block(i)[0] != blocks[i][0] {
			t.Errorf("block %d: got DC %d, want %d", i, frame.Block(i)[0], blocks[i][0])
		}
	}
}

// TestScanErrors exercises the marker-level conformance failures
func TestScanErrors(t *testing.T) {
	valid := grayImage(t, 16, 16, 50, make([][64]int16, 4))

	mutate := func(f func([]byte) []byte) []byte {
		c := append([]byte(nil), valid...)
		return f(c)
	}

	testCases := []struct {
		name string
		data []byte
		kind ErrorKind
	}{
		{
			"missing SOI",
			mutate(func(d []byte) []byte { d[1] = 0x00; return d }),
			ErrNoSOIMarker,
		},
		{
			"empty input",
			nil,
			ErrNoSOIMarker,
		},
		{
			"progressive SOF",
			mutate(func(d []byte) []byte {
				i := bytes.Index(d, []byte{0xFF, MarkerSOF0})
				d[i+1] = 0xC2
				return d
			}),
			ErrUnsupported,
		},
		{
			"restart marker before SOS",
			mutate(func(d []byte) []byte {
				i := bytes.Index(d, []byte{0xFF, MarkerSOF0})
				d[i+1] = MarkerRST0
				return d
			}),
			ErrUnexpectedMarker,
		},
		{
			"zero height",
			mutate(func(d []byte) []byte {
				i := bytes.Index(d, []byte{0xFF, MarkerSOF0})
				d[i+5] = 0
				d[i+6] = 0
				return d
			}),
			ErrUnsupported,
		},
		{
			"zero width",
			mutate(func(d []byte) []byte {
				i := bytes.Index(d, []byte{0xFF, MarkerSOF0})
				d[i+7] = 0
				d[i+8] = 0
				return d
			}),
			ErrUnexpectedData,
		},
		{
			"oversized width",
			mutate(func(d []byte) []byte {
				i := bytes.Index(d, []byte{0xFF, MarkerSOF0})
				d[i+7] = 0x80
				d[i+8] = 0x00
				return d
			}),
			ErrUnexpectedData,
		},
		{
			"nonzero restart interval",
			mutate(func(d []byte) []byte {
				i := bytes.Index(d, []byte{0xFF, MarkerSOF0})
				dri := []byte{0xFF, MarkerDRI, 0x00, 0x04, 0x00, 0x08}
				out := append([]byte(nil), d[:i]...)
				out = append(out, dri...)
				return append(out, d[i:]...)
			}),
			ErrUnsupported,
		},
		{
			"missing EOI",
			mutate(func(d []byte) []byte { return d[:len(d)-2] }),
			ErrNoEOIMarker,
		},
		{
			"truncated scan",
			mutate(func(d []byte) []byte {
				i := bytes.Index(d, []byte{0xFF, MarkerSOS})
				return d[:i+8]
			}),
			ErrShortOfData,
		},
	}

	s := NewScanner()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Parse(tc.data)
			if err == nil {
				t.Fatal("expected parse failure")
			}
			if kind := ErrorKindOf(err); kind != tc.kind {
				t.Errorf("got kind %s, want %s (%v)", kind, tc.kind, err)
			}
		})
	}
}

// TestMissingTables verifies SOS without its prerequisites fails
func TestMissingTables(t *testing.T) {
	valid := grayImage(t, 16, 16, 50, make([][64]int16, 4))

	// Excise the DQT segment entirely
	i := bytes.Index(valid, []byte{0xFF, MarkerDQT})
	noDQT := append([]byte(nil), valid[:i]...)
	noDQT = append(noDQT, valid[i+69:]...)

	_, err := NewScanner().Parse(noDQT)
	if err == nil {
		t.Fatal("expected parse failure without DQT")
	}
	if kind := ErrorKindOf(err); kind != ErrLackOfMarker {
		t.Errorf("got kind %s, want LackOfMarker", kind)
	}
}
