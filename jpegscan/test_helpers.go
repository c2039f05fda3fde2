package jpegscan

import "fmt"

// Standard DC luminance Huffman table (Annex K)
var stdDCCounts = [16]uint8{0, 1, 5, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0}

var stdDCValues = []uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}

// Standard AC luminance Huffman table (Annex K)
var stdACCounts = [16]uint8{0, 2, 1, 3, 3, 2, 4, 3, 5, 5, 4, 4, 0, 0, 1, 0x7D}

var stdACValues = []uint8{
	0x01, 0x02, 0x03, 0x00, 0x04, 0x11, 0x05, 0x12,
	0x21, 0x31, 0x41, 0x06, 0x13, 0x51, 0x61, 0x07,
	0x22, 0x71, 0x14, 0x32, 0x81, 0x91, 0xA1, 0x08,
	0x23, 0x42, 0xB1, 0xC1, 0x15, 0x52, 0xD1, 0xF0,
	0x24, 0x33, 0x62, 0x72, 0x82, 0x09, 0x0A, 0x16,
	0x17, 0x18, 0x19, 0x1A, 0x25, 0x26, 0x27, 0x28,
	0x29, 0x2A, 0x34, 0x35, 0x36, 0x37, 0x38, 0x39,
	0x3A, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48, 0x49,
	0x4A, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58, 0x59,
	0x5A, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68, 0x69,
	0x6A, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78, 0x79,
	0x7A, 0x83, 0x84, 0x85, 0x86, 0x87, 0x88, 0x89,
	0x8A, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97, 0x98,
	0x99, 0x9A, 0xA2, 0xA3, 0xA4, 0xA5, 0xA6, 0xA7,
	0xA8, 0xA9, 0xAA, 0xB2, 0xB3, 0xB4, 0xB5, 0xB6,
	0xB7, 0xB8, 0xB9, 0xBA, 0xC2, 0xC3, 0xC4, 0xC5,
	0xC6, 0xC7, 0xC8, 0xC9, 0xCA, 0xD2, 0xD3, 0xD4,
	0xD5, 0xD6, 0xD7, 0xD8, 0xD9, 0xDA, 0xE1, 0xE2,
	0xE3, 0xE4, 0xE5, 0xE6, 0xE7, 0xE8, 0xE9, 0xEA,
	0xF1, 0xF2, 0xF3, 0xF4, 0xF5, 0xF6, 0xF7, 0xF8,
	0xF9, 0xFA,
}

// TestImage describes a synthetic baseline JPEG for tests. Luminance
// blocks are given in zig-zag order per block, raster order across
// blocks; chroma blocks (when Gray is false) are encoded as all zero.
type TestImage struct {
	Width   int
	Height  int
	Quality int
	LumaH   int
	LumaV   int
	Gray    bool
	Blocks  [][64]int16
}

// BlockDims returns the luminance block-map dimensions of the image
func (ti *TestImage) BlockDims() (bx, by int) {
	if ti.LumaH == 1 {
		bx = ceilDiv(ti.Width, 8)
	} else {
		bx = 2 * ceilDiv(ti.Width, 16)
	}
	if ti.LumaV == 1 {
		by = ceilDiv(ti.Height, 8)
	} else {
		by = 2 * ceilDiv(ti.Height, 16)
	}
	return bx, by
}

// Encode produces a complete SOI..EOI baseline JPEG with the standard
// Annex K Huffman tables and a quantization table scaled to Quality.
func (ti *TestImage) Encode() ([]byte, error) {
	bx, by := ti.BlockDims()
	if len(ti.Blocks) != bx*by {
		return nil, fmt.Errorf("need %d luminance blocks, got %d", bx*by, len(ti.Blocks))
	}

	out := []byte{0xFF, MarkerSOI}

	// DQT
	qt := ScaledLuminanceQuant(ti.Quality)
	out = append(out, 0xFF, MarkerDQT, 0x00, 67, 0x00)
	for _, v := range qt {
		out = append(out, byte(v))
	}

	// DHT: DC and AC tables, both destination 0
	out = appendDHT(out, 0x00, stdDCCounts, stdDCValues)
	out = appendDHT(out, 0x10, stdACCounts, stdACValues)

	// SOF0
	nf := 3
	if ti.Gray {
		nf = 1
	}
	out = append(out, 0xFF, MarkerSOF0,
		byte((8+3*nf)>>8), byte(8+3*nf), 8,
		byte(ti.Height>>8), byte(ti.Height),
		byte(ti.Width>>8), byte(ti.Width))
	out = append(out, byte(nf))
	out = append(out, 1, byte(ti.LumaH<<4|ti.LumaV), 0)
	if !ti.Gray {
		out = append(out, 2, 0x11, 0, 3, 0x11, 0)
	}

	// SOS
	out = append(out, 0xFF, MarkerSOS, byte((6+2*nf)>>8), byte(6+2*nf), byte(nf))
	for c := 1; c <= nf; c++ {
		out = append(out, byte(c), 0x00)
	}
	out = append(out, 0, 63, 0)

	// Entropy-coded segment
	dcEnc, err := newHuffEncoder(stdDCCounts, stdDCValues)
	if err != nil {
		return nil, err
	}
	acEnc, err := newHuffEncoder(stdACCounts, stdACValues)
	if err != nil {
		return nil, err
	}

	w := &stuffingBitWriter{}
	mcuW, mcuH := bx/ti.LumaH, by/ti.LumaV
	numSub := ti.LumaH * ti.LumaV
	var sub [4]int
	switch {
	case ti.LumaH == 1 && ti.LumaV == 1:
		sub = [4]int{0}
	case ti.LumaH == 2 && ti.LumaV == 1:
		sub = [4]int{0, 1}
	case ti.LumaH == 1 && ti.LumaV == 2:
		sub = [4]int{0, bx}
	default:
		sub = [4]int{0, 1, bx, bx + 1}
	}

	var pred [3]int16
	var zero [64]int16
	for my := 0; my < mcuH; my++ {
		for mx := 0; mx < mcuW; mx++ {
			for sb := 0; sb < numSub; sb++ {
				if err := encodeBlock(w, dcEnc, acEnc, &pred[0], &ti.Blocks[sub[sb]]); err != nil {
					return nil, err
				}
			}
			if !ti.Gray {
				for c := 1; c < 3; c++ {
					if err := encodeBlock(w, dcEnc, acEnc, &pred[c], &zero); err != nil {
						return nil, err
					}
				}
			}
			for sb := 0; sb < numSub; sb++ {
				sub[sb] += ti.LumaH
			}
		}
		if ti.LumaV == 2 {
			for sb := 0; sb < numSub; sb++ {
				sub[sb] += bx
			}
		}
	}
	out = append(out, w.finish()...)

	out = append(out, 0xFF, MarkerEOI)
	return out, nil
}

// appendDHT appends a DHT segment holding one table
func appendDHT(out []byte, tcth byte, counts [16]uint8, values []uint8) []byte {
	segLen := 2 + 1 + 16 + len(values)
	out = append(out, 0xFF, MarkerDHT, byte(segLen>>8), byte(segLen), tcth)
	out = append(out, counts[:]...)
	return append(out, values...)
}

// huffEncoder maps a symbol to its canonical code
type huffEncoder struct {
	code [256]uint32
	size [256]uint8
}

func newHuffEncoder(counts [16]uint8, values []uint8) (*huffEncoder, error) {
	e := &huffEncoder{}
	code := uint32(0)
	idx := 0
	for length := uint8(1); length <= 16; length++ {
		for i := uint8(0); i < counts[length-1]; i++ {
			if idx >= len(values) {
				return nil, fmt.Errorf("huffman values shorter than counts")
			}
			sym := values[idx]
			e.code[sym] = code
			e.size[sym] = length
			code++
			idx++
		}
		code <<= 1
	}
	return e, nil
}

func (e *huffEncoder) emit(w *stuffingBitWriter, sym uint8) error {
	if e.size[sym] == 0 {
		return fmt.Errorf("symbol 0x%02X has no huffman code", sym)
	}
	w.write(uint16(e.code[sym]), uint(e.size[sym]))
	return nil
}

// stuffingBitWriter accumulates MSB-first bits, inserting a 0x00 after
// every 0xFF output byte.
type stuffingBitWriter struct {
	out  []byte
	acc  uint32
	nacc uint
}

func (w *stuffingBitWriter) write(v uint16, n uint) {
	w.acc = w.acc<<n | uint32(v)&(1<<n-1)
	w.nacc += n
	for w.nacc >= 8 {
		b := byte(w.acc >> (w.nacc - 8))
		w.out = append(w.out, b)
		if b == 0xFF {
			w.out = append(w.out, 0x00)
		}
		w.nacc -= 8
	}
}

// finish pads the final partial byte with 1-bits and returns the segment
func (w *stuffingBitWriter) finish() []byte {
	if w.nacc > 0 {
		w.write(1<<(8-w.nacc)-1, 8-w.nacc)
	}
	return w.out
}

// encodeBlock writes one 8x8 block (zig-zag order) with DC prediction and
// JPEG category coding.
func encodeBlock(w *stuffingBitWriter, dcEnc, acEnc *huffEncoder, pred *int16, block *[64]int16) error {
	diff := block[0] - *pred
	*pred = block[0]
	size, bits := categorize(diff)
	if err := dcEnc.emit(w, size); err != nil {
		return err
	}
	if size > 0 {
		w.write(bits, uint(size))
	}

	run := 0
	for k := 1; k < 64; k++ {
		if block[k] == 0 {
			run++
			continue
		}
		for run >= 16 {
			if err := acEnc.emit(w, 0xF0); err != nil {
				return err
			}
			run -= 16
		}
		size, bits := categorize(block[k])
		if err := acEnc.emit(w, uint8(run<<4)|size); err != nil {
			return err
		}
		w.write(bits, uint(size))
		run = 0
	}
	if run > 0 {
		if err := acEnc.emit(w, 0x00); err != nil {
			return err
		}
	}
	return nil
}

// categorize returns the JPEG magnitude category and the category-coded
// bits of v.
func categorize(v int16) (uint8, uint16) {
	if v == 0 {
		return 0, 0
	}
	abs := v
	if abs < 0 {
		abs = -abs
	}
	size := uint8(0)
	for m := abs; m > 0; m >>= 1 {
		size++
	}
	if v < 0 {
		return size, uint16(v + 1<<size - 1)
	}
	return size, uint16(v)
}
