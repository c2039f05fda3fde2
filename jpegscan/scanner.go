package jpegscan

import (
	"fmt"

	"github.com/dsoprea/go-logging"
)

var scanLogger = log.NewLogger("crowd.jpegscan")

// scanComponent describes one color component declared in SOF0 and
// selected in SOS.
type scanComponent struct {
	id uint8
	h  int
	v  int
	td uint8
	ta uint8
}

// Scanner parses baseline JPEG images and extracts the quantized
// luminance DCT coefficients. A Scanner is used transactionally: supply a
// JPEG, get back a Frame. It is not safe for concurrent use.
type Scanner struct {
	dcTables [2]*HuffmanTable
	acTables [2]*HuffmanTable

	qTable    [64]uint16
	hasQTable bool

	width      int
	height     int
	components int
	comp       [MaxComponents]scanComponent
	hasSOF     bool
}

// NewScanner creates a Scanner
func NewScanner() *Scanner {
	return &Scanner{}
}

// Parse extracts the luminance coefficients from a complete JPEG file
func (s *Scanner) Parse(jpeg []byte) (*Frame, error) {
	frame := &Frame{}
	if err := s.ParseInto(jpeg, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// ParseInto parses a complete JPEG file into frame, reusing its
// coefficient array when large enough.
func (s *Scanner) ParseInto(jpeg []byte, frame *Frame) error {
	s.reset()
	frame.reset()
	if err := s.parse(jpeg, frame); err != nil {
		scanLogger.Debugf(nil, "scan rejected: %s", err)
		frame.reset()
		return err
	}
	return nil
}

func (s *Scanner) reset() {
	s.dcTables = [2]*HuffmanTable{}
	s.acTables = [2]*HuffmanTable{}
	s.hasQTable = false
	s.hasSOF = false
	s.components = 0
}

func (s *Scanner) parse(jpeg []byte, frame *Frame) error {
	if len(jpeg) < 2 || jpeg[0] != 0xFF || jpeg[1] != MarkerSOI {
		return NewScanError(ErrNoSOIMarker, "JPEG must start with 0xFF 0xD8")
	}

	pos := 2
	for {
		if pos >= len(jpeg) {
			return NewScanError(ErrShortOfData, "ran out of data before SOS")
		}
		if jpeg[pos] != 0xFF {
			return NewScanError(ErrLackOfMarker, fmt.Sprintf("expected marker, found 0x%02X", jpeg[pos]))
		}
		// Runs of 0xFF before a marker are fill bytes
		for pos < len(jpeg) && jpeg[pos] == 0xFF {
			pos++
		}
		if pos >= len(jpeg) {
			return NewScanError(ErrShortOfData, "fill bytes run to end of data")
		}
		marker := jpeg[pos]
		pos++

		switch {
		case marker == MarkerSOI || marker == MarkerEOI || marker == MarkerTEM ||
			(marker >= MarkerRST0 && marker <= MarkerRST7):
			return NewScanError(ErrUnexpectedMarker,
				fmt.Sprintf("marker 0x%02X before end of scan", marker))

		case marker == MarkerDHT:
			seg, next, err := segmentData(jpeg, pos)
			if err != nil {
				return err
			}
			if err := s.parseDHT(seg); err != nil {
				return err
			}
			pos = next

		case marker == MarkerDQT:
			seg, next, err := segmentData(jpeg, pos)
			if err != nil {
				return err
			}
			if err := s.parseDQT(seg); err != nil {
				return err
			}
			pos = next

		case marker == MarkerSOF0:
			seg, next, err := segmentData(jpeg, pos)
			if err != nil {
				return err
			}
			if err := s.parseSOF0(seg); err != nil {
				return err
			}
			pos = next

		case marker == MarkerDRI:
			seg, next, err := segmentData(jpeg, pos)
			if err != nil {
				return err
			}
			if err := s.parseDRI(seg); err != nil {
				return err
			}
			pos = next

		case marker == MarkerSOS:
			seg, next, err := segmentData(jpeg, pos)
			if err != nil {
				return err
			}
			if err := s.parseSOS(seg, frame); err != nil {
				return err
			}
			return s.decodeScan(jpeg[next:], frame)

		case marker >= 0xC0 && marker <= 0xCF:
			// SOF1-SOF15 and DAC: anything but baseline Huffman
			return NewScanError(ErrUnsupported,
				fmt.Sprintf("non-baseline frame marker 0x%02X", marker))

		default:
			// APPn, COM and friends: skip by the embedded length
			_, next, err := segmentData(jpeg, pos)
			if err != nil {
				return err
			}
			pos = next
		}
	}
}

// segmentData slices out a length-prefixed marker segment, returning the
// payload (without the length field) and the offset past the segment.
func segmentData(jpeg []byte, pos int) ([]byte, int, error) {
	if pos+2 > len(jpeg) {
		return nil, 0, NewScanError(ErrShortOfData, "truncated segment length")
	}
	segLen := int(jpeg[pos])<<8 | int(jpeg[pos+1])
	if segLen < 2 {
		return nil, 0, NewScanError(ErrBadMarkerSegment, "segment length below 2")
	}
	end := pos + segLen
	if end > len(jpeg) {
		return nil, 0, NewScanError(ErrShortOfData, "segment extends past end of data")
	}
	return jpeg[pos+2 : end], end, nil
}

// parseDHT builds Huffman tables from one or more DHT tuples
func (s *Scanner) parseDHT(seg []byte) error {
	p := 0
	for p < len(seg) {
		tc := seg[p] >> 4
		th := seg[p] & 0x0F
		p++

		if p+16 > len(seg) {
			return NewScanError(ErrBadMarkerSegment, "DHT counts truncated")
		}
		var counts [16]uint8
		total := 0
		for i := 0; i < 16; i++ {
			counts[i] = seg[p+i]
			total += int(counts[i])
		}
		p += 16

		if p+total > len(seg) {
			return NewScanError(ErrBadMarkerSegment, "DHT values truncated")
		}
		table, err := NewHuffmanTable(tc, th, counts, seg[p:p+total])
		if err != nil {
			return err
		}
		p += total

		if tc == 0 {
			s.dcTables[th] = table
		} else {
			s.acTables[th] = table
		}
	}
	return nil
}

// parseDQT records quantization tables. The first table of the image is
// the one the quality factor is recovered from.
func (s *Scanner) parseDQT(seg []byte) error {
	p := 0
	for p < len(seg) {
		pq := seg[p] >> 4
		tq := seg[p] & 0x0F
		p++
		if pq > 1 || tq > 3 {
			return NewScanError(ErrBadMarkerSegment, "DQT precision or destination out of range")
		}

		var tbl [64]uint16
		if pq == 0 {
			if p+64 > len(seg) {
				return NewScanError(ErrBadMarkerSegment, "DQT table truncated")
			}
			for i := 0; i < 64; i++ {
				tbl[i] = uint16(seg[p+i])
			}
			p += 64
		} else {
			if p+128 > len(seg) {
				return NewScanError(ErrBadMarkerSegment, "DQT table truncated")
			}
			for i := 0; i < 64; i++ {
				tbl[i] = uint16(seg[p+i*2])<<8 | uint16(seg[p+i*2+1])
			}
			p += 128
		}

		if !s.hasQTable {
			s.qTable = tbl
			s.hasQTable = true
		}
	}
	return nil
}

// parseSOF0 records frame geometry and per-component sampling factors
func (s *Scanner) parseSOF0(seg []byte) error {
	if s.hasSOF {
		return NewScanError(ErrUnexpectedMarker, "multiple SOF markers")
	}
	if len(seg) < 6 {
		return NewScanError(ErrBadMarkerSegment, "SOF0 segment too short")
	}
	if seg[0] != 8 {
		return NewScanError(ErrUnsupported, fmt.Sprintf("%d bit sample precision", seg[0]))
	}
	height := int(seg[1])<<8 | int(seg[2])
	width := int(seg[3])<<8 | int(seg[4])
	nf := int(seg[5])

	if height <= 0 {
		return NewScanError(ErrUnsupported, "zero image height")
	}
	if width <= 0 {
		return NewScanError(ErrUnexpectedData, "zero image width")
	}
	if width > MaxDimension || height > MaxDimension {
		return NewScanError(ErrUnexpectedData, "image dimension beyond 32767")
	}
	if nf != 1 && nf != 3 {
		return NewScanError(ErrUnsupported, fmt.Sprintf("%d component image", nf))
	}
	if len(seg) < 6+3*nf {
		return NewScanError(ErrBadMarkerSegment, "SOF0 component list truncated")
	}

	for c := 0; c < nf; c++ {
		id := seg[6+3*c]
		hv := seg[6+3*c+1]
		for prev := 0; prev < c; prev++ {
			if s.comp[prev].id == id {
				return NewScanError(ErrUnexpectedData, "duplicate component ID in SOF0")
			}
		}
		s.comp[c] = scanComponent{
			id: id,
			h:  int(hv >> 4),
			v:  int(hv & 0x0F),
		}
	}

	s.width = width
	s.height = height
	s.components = nf
	s.hasSOF = true
	return nil
}

// parseDRI validates the restart interval. Restart-marker streams are not
// handled, so any nonzero interval rejects the image.
func (s *Scanner) parseDRI(seg []byte) error {
	if len(seg) != 2 {
		return NewScanError(ErrBadMarkerSegment, "DRI segment length must be 4")
	}
	if interval := int(seg[0])<<8 | int(seg[1]); interval != 0 {
		return NewScanError(ErrUnsupported,
			fmt.Sprintf("restart interval %d", interval))
	}
	return nil
}

// parseSOS matches scan components against SOF0, validates sampling
// factors and Huffman selectors, and fixes the frame geometry.
func (s *Scanner) parseSOS(seg []byte, frame *Frame) error {
	if !s.hasSOF {
		return NewScanError(ErrLackOfMarker, "SOS without SOF0")
	}
	if !s.hasQTable {
		return NewScanError(ErrLackOfMarker, "SOS without DQT")
	}
	if len(seg) < 1 {
		return NewScanError(ErrBadMarkerSegment, "empty SOS segment")
	}
	ns := int(seg[0])
	if ns != s.components {
		return NewScanError(ErrUnsupported, "scan does not cover all components")
	}
	if len(seg) < 1+2*ns+3 {
		return NewScanError(ErrBadMarkerSegment, "SOS segment too short")
	}

	for i := 0; i < ns; i++ {
		id := seg[1+2*i]
		if id != s.comp[i].id {
			return NewScanError(ErrUnexpectedData, "SOS component ID mismatch")
		}
		td := seg[1+2*i+1] >> 4
		ta := seg[1+2*i+1] & 0x0F
		if td > 1 || ta > 1 {
			return NewScanError(ErrUnexpectedData, "Huffman table selector out of range")
		}
		if s.dcTables[td] == nil || s.acTables[ta] == nil {
			return NewScanError(ErrLackOfMarker, "scan references an undefined Huffman table")
		}
		s.comp[i].td = td
		s.comp[i].ta = ta
	}

	// Luminance sampling decides the MCU geometry; chroma must be 1:1
	hi, vi := s.comp[0].h, s.comp[0].v
	if hi < 1 || hi > 2 || vi < 1 || vi > 2 {
		return NewScanError(ErrUnsupported,
			fmt.Sprintf("luminance sampling %dx%d", hi, vi))
	}
	for c := 1; c < ns; c++ {
		if s.comp[c].h != 1 || s.comp[c].v != 1 {
			return NewScanError(ErrUnsupported, "subsampled chroma beyond 1x1")
		}
	}

	if hi == 1 {
		frame.BlockNumX = ceilDiv(s.width, 8)
	} else {
		frame.BlockNumX = 2 * ceilDiv(s.width, 16)
	}
	if vi == 1 {
		frame.BlockNumY = ceilDiv(s.height, 8)
	} else {
		frame.BlockNumY = 2 * ceilDiv(s.height, 16)
	}
	frame.Width = s.width
	frame.Height = s.height
	frame.QFactor = recoverQFactor(s.qTable)

	// The trailing Ss, Se, AhAl bytes carry no information for a
	// single-scan baseline image
	return nil
}

// decodeScan entropy-decodes the interleaved MCU stream that follows SOS,
// storing luminance coefficients and discarding chroma.
func (s *Scanner) decodeScan(data []byte, frame *Frame) error {
	hi, vi := s.comp[0].h, s.comp[0].v
	bx, by := frame.BlockNumX, frame.BlockNumY
	mcuW, mcuH := bx/hi, by/vi
	coeffs := frame.ensureCoeffs(bx * by)

	br := NewBitReader(data)
	var pred [MaxComponents]int16

	// Starting offsets of the luma sub-blocks within the first MCU
	numSub := hi * vi
	var sub [4]int
	switch {
	case hi == 1 && vi == 1:
		sub = [4]int{0}
	case hi == 2 && vi == 1:
		sub = [4]int{0, 64}
	case hi == 1 && vi == 2:
		sub = [4]int{0, bx * 64}
	default:
		sub = [4]int{0, 64, bx * 64, bx*64 + 64}
	}

	for my := 0; my < mcuH; my++ {
		for mx := 0; mx < mcuW; mx++ {
			for c := 0; c < s.components; c++ {
				dc := s.dcTables[s.comp[c].td]
				ac := s.acTables[s.comp[c].ta]
				if c == 0 {
					for sb := 0; sb < numSub; sb++ {
						off := sub[sb]
						if err := decodeBlock(br, dc, ac, &pred[0], coeffs[off:off+64]); err != nil {
							return err
						}
					}
				} else {
					if err := decodeBlock(br, dc, ac, &pred[c], nil); err != nil {
						return err
					}
				}
			}
			for sb := 0; sb < numSub; sb++ {
				sub[sb] += hi * 64
			}
		}
		if vi == 2 {
			// The second block row of the MCU row is already filled
			for sb := 0; sb < numSub; sb++ {
				sub[sb] += bx * 64
			}
		}
	}

	br.AlignToByte()
	return expectEOI(data, br.BytePos())
}

// decodeBlock decodes one 8x8 block. out receives the coefficients in
// zig-zag order, or is nil for chroma blocks whose bits are consumed and
// discarded. pred is the component's DC predictor.
func decodeBlock(br *BitReader, dc, ac *HuffmanTable, pred *int16, out []int16) error {
	sym, err := dc.Decode(br)
	if err != nil {
		return err
	}
	if sym > 11 {
		return NewScanError(ErrUnexpectedData, "DC category beyond 11")
	}
	var diff int16
	if sym > 0 {
		bits, err := br.Read(uint(sym))
		if err != nil {
			return err
		}
		diff = extendSign(sym, bits)
	}
	*pred += diff
	if out != nil {
		out[0] = *pred
	}

	k := 1
	for k < 64 {
		sym, err := ac.Decode(br)
		if err != nil {
			return err
		}
		zeroRun := int(sym >> 4)
		acBits := sym & 0x0F
		if acBits > 10 {
			return NewScanError(ErrUnexpectedData, "AC category beyond 10")
		}
		switch {
		case acBits != 0:
			k += zeroRun
			if k >= 64 {
				return NewScanError(ErrUnexpectedData, "AC run crosses block boundary")
			}
			bits, err := br.Read(uint(acBits))
			if err != nil {
				return err
			}
			if out != nil {
				out[k] = extendSign(acBits, bits)
			}
			k++
		case zeroRun == 15:
			k += 16
		default:
			k = 64
		}
	}
	return nil
}

// extendSign converts a JPEG category-coded magnitude to a signed value
func extendSign(size uint8, bits uint16) int16 {
	if bits < 1<<(size-1) {
		return int16(bits) - int16(uint16(1)<<size) + 1
	}
	return int16(bits)
}

// expectEOI requires the EOI marker at offset pos of the scan tail,
// tolerating 0xFF fill bytes before it.
func expectEOI(data []byte, pos int) error {
	if pos >= len(data) || data[pos] != 0xFF {
		return NewScanError(ErrNoEOIMarker, "scan not followed by a marker")
	}
	for pos < len(data) && data[pos] == 0xFF {
		pos++
	}
	if pos >= len(data) || data[pos] != MarkerEOI {
		return NewScanError(ErrNoEOIMarker, "scan not followed by EOI")
	}
	return nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
