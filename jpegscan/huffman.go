package jpegscan

// unmappedSymbol marks lookup entries no canonical code maps to
const unmappedSymbol = 0xFF

// HuffmanTable is a canonical Huffman decode table built from one DHT
// tuple. Decoding peeks bitLengthMax bits and resolves the symbol with a
// single lookup.
type HuffmanTable struct {
	// bitLengthMax is the longest code length present, 1..16
	bitLengthMax uint

	// indexMax is the highest valid symbol index
	indexMax int

	// codeToIndex maps any bitLengthMax-bit prefix to a symbol index,
	// or unmappedSymbol. Length is 1<<bitLengthMax, at most 65536.
	codeToIndex []uint8

	// bitLength holds the canonical code length per symbol index
	bitLength [256]uint8

	// symbol holds the decoded value per symbol index
	symbol [256]uint8
}

// NewHuffmanTable builds a decode table from a DHT tuple: table class Tc
// (0=DC, 1=AC), destination Th, the 16 per-length code counts and the
// symbol values in code order.
func NewHuffmanTable(tc, th uint8, counts [16]uint8, values []uint8) (*HuffmanTable, error) {
	if tc > 1 {
		return nil, NewScanError(ErrInvalidParam, "huffman table class out of range")
	}
	if th > 1 {
		return nil, NewScanError(ErrInvalidParam, "huffman table destination out of range")
	}
	total := 0
	for _, c := range counts {
		total += int(c)
	}
	if total == 0 || total > 256 {
		return nil, NewScanError(ErrInvalidParam, "huffman symbol count out of range")
	}
	if len(values) < total {
		return nil, NewScanError(ErrShortOfData, "huffman values shorter than code counts")
	}

	t := &HuffmanTable{indexMax: total - 1}

	// Assign canonical codes: increasing within a length, doubled across
	// length boundaries.
	var codes [256]uint32
	code := uint32(0)
	idx := 0
	for length := uint(1); length <= 16; length++ {
		for i := uint8(0); i < counts[length-1]; i++ {
			if code >= 1<<length {
				return nil, NewScanError(ErrUnexpectedData, "huffman code counts overflow code space")
			}
			codes[idx] = code
			t.bitLength[idx] = uint8(length)
			code++
			idx++
		}
		code <<= 1
		if counts[length-1] > 0 {
			t.bitLengthMax = length
		}
	}
	if t.bitLengthMax == 0 {
		return nil, NewScanError(ErrUnexpectedData, "huffman table has no codes")
	}

	t.codeToIndex = make([]uint8, 1<<t.bitLengthMax)
	for i := range t.codeToIndex {
		t.codeToIndex[i] = unmappedSymbol
	}
	for i := 0; i < total; i++ {
		span := t.bitLengthMax - uint(t.bitLength[i])
		base := codes[i] << span
		for j := uint32(0); j < 1<<span; j++ {
			t.codeToIndex[base+j] = uint8(i)
		}
	}

	copy(t.symbol[:], values[:total])
	return t, nil
}

// BitLengthMax returns the longest code length in the table
func (t *HuffmanTable) BitLengthMax() uint {
	return t.bitLengthMax
}

// Decode reads one Huffman-coded symbol from the bit stream. Near the end
// of the data, where fewer than bitLengthMax bits remain, a code that fits
// in the remaining bits still decodes.
func (t *HuffmanTable) Decode(r *BitReader) (uint8, error) {
	avail := t.bitLengthMax
	v, err := r.Peek(avail)
	for err != nil && ErrorKindOf(err) == ErrShortOfData && avail > 1 {
		avail--
		v, err = r.Peek(avail)
	}
	if err != nil {
		return 0, err
	}
	pad := t.bitLengthMax - avail
	v = v<<pad | (uint16(1)<<pad - 1)
	idx := t.codeToIndex[v]
	if pad > 0 && (int(idx) > t.indexMax || uint(t.bitLength[idx]) > avail) {
		return 0, NewScanError(ErrShortOfData, "entropy segment exhausted")
	}
	if int(idx) > t.indexMax {
		return 0, NewScanError(ErrUnexpectedData, "bit pattern matches no huffman code")
	}
	if err := r.Skip(uint(t.bitLength[idx])); err != nil {
		return 0, err
	}
	return t.symbol[idx], nil
}
