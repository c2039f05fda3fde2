package rtpjpeg

// Standard Huffman tables from RFC 2435 appendix B (identical to JPEG
// Annex K).
var lumDCCodelens = []byte{0, 1, 5, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0}

var lumDCSymbols = []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}

var lumACCodelens = []byte{0, 2, 1, 3, 3, 2, 4, 3, 5, 5, 4, 4, 0, 0, 1, 0x7D}

var lumACSymbols = []byte{
	0x01, 0x02, 0x03, 0x00, 0x04, 0x11, 0x05, 0x12,
	0x21, 0x31, 0x41, 0x06, 0x13, 0x51, 0x61, 0x07,
	0x22, 0x71, 0x14, 0x32, 0x81, 0x91, 0xa1, 0x08,
	0x23, 0x42, 0xb1, 0xc1, 0x15, 0x52, 0xd1, 0xf0,
	0x24, 0x33, 0x62, 0x72, 0x82, 0x09, 0x0a, 0x16,
	0x17, 0x18, 0x19, 0x1a, 0x25, 0x26, 0x27, 0x28,
	0x29, 0x2a, 0x34, 0x35, 0x36, 0x37, 0x38, 0x39,
	0x3a, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48, 0x49,
	0x4a, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58, 0x59,
	0x5a, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68, 0x69,
	0x6a, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78, 0x79,
	0x7a, 0x83, 0x84, 0x85, 0x86, 0x87, 0x88, 0x89,
	0x8a, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97, 0x98,
	0x99, 0x9a, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6, 0xa7,
	0xa8, 0xa9, 0xaa, 0xb2, 0xb3, 0xb4, 0xb5, 0xb6,
	0xb7, 0xb8, 0xb9, 0xba, 0xc2, 0xc3, 0xc4, 0xc5,
	0xc6, 0xc7, 0xc8, 0xc9, 0xca, 0xd2, 0xd3, 0xd4,
	0xd5, 0xd6, 0xd7, 0xd8, 0xd9, 0xda, 0xe1, 0xe2,
	0xe3, 0xe4, 0xe5, 0xe6, 0xe7, 0xe8, 0xe9, 0xea,
	0xf1, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7, 0xf8,
	0xf9, 0xfa,
}

var chmDCCodelens = []byte{0, 3, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0}

var chmDCSymbols = []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}

var chmACCodelens = []byte{0, 2, 1, 2, 4, 4, 3, 4, 7, 5, 4, 4, 0, 1, 2, 0x77}

var chmACSymbols = []byte{
	0x00, 0x01, 0x02, 0x03, 0x11, 0x04, 0x05, 0x21,
	0x31, 0x06, 0x12, 0x41, 0x51, 0x07, 0x61, 0x71,
	0x13, 0x22, 0x32, 0x81, 0x08, 0x14, 0x42, 0x91,
	0xa1, 0xb1, 0xc1, 0x09, 0x23, 0x33, 0x52, 0xf0,
	0x15, 0x62, 0x72, 0xd1, 0x0a, 0x16, 0x24, 0x34,
	0xe1, 0x25, 0xf1, 0x17, 0x18, 0x19, 0x1a, 0x26,
	0x27, 0x28, 0x29, 0x2a, 0x35, 0x36, 0x37, 0x38,
	0x39, 0x3a, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48,
	0x49, 0x4a, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58,
	0x59, 0x5a, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68,
	0x69, 0x6a, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78,
	0x79, 0x7a, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87,
	0x88, 0x89, 0x8a, 0x92, 0x93, 0x94, 0x95, 0x96,
	0x97, 0x98, 0x99, 0x9a, 0xa2, 0xa3, 0xa4, 0xa5,
	0xa6, 0xa7, 0xa8, 0xa9, 0xaa, 0xb2, 0xb3, 0xb4,
	0xb5, 0xb6, 0xb7, 0xb8, 0xb9, 0xba, 0xc2, 0xc3,
	0xc4, 0xc5, 0xc6, 0xc7, 0xc8, 0xc9, 0xca, 0xd2,
	0xd3, 0xd4, 0xd5, 0xd6, 0xd7, 0xd8, 0xd9, 0xda,
	0xe2, 0xe3, 0xe4, 0xe5, 0xe6, 0xe7, 0xe8, 0xe9,
	0xea, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7, 0xf8,
	0xf9, 0xfa,
}

// defaultQuantizers holds the RFC 2435 appendix A luminance and
// chrominance base tables, zig-zag order.
var defaultQuantizers = [128]byte{
	// luma
	16, 11, 12, 14, 12, 10, 16, 14,
	13, 14, 18, 17, 16, 19, 24, 40,
	26, 24, 22, 22, 24, 49, 35, 37,
	29, 40, 58, 51, 61, 60, 57, 51,
	56, 55, 64, 72, 92, 78, 64, 68,
	87, 69, 55, 56, 80, 109, 81, 87,
	95, 98, 103, 104, 103, 62, 77, 113,
	121, 112, 100, 120, 92, 101, 103, 99,
	// chroma
	17, 18, 18, 24, 21, 24, 47, 26,
	26, 47, 99, 66, 56, 66, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
}

// defaultQTables scales the appendix A tables to the Q value carried in
// the payload header (1..99).
func defaultQTables(q int) []byte {
	var scale int
	if q < 50 {
		scale = 5000 / q
	} else {
		scale = 200 - q*2
	}

	tab := make([]byte, 128)
	for i := range tab {
		v := (int(defaultQuantizers[i])*scale + 50) / 100
		if v < 1 {
			v = 1
		}
		if v > 255 {
			v = 255
		}
		tab[i] = byte(v)
	}
	return tab
}

// writeHeader synthesizes the JPEG interchange header the RTP payload
// strips: SOI, quantization tables, frame geometry, the standard Huffman
// tables and the scan header.
func writeHeader(typ, width, height int, qtables []byte) []byte {
	buf := []byte{0xFF, 0xD8}

	// DQT
	nbqTab := len(qtables) / 64
	ts := 2 + nbqTab*(1+64)
	buf = append(buf, 0xFF, 0xDB, byte(ts>>8), byte(ts))
	for i := 0; i < nbqTab; i++ {
		buf = append(buf, byte(i))
		buf = append(buf, qtables[64*i:64*i+64]...)
	}

	// DHT
	buf = appendHuffman(buf, 0x00, lumDCCodelens, lumDCSymbols)
	buf = appendHuffman(buf, 0x10, lumACCodelens, lumACSymbols)
	buf = appendHuffman(buf, 0x01, chmDCCodelens, chmDCSymbols)
	buf = appendHuffman(buf, 0x11, chmACCodelens, chmACSymbols)

	// SOF0: type 0 is 4:2:2, type 1 is 4:2:0
	lumaSampling := byte(0x21)
	if typ == 1 {
		lumaSampling = 0x22
	}
	chromaMtx := byte(0)
	if nbqTab == 2 {
		chromaMtx = 1
	}
	buf = append(buf, 0xFF, 0xC0, 0x00, 17, 8,
		byte(height>>8), byte(height), byte(width>>8), byte(width), 3,
		1, lumaSampling, 0,
		2, 0x11, chromaMtx,
		3, 0x11, chromaMtx)

	// SOS
	buf = append(buf, 0xFF, 0xDA, 0x00, 12, 3,
		1, 0x00, 2, 0x11, 3, 0x11,
		0, 63, 0)

	return buf
}

// appendHuffman appends one DHT segment
func appendHuffman(buf []byte, tcth byte, codelens, symbols []byte) []byte {
	ts := 2 + 1 + len(codelens) + len(symbols)
	buf = append(buf, 0xFF, 0xC4, byte(ts>>8), byte(ts), tcth)
	buf = append(buf, codelens...)
	return append(buf, symbols...)
}
