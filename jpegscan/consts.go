// Package jpegscan extracts quantized luminance DCT coefficients from
// baseline JPEG images without decoding them to pixels.
package jpegscan

// JPEG marker codes
const (
	MarkerTEM  = 0x01 // Temporary private use
	MarkerSOF0 = 0xC0 // Baseline DCT
	MarkerDHT  = 0xC4 // Define Huffman Table
	MarkerRST0 = 0xD0 // Restart marker 0
	MarkerRST7 = 0xD7 // Restart marker 7
	MarkerSOI  = 0xD8 // Start Of Image
	MarkerEOI  = 0xD9 // End Of Image
	MarkerSOS  = 0xDA // Start Of Scan
	MarkerDQT  = 0xDB // Define Quantization Table
	MarkerDRI  = 0xDD // Define Restart Interval
	MarkerAPP0 = 0xE0 // Application Segment 0
	MarkerCOM  = 0xFE // Comment
)

// MaxDimension is the largest width or height accepted in a SOF0 segment
const MaxDimension = 32767

// MaxComponents is the maximum number of color components in a scan
const MaxComponents = 3

// StdLuminanceQuant is the Annex K luminance quantization table in
// zig-zag scan order, as it appears inside a DQT segment.
var StdLuminanceQuant = [64]uint16{
	16, 11, 12, 14, 12, 10, 16, 14,
	13, 14, 18, 17, 16, 19, 24, 40,
	26, 24, 22, 22, 24, 49, 35, 37,
	29, 40, 58, 51, 61, 60, 57, 51,
	56, 55, 64, 72, 92, 78, 64, 68,
	87, 69, 55, 56, 80, 109, 81, 87,
	95, 98, 103, 104, 103, 62, 77, 113,
	121, 112, 100, 120, 92, 101, 103, 99,
}
