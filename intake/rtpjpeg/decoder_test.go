package rtpjpeg

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/pion/rtp"

	"github.com/turboshun/crowd-detection/jpegscan"
)

// zeroScan420 is the entropy-coded segment of one all-zero 4:2:0 MCU
// (four luminance blocks, one Cb, one Cr) under the standard tables.
var zeroScan420 = []byte{0x28, 0xA2, 0x8A, 0x00}

// payload builds an RFC 2435 payload for a 16x16 type-1 image
func payload(offset int, q byte, data []byte) []byte {
	p := []byte{
		0x00,
		byte(offset >> 16), byte(offset >> 8), byte(offset),
		1,    // type: 4:2:0
		q,    // quantization
		2, 2, // width, height in 8-pixel units
	}
	return append(p, data...)
}

func packet(pl []byte, marker bool) *rtp.Packet {
	return &rtp.Packet{
		Header:  rtp.Header{Marker: marker},
		Payload: pl,
	}
}

func TestDecodeSinglePacket(t *testing.T) {
	c := qt.New(t)

	var d Decoder
	d.Init()

	img, err := d.Decode(packet(payload(0, 50, zeroScan420), true))
	c.Assert(err, qt.IsNil)

	// The synthesized image must survive the strict detector-side parse
	frame, err := jpegscan.NewScanner().Parse(img)
	c.Assert(err, qt.IsNil)
	c.Assert(frame.Width, qt.Equals, 16)
	c.Assert(frame.Height, qt.Equals, 16)
	c.Assert(frame.BlockNumX, qt.Equals, 2)
	c.Assert(frame.BlockNumY, qt.Equals, 2)
	c.Assert(frame.QFactor, qt.Equals, 50)
	for i, v := range frame.Coeffs {
		if v != 0 {
			c.Fatalf("coefficient %d is %d, want 0", i, v)
		}
	}
}

func TestDecodeFragmented(t *testing.T) {
	c := qt.New(t)

	var whole Decoder
	whole.Init()
	want, err := whole.Decode(packet(payload(0, 50, zeroScan420), true))
	c.Assert(err, qt.IsNil)

	var d Decoder
	d.Init()

	_, err = d.Decode(packet(payload(0, 50, zeroScan420[:2]), false))
	c.Assert(err, qt.Equals, ErrMorePacketsNeeded)

	got, err := d.Decode(packet(payload(2, 50, zeroScan420[2:]), true))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, want)
}

func TestDecodeMidStreamJoin(t *testing.T) {
	c := qt.New(t)

	var d Decoder
	d.Init()

	_, err := d.Decode(packet(payload(2, 50, zeroScan420[2:]), true))
	c.Assert(err, qt.Equals, ErrNonStartingPacketAndNoPrevious)

	// After a complete image, a stray fragment is a hard error instead
	_, err = d.Decode(packet(payload(0, 50, zeroScan420), true))
	c.Assert(err, qt.IsNil)
	_, err = d.Decode(packet(payload(2, 50, zeroScan420[2:]), true))
	c.Assert(err, qt.ErrorMatches, "received a non-starting fragment")
}

func TestDecodeWrongFragmentOffset(t *testing.T) {
	c := qt.New(t)

	var d Decoder
	d.Init()

	_, err := d.Decode(packet(payload(0, 50, zeroScan420[:2]), false))
	c.Assert(err, qt.Equals, ErrMorePacketsNeeded)

	_, err = d.Decode(packet(payload(3, 50, zeroScan420[2:]), true))
	c.Assert(err, qt.ErrorMatches, "received wrong fragment")
}

func TestDecodeInlineQuantizationTables(t *testing.T) {
	c := qt.New(t)

	tables := defaultQTables(80)
	qtHeader := []byte{0x00, 0x00, 0x00, 128}
	pl := payload(0, 255, append(append(qtHeader, tables...), zeroScan420...))

	var d Decoder
	d.Init()
	img, err := d.Decode(packet(pl, true))
	c.Assert(err, qt.IsNil)

	frame, err := jpegscan.NewScanner().Parse(img)
	c.Assert(err, qt.IsNil)
	c.Assert(frame.BlockCount(), qt.Equals, 4)
}

func TestDecodeRejectsRestartTypes(t *testing.T) {
	c := qt.New(t)

	pl := payload(0, 50, zeroScan420)
	pl[4] = 65 // type with restart markers

	var d Decoder
	d.Init()
	_, err := d.Decode(packet(pl, true))
	c.Assert(err, qt.IsNotNil)
}
