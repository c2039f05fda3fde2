// Package rtpjpeg reassembles RTP/JPEG streams (RFC 2435) into complete
// JPEG images suitable for the detector.
package rtpjpeg

import (
	"errors"
	"fmt"

	"github.com/pion/rtp"
)

// maxDimension is the largest width or height expressible in the RFC
// 2435 payload header (255 units of 8 pixels).
const maxDimension = 2040

// ErrMorePacketsNeeded is returned when more packets are needed.
var ErrMorePacketsNeeded = errors.New("need more packets")

// ErrNonStartingPacketAndNoPrevious is returned when we received a
// non-starting fragment of an image and we didn't receive anything
// before. It's normal to receive this when decoding a stream that has
// been already running for some time.
var ErrNonStartingPacketAndNoPrevious = errors.New(
	"received a non-starting fragment without any previous starting fragment")

// payloadHeader is the fixed RFC 2435 main JPEG header
type payloadHeader struct {
	fragmentOffset int
	typ            int
	quantization   int
	width          int
	height         int
}

func (h *payloadHeader) unmarshal(buf []byte) (int, error) {
	if len(buf) < 8 {
		return 0, fmt.Errorf("payload too short for JPEG header")
	}
	h.fragmentOffset = int(buf[1])<<16 | int(buf[2])<<8 | int(buf[3])
	h.typ = int(buf[4])
	h.quantization = int(buf[5])
	h.width = int(buf[6]) * 8
	h.height = int(buf[7]) * 8
	return 8, nil
}

// Decoder is a RTP/MJPEG decoder. One Decoder serves one stream.
type Decoder struct {
	firstPacketReceived bool
	fragmentedSize      int
	fragments           [][]byte
	firstHeader         payloadHeader
	firstQTable         []byte
}

// Init initializes the decoder
func (d *Decoder) Init() {
	d.fragments = d.fragments[:0]
}

// Decode feeds one RTP packet and returns a complete JPEG image once the
// marker packet arrives, or ErrMorePacketsNeeded in between.
func (d *Decoder) Decode(pkt *rtp.Packet) ([]byte, error) {
	byts := pkt.Payload

	var ph payloadHeader
	n, err := ph.unmarshal(byts)
	if err != nil {
		return nil, err
	}
	byts = byts[n:]

	// Types 64-127 carry a restart interval the detector cannot consume
	if ph.typ != 0 && ph.typ != 1 {
		return nil, fmt.Errorf("unsupported JPEG payload type %d", ph.typ)
	}
	if ph.width == 0 || ph.height == 0 || ph.width > maxDimension || ph.height > maxDimension {
		return nil, fmt.Errorf("invalid dimensions %dx%d", ph.width, ph.height)
	}

	if ph.fragmentOffset == 0 {
		if ph.quantization >= 128 {
			qt, qn, err := unmarshalQTables(byts)
			if err != nil {
				return nil, err
			}
			d.firstQTable = qt
			byts = byts[qn:]
		} else {
			if ph.quantization == 0 || ph.quantization > 99 {
				return nil, fmt.Errorf("reserved quantization value %d", ph.quantization)
			}
			d.firstQTable = defaultQTables(ph.quantization)
		}

		d.fragments = d.fragments[:0] // discard pending fragmented packets
		d.fragmentedSize = len(byts)
		d.fragments = append(d.fragments, byts)
		d.firstHeader = ph
		d.firstPacketReceived = true
	} else {
		if len(d.fragments) == 0 {
			if !d.firstPacketReceived {
				return nil, ErrNonStartingPacketAndNoPrevious
			}
			return nil, fmt.Errorf("received a non-starting fragment")
		}

		if ph.fragmentOffset != d.fragmentedSize {
			d.fragments = d.fragments[:0] // discard pending fragmented packets
			return nil, fmt.Errorf("received wrong fragment")
		}

		d.fragmentedSize += len(byts)
		d.fragments = append(d.fragments, byts)
	}

	if !pkt.Marker {
		return nil, ErrMorePacketsNeeded
	}

	buf := writeHeader(d.firstHeader.typ, d.firstHeader.width, d.firstHeader.height, d.firstQTable)
	for _, frag := range d.fragments {
		buf = append(buf, frag...)
	}
	d.fragments = d.fragments[:0]

	if len(buf) < 2 || buf[len(buf)-2] != 0xFF || buf[len(buf)-1] != 0xD9 {
		buf = append(buf, 0xFF, 0xD9)
	}
	return buf, nil
}

// unmarshalQTables reads the in-band quantization table header used when
// the Q value is 128 or above.
func unmarshalQTables(buf []byte) ([]byte, int, error) {
	if len(buf) < 4 {
		return nil, 0, fmt.Errorf("payload too short for quantization header")
	}
	precision := buf[1]
	length := int(buf[2])<<8 | int(buf[3])
	if precision != 0 {
		return nil, 0, fmt.Errorf("only 8-bit quantization tables are supported")
	}
	if length == 0 || length%64 != 0 || length > 128 {
		return nil, 0, fmt.Errorf("invalid quantization table length %d", length)
	}
	if len(buf) < 4+length {
		return nil, 0, fmt.Errorf("payload too short for quantization tables")
	}
	tables := make([]byte, length)
	copy(tables, buf[4:4+length])
	return tables, 4 + length, nil
}
