package jpegscan

import "testing"

// TestReadThroughStuffing verifies that a stuffed 0x00 after 0xFF is
// never part of the bit stream.
func TestReadThroughStuffing(t *testing.T) {
	r := NewBitReader([]byte{0xAB, 0xFF, 0x00, 0xCD})

	want := []uint16{0xAB, 0xFF, 0xCD}
	for i, w := range want {
		got, err := r.Read(8)
		if err != nil {
			t.Fatalf("read %d failed: %v", i, err)
		}
		if got != w {
			t.Errorf("read %d: got 0x%02X, want 0x%02X", i, got, w)
		}
	}

	if _, err := r.Read(1); err == nil {
		t.Error("expected ShortOfData past end of stream")
	}
}

// TestPeekDoesNotAdvance verifies repeated peeks return the same bits
func TestPeekDoesNotAdvance(t *testing.T) {
	r := NewBitReader([]byte{0xA5, 0x3C})

	for i := 0; i < 3; i++ {
		v, err := r.Peek(12)
		if err != nil {
			t.Fatalf("peek failed: %v", err)
		}
		if v != 0xA53 {
			t.Errorf("peek %d: got 0x%03X, want 0xA53", i, v)
		}
	}

	if err := r.Skip(4); err != nil {
		t.Fatalf("skip failed: %v", err)
	}
	v, err := r.Peek(8)
	if err != nil {
		t.Fatalf("peek after skip failed: %v", err)
	}
	if v != 0x53 {
		t.Errorf("peek after skip: got 0x%02X, want 0x53", v)
	}
}

// TestPeekAcrossTwoStuffedPairs verifies a 16-bit read can look through
// two stuffed pairs.
func TestPeekAcrossTwoStuffedPairs(t *testing.T) {
	r := NewBitReader([]byte{0xFF, 0x00, 0xFF, 0x00, 0x12})

	// Consume one bit so the 16-bit read straddles both stuffed bytes
	if err := r.Skip(1); err != nil {
		t.Fatalf("skip failed: %v", err)
	}
	v, err := r.Read(16)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	// Logical stream is FF FF 12; bits 1..16 are 1111111 111111110
	if v != 0xFFFE {
		t.Errorf("got 0x%04X, want 0xFFFE", v)
	}
}

// TestShortOfData verifies reads past the end fail without advancing
func TestShortOfData(t *testing.T) {
	r := NewBitReader([]byte{0xAA})

	if _, err := r.Peek(16); err == nil {
		t.Error("expected error peeking 16 bits from 1 byte")
	} else if kind := ErrorKindOf(err); kind != ErrShortOfData {
		t.Errorf("got kind %s, want ShortOfData", kind)
	}

	// The failed peek must not consume anything
	v, err := r.Read(8)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if v != 0xAA {
		t.Errorf("got 0x%02X, want 0xAA", v)
	}
}

// TestBitCountRange verifies lengths outside [1,16] are rejected
func TestBitCountRange(t *testing.T) {
	r := NewBitReader([]byte{0xAA, 0xBB, 0xCC})
	if _, err := r.Peek(0); err == nil {
		t.Error("expected error for 0-bit peek")
	}
	if _, err := r.Read(17); err == nil {
		t.Error("expected error for 17-bit read")
	}
}

// TestAlignToByte verifies fill-bit consumption lands on the next byte
func TestAlignToByte(t *testing.T) {
	r := NewBitReader([]byte{0xFF, 0x00, 0x5A})

	if _, err := r.Read(3); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	r.AlignToByte()
	// The stuffed 0x00 is skipped; the cursor lands on 0x5A
	if r.BytePos() != 2 {
		t.Errorf("got byte pos %d, want 2", r.BytePos())
	}
	v, err := r.Read(8)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if v != 0x5A {
		t.Errorf("got 0x%02X, want 0x5A", v)
	}

	// Aligning on a byte boundary is a no-op
	r.AlignToByte()
	if r.BytePos() != 3 {
		t.Errorf("got byte pos %d, want 3", r.BytePos())
	}
}
