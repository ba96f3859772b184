package varint

import (
	"testing"

	"github.com/opd-ai/deltastate/pkg/instrument"
)

func TestUnsignedRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 300, 16384, 1 << 40, ^uint64(0)}
	for _, v := range cases {
		w := instrument.NewMemoryWriter()
		if err := AppendUnsigned(w, v); err != nil {
			t.Fatalf("AppendUnsigned(%d): %v", v, err)
		}
		r := instrument.NewMemoryReader(w.Bytes())
		got, outOfRange, err := ReadUnsigned(r, 64)
		if err != nil {
			t.Fatalf("ReadUnsigned(%d): %v", v, err)
		}
		if outOfRange {
			t.Errorf("ReadUnsigned(%d) reported out of range for 64-bit width", v)
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
	}
}

func TestSignedRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 63, -63, 64, -64, 1000, -1000, 1 << 32, -(1 << 32)}
	for _, v := range cases {
		w := instrument.NewMemoryWriter()
		if err := AppendSigned(w, v); err != nil {
			t.Fatalf("AppendSigned(%d): %v", v, err)
		}
		r := instrument.NewMemoryReader(w.Bytes())
		got, outOfRange, err := ReadSigned(r, 64)
		if err != nil {
			t.Fatalf("ReadSigned(%d): %v", v, err)
		}
		if outOfRange {
			t.Errorf("ReadSigned(%d) reported out of range for 64-bit width", v)
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
	}
}

func TestMaxSizeMatchesLongestEncoding(t *testing.T) {
	widths := map[int]uint64{8: 0xff, 16: 0xffff, 32: 0xffffffff}
	for width, maxVal := range widths {
		w := instrument.NewMemoryWriter()
		if err := AppendUnsigned(w, maxVal); err != nil {
			t.Fatalf("AppendUnsigned: %v", err)
		}
		if got, want := len(w.Bytes()), MaxSize(width); got > want {
			t.Errorf("bit width %d: encoded %d bytes, MaxSize says %d", width, got, want)
		}
	}
}

func TestReadUnsignedOutOfRangeForNarrowerWidth(t *testing.T) {
	w := instrument.NewMemoryWriter()
	if err := AppendUnsigned(w, 300); err != nil {
		t.Fatalf("AppendUnsigned: %v", err)
	}
	r := instrument.NewMemoryReader(w.Bytes())
	_, outOfRange, err := ReadUnsigned(r, 8)
	if err != nil {
		t.Fatalf("ReadUnsigned: %v", err)
	}
	if !outOfRange {
		t.Errorf("expected out-of-range for value 300 decoded against an 8-bit width")
	}
}

func TestNegativeAndPositiveSameMagnitudeSameByteLength(t *testing.T) {
	for _, v := range []int64{5, 1000, 1 << 20} {
		pos := instrument.NewMemoryWriter()
		neg := instrument.NewMemoryWriter()
		if err := AppendSigned(pos, v); err != nil {
			t.Fatalf("AppendSigned(%d): %v", v, err)
		}
		if err := AppendSigned(neg, -v); err != nil {
			t.Fatalf("AppendSigned(%d): %v", -v, err)
		}
		if len(pos.Bytes()) != len(neg.Bytes()) {
			t.Errorf("%d and %d encoded to different lengths: %d vs %d", v, -v, len(pos.Bytes()), len(neg.Bytes()))
		}
	}
}
