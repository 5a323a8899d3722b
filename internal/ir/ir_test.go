package ir

import (
	"math/big"
	"testing"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload int64
		tag     Tag
	}{
		{"zero int", 0, TagInt},
		{"positive int", 42, TagInt},
		{"negative int", -17, TagInt},
		{"large negative", -1000000, TagInt},
		{"array address", 3, TagArray},
		{"hash address", 99, TagHash},
		{"special false", SpecialFalse, TagSpecial},
		{"special nil", SpecialNil, TagSpecial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := big.NewInt(tt.payload)
			w := Wrap(payload, tt.tag)
			if got := TagOf(w); got != tt.tag {
				t.Errorf("TagOf(Wrap(%d, %d)) = %d, want %d", tt.payload, tt.tag, got, tt.tag)
			}
			if got := Unwrap(w, tt.tag); got.Cmp(payload) != 0 {
				t.Errorf("Unwrap(Wrap(%d, %d)) = %s, want %d", tt.payload, tt.tag, got, tt.payload)
			}
		})
	}
}

func TestUnwrapAuto(t *testing.T) {
	w := WrapInt64(-5, TagInt)
	payload, tag := UnwrapAuto(w)
	if tag != TagInt {
		t.Errorf("tag = %d, want %d", tag, TagInt)
	}
	if payload.Int64() != -5 {
		t.Errorf("payload = %s, want -5", payload)
	}
}

func TestTagOfNegativeWrapped(t *testing.T) {
	// A negative wrapped INT is 4x+1 with x < 0; its tag must still read 1.
	w := WrapInt64(-3, TagInt) // -11
	if w.Int64() != -11 {
		t.Fatalf("WrapInt64(-3, TagInt) = %s, want -11", w)
	}
	if got := TagOf(w); got != TagInt {
		t.Errorf("TagOf(-11) = %d, want %d", got, TagInt)
	}
}

func TestSingletonsDistinct(t *testing.T) {
	vals := map[string]*big.Int{"false": False, "none": None, "true": True, "nil": Nil}
	for a, va := range vals {
		for b, vb := range vals {
			if a != b && va.Cmp(vb) == 0 {
				t.Errorf("%s and %s share the encoding %s", a, b, va)
			}
		}
		if TagOf(va) != TagSpecial {
			t.Errorf("%s has tag %d, want %d", a, TagOf(va), TagSpecial)
		}
	}
}

func TestClassCodesMatchTags(t *testing.T) {
	// Each class code's low two bits are the tag of its instances; is_a?
	// depends on this.
	codes := map[int64]Tag{
		ClassSpecial: TagSpecial,
		ClassInt:     TagInt,
		ClassArray:   TagArray,
		ClassHash:    TagHash,
	}
	for code, want := range codes {
		if got := Tag(code % 4); got != want {
			t.Errorf("class code %d has tag %d, want %d", code, got, want)
		}
	}
}
