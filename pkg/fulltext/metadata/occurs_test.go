package metadata

import (
	"reflect"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	indexes := []int{0, 5, 12, 103}
	encoded := Encode(indexes, "word", "/path")
	decoded := Decode(encoded)
	if !reflect.DeepEqual(indexes, decoded) {
		t.Fatalf("round trip mismatch: got %v, want %v", decoded, indexes)
	}
}

func TestEncodeEmpty(t *testing.T) {
	if got := Encode(nil, "w", "/p"); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestDecodeEmpty(t *testing.T) {
	if got := Decode(""); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestEncodeTruncatesAtCommaBoundary(t *testing.T) {
	indexes := make([]int, 0, 200)
	for i := 0; i < 200; i++ {
		indexes = append(indexes, i*1000)
	}
	encoded := Encode(indexes, "word", "/path")
	if len(encoded) > MaxBytes {
		t.Fatalf("expected encoded length <= %d, got %d", MaxBytes, len(encoded))
	}
	if strings.HasSuffix(encoded, ",") {
		t.Fatal("expected no trailing comma after truncation")
	}
	decoded := Decode(encoded)
	for i, v := range decoded {
		if v != indexes[i] {
			t.Fatalf("decoded prefix mismatch at %d: got %d want %d", i, v, indexes[i])
		}
	}
}
