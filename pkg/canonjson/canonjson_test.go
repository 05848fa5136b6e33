package canonjson

import (
	"bytes"
	"testing"
)

// TestMarshalSortsKeys tests that logically equal maps produce byte-equal output
func TestMarshalSortsKeys(t *testing.T) {
	a := map[string]any{
		"zebra":  1,
		"apple":  map[string]any{"y": true, "x": false},
		"mango":  []any{"one", "two"},
		"banana": nil,
	}
	b := map[string]any{
		"banana": nil,
		"mango":  []any{"one", "two"},
		"apple":  map[string]any{"x": false, "y": true},
		"zebra":  1,
	}

	first, err := Marshal(a)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	second, err := Marshal(b)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("expected byte-equal output:\n%s\n%s", first, second)
	}

	want := `{"apple":{"x":false,"y":true},"banana":null,"mango":["one","two"],"zebra":1}`
	if string(first) != want {
		t.Errorf("expected %s, got %s", want, first)
	}
}

// TestMarshalStructFieldOrder tests that struct field order does not leak
func TestMarshalStructFieldOrder(t *testing.T) {
	type record struct {
		Zulu  string `json:"zulu"`
		Alpha string `json:"alpha"`
	}

	data, err := Marshal(record{Zulu: "z", Alpha: "a"})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	want := `{"alpha":"a","zulu":"z"}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}
}

// TestMarshalPreservesNumbers tests that normalization keeps numeric text intact
func TestMarshalPreservesNumbers(t *testing.T) {
	data, err := Marshal(map[string]any{"big": int64(9007199254740993), "small": 0.5})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	want := `{"big":9007199254740993,"small":0.5}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}
}

// TestMarshalRejectsUnencodable tests the error path
func TestMarshalRejectsUnencodable(t *testing.T) {
	if _, err := Marshal(map[string]any{"ch": make(chan int)}); err == nil {
		t.Error("expected error for unencodable value")
	}
}
