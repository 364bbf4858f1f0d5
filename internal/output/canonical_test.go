package output

import (
	"math"
	"testing"
	"time"
)

func TestDeterministicEncode(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{
			name: "struct members sorted",
			input: struct {
				View  string  `json:"view"`
				Ratio float64 `json:"ratio"`
				Count int     `json:"count"`
			}{View: "orders", Ratio: 0.123456789, Count: 42},
			want: `{"count":42,"ratio":0.123457,"view":"orders"}`,
		},
		{
			name: "nil pointer dropped",
			input: struct {
				Name  string   `json:"name"`
				Score *float64 `json:"score"`
			}{Name: "test"},
			want: `{"name":"test"}`,
		},
		{
			name: "omitempty honoured",
			input: struct {
				Name  string `json:"name"`
				Count int    `json:"count,omitempty"`
			}{Name: "test"},
			want: `{"name":"test"}`,
		},
		{
			name:  "zero count kept",
			input: struct{ Count int `json:"query_count"` }{},
			want:  `{"query_count":0}`,
		},
		{
			name: "empty list kept",
			input: struct {
				View   string   `json:"view"`
				Fields []string `json:"unused_fields"`
			}{View: "orders", Fields: []string{}},
			want: `{"unused_fields":[],"view":"orders"}`,
		},
		{
			name: "nil list dropped",
			input: struct {
				View   string   `json:"view"`
				Fields []string `json:"unused_fields"`
			}{View: "orders"},
			want: `{"view":"orders"}`,
		},
		{
			name:  "nested maps sorted",
			input: map[string]interface{}{"zebra": map[string]int{"y": 2, "x": 1}, "alpha": 1},
			want:  `{"alpha":1,"zebra":{"x":1,"y":2}}`,
		},
		{
			name:  "large integers exact",
			input: map[string]int64{"rows": math.MaxInt64},
			want:  `{"rows":9223372036854775807}`,
		},
		{
			name:  "html left alone",
			input: map[string]string{"filter": "a < b && c > d"},
			want:  `{"filter":"a < b && c > d"}`,
		},
		{
			name:  "marshalers used",
			input: map[string]time.Time{"at": time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
			want:  `{"at":"2026-01-02T03:04:05Z"}`,
		},
		{
			name:  "null",
			input: nil,
			want:  `null`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeterministicEncode(tt.input)
			if err != nil {
				t.Fatalf("DeterministicEncode() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("DeterministicEncode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDeterministicEncode_Repeatable(t *testing.T) {
	input := map[string]interface{}{
		"b": []interface{}{map[string]int{"y": 2, "x": 1}},
		"a": 1.0000001,
		"c": map[string]string{"k2": "v2", "k1": "v1"},
	}

	first, err := DeterministicEncode(input)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		again, err := DeterministicEncode(input)
		if err != nil {
			t.Fatal(err)
		}
		if string(again) != string(first) {
			t.Fatalf("run %d differs:\n%s\n%s", i, again, first)
		}
	}
}

func TestDeterministicEncodeIndented(t *testing.T) {
	got, err := DeterministicEncodeIndented(map[string]int{"b": 2, "a": 1}, "  ")
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"a\": 1,\n  \"b\": 2\n}"
	if string(got) != want {
		t.Errorf("DeterministicEncodeIndented() = %q, want %q", got, want)
	}
}

func TestDeterministicEncode_Unsupported(t *testing.T) {
	if _, err := DeterministicEncode(map[string]interface{}{"c": make(chan int)}); err == nil {
		t.Error("DeterministicEncode() should fail on a channel")
	}
}

func TestRoundFloat(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.1234564, 0.123456},
		{0.1234567, 0.123457},
		{2, 2},
		{-1.0000004, -1},
	}
	for _, tt := range tests {
		if got := RoundFloat(tt.in); got != tt.want {
			t.Errorf("RoundFloat(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
