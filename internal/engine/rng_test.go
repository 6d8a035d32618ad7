package engine

import (
	"testing"
)

// floats draws count floats from a generator placed at cursor.
func floats(seeds Seeds, cursor uint64, count int) []float64 {
	bg := NewByteGenerator(seeds, cursor)
	out := make([]float64, count)
	for i := range out {
		out[i] = bg.NextFloat()
	}
	return out
}

func TestNextFloat(t *testing.T) {
	seeds := Seeds{Server: "test_server_seed", Client: "test_client_seed", Nonce: 1}
	tests := []struct {
		name    string
		cursor  uint64
		count   int
		wantLen int
	}{
		{"basic float generation", 0, 1, 1},
		{"multiple floats", 0, 8, 8},
		{"cursor boundary test", 31, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := floats(seeds, tt.cursor, tt.count)
			if len(got) != tt.wantLen {
				t.Errorf("floats() returned %d floats, want %d", len(got), tt.wantLen)
			}
			for i, f := range got {
				if f < 0 || f >= 1 {
					t.Errorf("Float %d is out of range [0, 1): %f", i, f)
				}
			}
		})
	}
}

func TestFloatsDeterministic(t *testing.T) {
	seeds := Seeds{Server: "server", Client: "client", Nonce: 42}
	a := floats(seeds, 0, 16)
	b := floats(seeds, 0, 16)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Float %d differs between runs: %f vs %f", i, a[i], b[i])
		}
	}

	other := floats(Seeds{Server: "server", Client: "client", Nonce: 43}, 0, 16)
	same := 0
	for i := range a {
		if a[i] == other[i] {
			same++
		}
	}
	if same == len(a) {
		t.Error("different nonces produced identical streams")
	}
}

func TestStreamMatchesGenerator(t *testing.T) {
	seeds := Seeds{Server: "server", Client: "client", Nonce: 7}
	want := floats(seeds, 0, 20)
	s := NewStream(seeds)
	for i, w := range want {
		if got := s.Float64(); got != w {
			t.Errorf("draw %d: Expected %f, got %f", i, w, got)
		}
	}
}

func TestCursorOffset(t *testing.T) {
	seeds := Seeds{Server: "server", Client: "client", Nonce: 1}
	all := floats(seeds, 0, 10)
	// cursor is a byte offset; each float consumes 4 bytes
	tail := floats(seeds, 8, 8)
	for i := range tail {
		if tail[i] != all[i+2] {
			t.Errorf("float %d: Expected %f, got %f", i, all[i+2], tail[i])
		}
	}
}
