package payload

import (
	"bytes"
	"testing"
)

func TestNext_ExactLength(t *testing.T) {
	gen := NewSeeded(1, 2)
	for _, n := range []int{1, 7, 8, 9, 1024, 1<<20 + 3} {
		buf := gen.Next(n)
		if len(buf) != n {
			t.Errorf("Next(%d) returned %d bytes", n, len(buf))
		}
	}
}

func TestNext_ZeroAndNegative(t *testing.T) {
	gen := NewSeeded(1, 2)
	if got := gen.Next(0); len(got) != 0 {
		t.Errorf("Next(0) returned %d bytes, want empty", len(got))
	}
	if got := gen.Next(-5); len(got) != 0 {
		t.Errorf("Next(-5) returned %d bytes, want empty", len(got))
	}
}

func TestNext_ConsecutiveBuffersDiffer(t *testing.T) {
	gen := NewSeeded(42, 7)
	first := gen.Next(4096)
	second := gen.Next(4096)
	if bytes.Equal(first, second) {
		t.Error("consecutive buffers from one generator are identical")
	}
}

func TestNew_IndependentGeneratorsDiverge(t *testing.T) {
	a := New()
	b := New()
	if bytes.Equal(a.Next(4096), b.Next(4096)) {
		t.Error("two independent generators produced identical payloads")
	}
}

func TestFill_ShortBufferTail(t *testing.T) {
	gen := NewSeeded(3, 9)
	buf := make([]byte, 3)
	gen.Fill(buf)
	// Three bytes is below one PRNG word; all we require is that the buffer
	// is not left untouched every time.
	zero := []byte{0, 0, 0}
	if bytes.Equal(buf, zero) {
		second := make([]byte, 3)
		gen.Fill(second)
		if bytes.Equal(second, zero) {
			t.Error("Fill left short buffers zeroed")
		}
	}
}

func BenchmarkFill1MiB(b *testing.B) {
	gen := NewSeeded(1, 1)
	buf := make([]byte, 1<<20)
	b.SetBytes(int64(len(buf)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		gen.Fill(buf)
	}
}
