package parallel

import (
	"sync/atomic"
	"testing"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestForChunksCoversRangeOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 3}

	n := 103
	hits := make([]int32, n)
	var chunks int64

	ForChunks(n, func(start, end int) {
		atomic.AddInt64(&chunks, 1)
		for i := start; i < end; i++ {
			atomic.AddInt32(&hits[i], 1)
		}
	}, cfg)

	for i, h := range hits {
		if h != 1 {
			t.Errorf("index %d visited %d times", i, h)
		}
	}
	if chunks < 2 {
		t.Errorf("expected work to be split, got %d chunk(s)", chunks)
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Sequential()

	var order []int
	For(100, func(i int) {
		order = append(order, i)
	}, cfg)

	if len(order) != 100 {
		t.Fatalf("Expected 100, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("sequential order broken at %d: %d", i, v)
		}
	}
}

func TestFor_SmallChunk(t *testing.T) {
	// Small work units fall back to one chunk.
	cfg := DefaultConfig()

	var chunks int64
	ForChunks(cfg.MinChunkSize-1, func(_, _ int) {
		atomic.AddInt64(&chunks, 1)
	}, cfg)

	if chunks != 1 {
		t.Errorf("Expected 1 chunk, got %d", chunks)
	}
}

func TestFor_Empty(t *testing.T) {
	called := false
	ForChunks(0, func(_, _ int) { called = true }, DefaultConfig())
	if called {
		t.Error("f should not be called for n == 0")
	}
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	n := 10000

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		cfgSeq := cfg
		cfgSeq.Enabled = false
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfgSeq)
		}
	})
}
