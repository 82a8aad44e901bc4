package cache

import (
	"sync"
	"testing"
)

func TestMapStore_SetGet(t *testing.T) {
	s := NewMapStore[int64, int64](Options{ConcurrencySafe: false})
	s.Set(100, 25)
	if v, ok := s.Get(100); !ok || v != 25 {
		t.Fatalf("expected hit with value 25, got ok=%v v=%v", ok, v)
	}
	if s.Len() != 1 {
		t.Fatalf("expected Len=1, got %d", s.Len())
	}
}

func TestMapStore_SetOverwrites(t *testing.T) {
	s := NewMapStore[int64, int64](Options{})
	s.Set(1, 10)
	s.Set(1, -3)
	if v := s.GetOr(1, 0); v != -3 {
		t.Fatalf("expected overwritten value -3, got %d", v)
	}
	if s.Len() != 1 {
		t.Fatalf("expected Len=1 after overwrite, got %d", s.Len())
	}
}

func TestMapStore_GetOr_Missing(t *testing.T) {
	s := NewMapStore[int64, int64](Options{ConcurrencySafe: true})
	if v := s.GetOr(42, 0); v != 0 {
		t.Fatalf("expected fallback 0, got %d", v)
	}
	if _, ok := s.Get(42); ok {
		t.Fatalf("GetOr must not create an entry")
	}
}

func TestMapStore_RangeAndClear(t *testing.T) {
	s := NewMapStore[int, int](Options{ConcurrencySafe: true})
	for i := 0; i < 5; i++ {
		s.Set(i, i*10)
	}

	seen := map[int]int{}
	s.Range(func(k, v int) bool {
		seen[k] = v
		return true
	})
	if len(seen) != 5 || seen[3] != 30 {
		t.Fatalf("unexpected range result: %v", seen)
	}

	visited := 0
	s.Range(func(int, int) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Fatalf("expected Range to stop after first entry, visited %d", visited)
	}

	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("expected Len=0 after Clear, got %d", s.Len())
	}
}

func TestMapStore_ConcurrencySafe(t *testing.T) {
	keys := 100
	rounds := 200

	s := NewMapStore[int, int](Options{ConcurrencySafe: true})
	var wg sync.WaitGroup
	for i := 0; i < keys; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				s.Set(i, r)
				_, _ = s.Get(i)
			}
		}()
	}
	wg.Wait()
	for i := 0; i < keys; i++ {
		if v, ok := s.Get(i); !ok || v != rounds-1 {
			t.Fatalf("expected last write %d for key %d, got ok=%v v=%d", rounds-1, i, ok, v)
		}
	}
}
