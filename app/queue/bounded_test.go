package queue

import (
	"sync"
	"testing"
)

func TestBoundedDropQueueEvictsOldest(t *testing.T) {
	q := NewBoundedDropQueue[int](3)

	for i := 1; i <= 5; i++ {
		q.Push(i)
	}

	if q.Size() != 3 {
		t.Fatalf("Expected size 3, got %d", q.Size())
	}
	if !q.IsFull() {
		t.Error("Expected queue to be full")
	}
	if q.Dropped() != 2 {
		t.Errorf("Expected 2 dropped items, got %d", q.Dropped())
	}

	got := q.DrainAll()
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, got)
			break
		}
	}
}

func TestBoundedDropQueuePushAll(t *testing.T) {
	tests := []struct {
		name        string
		capacity    int
		prefill     []string
		batch       []string
		wantEvicted int
		want        []string
	}{
		{
			name:        "fits",
			capacity:    4,
			prefill:     []string{"a"},
			batch:       []string{"b", "c"},
			wantEvicted: 0,
			want:        []string{"a", "b", "c"},
		},
		{
			name:        "overflows prefilled",
			capacity:    3,
			prefill:     []string{"a", "b"},
			batch:       []string{"c", "d", "e"},
			wantEvicted: 2,
			want:        []string{"c", "d", "e"},
		},
		{
			name:        "batch larger than capacity",
			capacity:    2,
			batch:       []string{"a", "b", "c", "d", "e"},
			wantEvicted: 3,
			want:        []string{"d", "e"},
		},
		{
			name:     "empty batch",
			capacity: 2,
			prefill:  []string{"a"},
			want:     []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewBoundedDropQueue[string](tt.capacity)
			for _, item := range tt.prefill {
				q.Push(item)
			}

			evicted := q.PushAll(tt.batch)
			if evicted != tt.wantEvicted {
				t.Errorf("Expected %d evicted, got %d", tt.wantEvicted, evicted)
			}

			got := q.DrainAll()
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("Expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestBoundedDropQueueDrainTwice(t *testing.T) {
	q := NewBoundedDropQueue[int](2)
	q.Push(1)

	first := q.DrainAll()
	if len(first) != 1 {
		t.Fatalf("Expected 1 item on first drain, got %d", len(first))
	}

	second := q.DrainAll()
	if second == nil {
		t.Fatal("Expected empty slice, got nil")
	}
	if len(second) != 0 {
		t.Errorf("Expected empty second drain, got %v", second)
	}
	if q.IsFull() {
		t.Error("Expected drained queue not to be full")
	}
}

func TestBoundedDropQueueWrapAround(t *testing.T) {
	q := NewBoundedDropQueue[int](3)
	q.PushAll([]int{1, 2, 3})
	q.DrainAll()

	q.PushAll([]int{4, 5})
	q.Push(6)
	q.Push(7)

	got := q.DrainAll()
	want := []int{5, 6, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
}

func TestBoundedDropQueueInvalidCapacity(t *testing.T) {
	q := NewBoundedDropQueue[int](0)
	if q.Capacity() != 1 {
		t.Errorf("Expected capacity clamped to 1, got %d", q.Capacity())
	}
}

func TestBoundedDropQueueConcurrentPush(t *testing.T) {
	q := NewBoundedDropQueue[int](50)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	if q.Size() != 50 {
		t.Errorf("Expected size 50, got %d", q.Size())
	}
	if q.Dropped() != 350 {
		t.Errorf("Expected 350 dropped, got %d", q.Dropped())
	}
}
