package typedefs

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestCoalescerJoinsConcurrentCalls(t *testing.T) {
	c := newCoalescer[string, int]()
	var calls int32
	start := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			v, _ := c.Do("key", func() (int, error) {
				atomic.AddInt32(&calls, 1)
				return 42, nil
			})
			results[idx] = v
		}(i)
	}
	close(start)
	wg.Wait()

	if calls != 1 {
		t.Errorf("expected exactly one underlying call, got %d", calls)
	}
	for _, v := range results {
		if v != 42 {
			t.Errorf("expected all callers to observe 42, got %d", v)
		}
	}
}

func TestCoalescerSequentialCallsRunIndependently(t *testing.T) {
	c := newCoalescer[string, int]()
	var calls int32

	for i := 0; i < 3; i++ {
		c.Do("key", func() (int, error) {
			atomic.AddInt32(&calls, 1)
			return 1, nil
		})
	}

	if calls != 3 {
		t.Errorf("expected three independent calls after each completed, got %d", calls)
	}
}
