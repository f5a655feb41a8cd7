// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfqueue_test

import (
	"sort"
	"sync"
	"testing"

	"code.hybscloud.com/fiber/internal/lfqueue"
)

func TestQueueFIFOSingleProducer(t *testing.T) {
	q := lfqueue.New[int]()
	for i := 0; i < 100; i++ {
		q.Push(i)
	}
	for i := 0; i < 100; i++ {
		v, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d: queue empty early", i)
		}
		if v != i {
			t.Fatalf("pop %d: got %d, want %d", i, v, i)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("pop on empty queue returned ok")
	}
}

func TestQueueEmpty(t *testing.T) {
	q := lfqueue.New[int]()
	if !q.Empty() {
		t.Fatal("new queue should be empty")
	}
	q.Push(1)
	if q.Empty() {
		t.Fatal("queue with one element should not be empty")
	}
	q.Pop()
	if !q.Empty() {
		t.Fatal("drained queue should be empty")
	}
}

// TestQueueConcurrentStress pushes from many producers and drains from many
// consumers, checking that no item is lost or duplicated (spec §8 property
// 3). Per-producer order is not checked: items are collected from several
// consumers and sorted before comparison.
func TestQueueConcurrentStress(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	skipRace(t)

	const producers = 8
	const perProducer = 2000

	q := lfqueue.New[[2]int]()
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push([2]int{p, i})
			}
		}(p)
	}

	results := make([][]int, producers)
	var mu sync.Mutex
	var consumerWG sync.WaitGroup
	done := make(chan struct{})
	for c := 0; c < 4; c++ {
		consumerWG.Add(1)
		go func() {
			defer consumerWG.Done()
			for {
				select {
				case <-done:
					// drain remaining items before exiting.
					for {
						v, ok := q.Pop()
						if !ok {
							return
						}
						mu.Lock()
						results[v[0]] = append(results[v[0]], v[1])
						mu.Unlock()
					}
				default:
					v, ok := q.Pop()
					if !ok {
						continue
					}
					mu.Lock()
					results[v[0]] = append(results[v[0]], v[1])
					mu.Unlock()
				}
			}
		}()
	}

	wg.Wait()
	close(done)
	consumerWG.Wait()

	for p := 0; p < producers; p++ {
		got := results[p]
		if len(got) != perProducer {
			t.Fatalf("producer %d: got %d items, want %d", p, len(got), perProducer)
		}
		sorted := append([]int(nil), got...)
		sort.Ints(sorted)
		for i, v := range sorted {
			if v != i {
				t.Fatalf("producer %d: missing or duplicate item, sorted[%d]=%d", p, i, v)
			}
		}
	}
}
