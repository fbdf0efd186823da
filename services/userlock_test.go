package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserLockHandsOffInArrivalOrder(t *testing.T) {
	locks := newUserLocks()
	const user = "u1"

	locks.acquire(user)

	const waiters = 5
	order := make([]int, 0, waiters)
	var mu sync.Mutex
	var wg sync.WaitGroup
	started := make(chan struct{}, waiters)

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started <- struct{}{}
			locks.acquire(user)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			locks.release(user)
		}(i)
		// Let waiter i enqueue before spawning waiter i+1.
		<-started
		time.Sleep(10 * time.Millisecond)
	}

	locks.release(user)
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestUserLockDifferentUsersDoNotContend(t *testing.T) {
	locks := newUserLocks()

	locks.acquire("u1")

	done := make(chan struct{})
	go func() {
		locks.acquire("u2")
		locks.release("u2")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second user blocked behind first user's lock")
	}

	locks.release("u1")
}

func TestUserLockSerializesCriticalSection(t *testing.T) {
	locks := newUserLocks()
	const user = "u1"

	var inside, max int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.acquire(user)
			mu.Lock()
			inside++
			if inside > max {
				max = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			locks.release(user)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, max)
}
