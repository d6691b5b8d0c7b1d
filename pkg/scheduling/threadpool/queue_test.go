package threadpool

import (
	"testing"

	"github.com/vnykmshr/taskpool/internal/testutil"
)

func TestTaskQueueEmpty(t *testing.T) {
	var q taskQueue
	testutil.AssertEqual(t, q.len(), 0)
	if q.pop() != nil {
		t.Fatal("pop on empty queue should return nil")
	}
}

func TestTaskQueueFIFOAcrossGrowth(t *testing.T) {
	var q taskQueue
	tasks := make([]*Task, 100)
	for i := range tasks {
		tasks[i] = NewTask(nil, i)
		q.push(tasks[i])
	}
	testutil.AssertEqual(t, q.len(), 100)

	for i := range tasks {
		got := q.pop()
		if got != tasks[i] {
			t.Fatalf("pop %d returned task with arg %v", i, got.arg)
		}
	}
	testutil.AssertEqual(t, q.len(), 0)
}

func TestTaskQueueWrapAround(t *testing.T) {
	var q taskQueue
	next := 0
	want := 0

	// Keep the ring partially full while head travels around it several times.
	for round := 0; round < 10; round++ {
		for i := 0; i < 11; i++ {
			q.push(NewTask(nil, next))
			next++
		}
		for i := 0; i < 9; i++ {
			got := q.pop()
			testutil.AssertEqual(t, got.arg.(int), want)
			want++
		}
	}
	for q.len() > 0 {
		testutil.AssertEqual(t, q.pop().arg.(int), want)
		want++
	}
	testutil.AssertEqual(t, want, next)
}
