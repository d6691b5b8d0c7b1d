package threadpool

const minQueueCapacity = 16

// taskQueue is a FIFO ring buffer of waiting tasks. It is not safe for
// concurrent use; the pool mutates it only while holding its mutex.
type taskQueue struct {
	ring []*Task
	// Capacity mask (capacity - 1) for fast modulo
	mask int
	head int
	size int
}

func (q *taskQueue) len() int {
	return q.size
}

func (q *taskQueue) push(t *Task) {
	if q.size == len(q.ring) {
		q.grow()
	}
	q.ring[(q.head+q.size)&q.mask] = t
	q.size++
}

// pop removes and returns the head task, or nil when the queue is empty.
func (q *taskQueue) pop() *Task {
	if q.size == 0 {
		return nil
	}
	t := q.ring[q.head]
	q.ring[q.head] = nil
	q.head = (q.head + 1) & q.mask
	q.size--
	return t
}

// grow doubles the ring, keeping capacity a power of two.
func (q *taskQueue) grow() {
	capacity := len(q.ring) * 2
	if capacity < minQueueCapacity {
		capacity = minQueueCapacity
	}
	ring := make([]*Task, capacity)
	for i := 0; i < q.size; i++ {
		ring[i] = q.ring[(q.head+i)&q.mask]
	}
	q.ring = ring
	q.mask = capacity - 1
	q.head = 0
}
