package app

import "sync"

// serialQueue runs enqueued functions one at a time in push order.
// The worker goroutine starts on demand and exits when the queue
// drains, so idle projects cost nothing.
type serialQueue struct {
	mu      sync.Mutex
	ops     []func()
	running bool
}

func (q *serialQueue) push(op func()) {
	q.mu.Lock()
	q.ops = append(q.ops, op)
	start := !q.running
	if start {
		q.running = true
	}
	q.mu.Unlock()
	if start {
		go q.run()
	}
}

// idle reports whether the worker has exited with nothing queued.
// Only an idle queue may be discarded; a draining worker must keep
// ownership so later pushes stay serialized behind it.
func (q *serialQueue) idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.running && len(q.ops) == 0
}

func (q *serialQueue) run() {
	for {
		q.mu.Lock()
		if len(q.ops) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		op := q.ops[0]
		q.ops = q.ops[1:]
		q.mu.Unlock()
		op()
	}
}
