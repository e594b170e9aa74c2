// Package queue holds the ordered set of download targets and exposes a
// pull interface that is safe for concurrent workers.
package queue

import (
	"sync"

	"github.com/Ian-Costa18/TorDownloader/internal/utils"
)

type Queue struct {
	mu      sync.Mutex
	targets []*utils.Target
	next    int
}

// New builds a queue over the given targets. Pull order is slice order;
// failed targets are never re-enqueued.
func New(targets []*utils.Target) *Queue {
	return &Queue{targets: targets}
}

// Next returns the next target, or false once the queue is exhausted.
func (q *Queue) Next() (*utils.Target, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.next >= len(q.targets) {
		return nil, false
	}
	t := q.targets[q.next]
	q.next++
	return t, true
}

func (q *Queue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.targets) - q.next
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.targets)
}
