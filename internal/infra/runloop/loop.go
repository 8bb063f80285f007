// Package runloop provides the single dispatch goroutine every scan and
// delivery runs on. Other goroutines hand work to it with Submit.
package runloop

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

// Task is a unit of work executed on the loop goroutine.
type Task func(ctx context.Context)

// Loop executes submitted tasks one at a time, in submission order.
type Loop struct {
	tasks    chan Task
	done     chan struct{}
	stopOnce sync.Once
	log      *logrus.Entry
}

func New(buffer int, log *logrus.Entry) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		tasks: make(chan Task, buffer),
		done:  make(chan struct{}),
		log:   log,
	}
}

// Submit queues task for execution and is safe to call from any goroutine.
// It blocks while the queue is full and reports false once the loop has stopped.
func (l *Loop) Submit(task Task) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case <-l.done:
		return false
	case l.tasks <- task:
		return true
	}
}

// Run executes tasks until ctx is cancelled. Queued tasks that have not
// started when ctx is cancelled are dropped.
func (l *Loop) Run(ctx context.Context) {
	defer l.stop()
	for {
		select {
		case <-ctx.Done():
			if n := len(l.tasks); n > 0 {
				l.log.WithField("dropped", n).Warn("Run loop stopped with queued tasks")
			}
			return
		case task := <-l.tasks:
			l.exec(ctx, task)
		}
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

func (l *Loop) exec(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.log.WithFields(logrus.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("Recovered panic in run loop task")
		}
	}()
	task(ctx)
}
