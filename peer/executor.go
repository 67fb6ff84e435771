package peer

// Executor runs submitted tasks one at a time, in submission order, per
// spec §4.6.2 ("event executor: expected to be single-threaded so events
// are observed in order"). A Session either shares a pool-owned Executor
// (spec §4.7) or, when constructed standalone, owns a private one.
type Executor interface {
	Submit(task func())
}

// NewExecutor returns a new single-threaded Executor with the given task
// queue depth. peerpool.Pool uses this to build the shared event executor
// spec §4.7 describes; a standalone Session uses it internally for the
// same purpose when constructed without one.
func NewExecutor(queueDepth int) Executor {
	return newSerialExecutor(queueDepth)
}

// serialExecutor is a single consumer goroutine draining a task queue,
// the "single-thread event executor" spec §4.6.2/§4.7 calls for. There is
// no bounded-worker-pool primitive in the standard library analogous to a
// JVM single-thread ExecutorService, so this is the direct, idiomatic Go
// rendition: one goroutine, one channel.
type serialExecutor struct {
	tasks chan func()
	done  chan struct{}
}

func newSerialExecutor(queueDepth int) *serialExecutor {
	e := &serialExecutor{
		tasks: make(chan func(), queueDepth),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *serialExecutor) run() {
	for {
		select {
		case task := <-e.tasks:
			task()
		case <-e.done:
			return
		}
	}
}

// Submit enqueues task. It is a no-op if the executor has been closed.
func (e *serialExecutor) Submit(task func()) {
	select {
	case e.tasks <- task:
	case <-e.done:
	}
}

// Close stops the consumer goroutine after any already-submitted tasks
// still buffered ahead of the close race may or may not run — callers
// that need every submitted task to run before Close returns should
// coordinate that externally (Session does, via its close-event listener
// ordering).
func (e *serialExecutor) Close() {
	select {
	case <-e.done:
	default:
		close(e.done)
	}
}
