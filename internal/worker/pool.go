package worker

import (
	"log/slog"
	"sync"

	"github.com/baharkarakas/txn-aggregator/internal/metrics"
)

type task func()

// Pool runs submitted tasks on a fixed set of goroutines.
type Pool struct {
	wg     sync.WaitGroup
	jobs   chan task
	once   sync.Once
	logger *slog.Logger
}

func NewPool(n, queue int, logger *slog.Logger) *Pool {
	if n < 1 {
		n = 1
	}
	if queue < 0 {
		queue = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{jobs: make(chan task, queue), logger: logger}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
				p.run(job)
			}
		}()
	}
	return p
}

func (p *Pool) run(job task) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("worker task panicked", "err", rec)
		}
	}()
	job()
}

// TrySubmit enqueues f unless the queue is full. It must not be called after Stop.
func (p *Pool) TrySubmit(f task) bool {
	select {
	case p.jobs <- f:
		metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
		return true
	default:
		return false
	}
}

// Stop drains queued tasks and waits for the workers to exit.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.jobs) })
	p.wg.Wait()
}
