package worker

import (
	"context"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed set of goroutines. Submission never
// blocks: a saturated pool drops the task and the poll loop retries on a
// later tick.
type Pool struct {
	tasks   chan Task
	quit    chan struct{}
	wg      sync.WaitGroup
	workers int
	log     *zerolog.Logger
}

func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := zerolog.Nop()
	return &Pool{
		tasks:   make(chan Task, workers),
		quit:    make(chan struct{}),
		workers: workers,
		log:     &logger,
	}
}

// WithLogger replaces the default discard logger.
func (p *Pool) WithLogger(logger *zerolog.Logger) *Pool {
	p.log = logger
	return p
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		case task := <-p.tasks:
			if task == nil {
				continue
			}
			if err := task(ctx); err != nil {
				p.log.Error().Err(err).Int("worker", id).Msg("task failed")
			}
		}
	}
}

func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
}

// Submit enqueues a task, reporting false when the pool is saturated.
func (p *Pool) Submit(task Task) bool {
	if task == nil {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}
