package jobs

import (
	"sync"

	"fetcharr/internal/utils/logging"
)

// Pool is a fixed-size set of workers draining a FIFO queue of job IDs.
// Submission never blocks the caller; each worker runs one job's full
// lifecycle to completion before claiming another.
type Pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []string
	closed bool
	wg     sync.WaitGroup
	run    func(id string)
}

// NewPool starts workers goroutines running run for each submitted ID.
func NewPool(workers int, run func(id string)) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{run: run}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for w := 1; w <= workers; w++ {
		go p.worker(w)
	}
	return p
}

// Submit enqueues a job ID for execution. Returns false after Shutdown.
func (p *Pool) Submit(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.queue = append(p.queue, id)
	p.cond.Signal()
	return true
}

// Shutdown stops admission and waits for in-flight jobs to finish or observe
// cancellation. Queued jobs still run; engine calls are never forcibly
// killed here.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) worker(n int) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		id := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		logging.D(2, "Worker %d claimed job %s", n, id)
		p.run(id)
	}
}
