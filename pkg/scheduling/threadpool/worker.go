package threadpool

import (
	"time"

	"go.uber.org/zap"
)

// worker represents a single worker in the pool. Workers live until the
// pool is deleted.
type worker struct {
	id   int
	pool *Pool
}

// run is the main loop for a worker.
func (w *worker) run() {
	p := w.pool
	defer p.workerWg.Done()

	if p.config.OnWorkerStart != nil {
		p.config.OnWorkerStart(w.id)
	}
	if p.config.OnWorkerStop != nil {
		defer p.config.OnWorkerStop(w.id)
	}

	timer := time.NewTimer(p.config.IdleWait)
	timer.Stop()

	for {
		task, ok := p.next(timer)
		if !ok {
			p.log.Debug("worker stopped", zap.Int("worker", w.id))
			return
		}
		w.execute(task)
	}
}

// execute runs a task that next already moved to StateRunning, outside
// the pool lock.
func (w *worker) execute(task *Task) {
	p := w.pool

	if p.config.OnTaskStart != nil {
		p.config.OnTaskStart(w.id, task)
	}

	start := time.Now()
	p.stats.queueWait(start.Sub(task.pushedAt))

	value, err := task.call()
	duration := time.Since(start)
	p.stats.ran(duration, err)
	if err != nil {
		p.log.Warn("task panicked", zap.Int("worker", w.id), zap.Error(err))
	}

	if p.finish(task, value, err) {
		p.release(task, sideWorker)
	}

	if p.config.OnTaskComplete != nil {
		p.config.OnTaskComplete(w.id, Result{
			Task:     task,
			Value:    value,
			Err:      err,
			Duration: duration,
			WorkerID: w.id,
		})
	}
}
