package workers

import (
	"log/slog"
	"time"

	"github.com/alitto/pond"
)

// ConnectionPool bounds the number of concurrently served messaging
// sockets to a configured cap. A single "task" is the entire lifetime of
// one connection's reader, so the pool's running-worker count is the
// connection broker's live connection count, and its queue (also
// maxConnections deep) is the backlog of accepted sockets waiting for a
// worker: once every worker is busy and the queue is full, Submit blocks the
// accept loop until a connection terminates and frees a slot.
type ConnectionPool struct {
	pool *pond.WorkerPool
}

// NewConnectionPool builds a pool sized to maxConnections.
func NewConnectionPool(maxConnections int) *ConnectionPool {
	if maxConnections < 1 {
		maxConnections = 1
	}
	return &ConnectionPool{
		pool: pond.New(
			maxConnections,
			maxConnections,
			pond.MinWorkers(1),
			pond.IdleTimeout(30*time.Second),
		),
	}
}

// Submit runs task on the pool. It blocks if every worker is already
// serving a connection and the queue is full — that backpressure is what
// makes MaxConnections an actual cap rather than an advisory limit.
func (p *ConnectionPool) Submit(task func()) {
	p.pool.Submit(task)
}

// Stats reports live pool occupancy, surfaced by the health endpoint.
func (p *ConnectionPool) Stats() map[string]interface{} {
	return map[string]interface{}{
		"running_workers":  p.pool.RunningWorkers(),
		"idle_workers":     p.pool.IdleWorkers(),
		"submitted_tasks":  p.pool.SubmittedTasks(),
		"waiting_tasks":    p.pool.WaitingTasks(),
		"successful_tasks": p.pool.SuccessfulTasks(),
		"failed_tasks":     p.pool.FailedTasks(),
	}
}

// Shutdown stops accepting new connection tasks and waits for every
// running one to finish, mirroring the broker's own graceful shutdown.
func (p *ConnectionPool) Shutdown() {
	slog.Info("shutting down connection pool")
	p.pool.StopAndWait()
}
