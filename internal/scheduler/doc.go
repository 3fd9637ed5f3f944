// Package scheduler is the admission controller for render jobs: it bounds
// concurrent renderer subprocesses, queues excess submissions FIFO, rejects
// work when the queue is full, and guarantees that admission slots are
// released on every terminal path.
package scheduler
