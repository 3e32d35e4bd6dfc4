// Package task runs background job consumers. A TaskRunner leases jobs
// from named queues with bounded concurrency per queue, hands each to its
// Handler, and acknowledges or fails the job with the queue. A monitor
// returns jobs whose worker went away to the queue and asks the pipeline
// to recover pages stuck mid attempt.
package task
