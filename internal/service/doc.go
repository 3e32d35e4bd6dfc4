// Package service contains the pipeline's use cases.
//
// GenerationService owns the page state machine: it starts generation for
// an upload, runs one attempt per delivered job, schedules retries with
// backoff and jitter, and handles manual retry and regenerate requests.
// PublishService copies approved questions into the bank and locks them.
// QuestionService applies review decisions. UploadService accepts source
// PDFs and seeds their pages. OpsService summarizes pipeline health.
//
// Every multi-row change runs as one unit of work through store.Transactor,
// so the same code runs against postgres and the in-memory store. Queue
// jobs are enqueued inside the unit of work: if enqueueing fails nothing is
// committed, and if the commit fails the delivered job finds the page in an
// unexpected status and does nothing.
package service
