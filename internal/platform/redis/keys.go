package redis

// keys names every Redis key used by one queue.
type keys struct {
	jobs       string // hash: job id -> record
	deliveries string // hash: job id -> delivery count
	wait       string // list of visible job ids
	delayed    string // zset: job id scored by visible-at ms
	active     string // zset: job id scored by leased-at ms
	failed     string // hash: job id -> failure reason
	completed  string // counter
	paused     string // flag
	dedupe     string // prefix for per-id idempotency markers
}

func queueKeys(prefix, name string) keys {
	base := prefix + ":queue:" + name + ":"
	return keys{
		jobs:       base + "jobs",
		deliveries: base + "deliveries",
		wait:       base + "wait",
		delayed:    base + "delayed",
		active:     base + "active",
		failed:     base + "failed",
		completed:  base + "completed",
		paused:     base + "paused",
		dedupe:     base + "dedupe:",
	}
}
