package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueKeysAreNamespaced(t *testing.T) {
	t.Parallel()

	k := queueKeys("quizgen", "generation")
	assert.Equal(t, "quizgen:queue:generation:wait", k.wait)
	assert.Equal(t, "quizgen:queue:generation:delayed", k.delayed)
	assert.Equal(t, "quizgen:queue:generation:dedupe:", k.dedupe)

	other := queueKeys("quizgen", "rasterization")
	assert.NotEqual(t, k.jobs, other.jobs)
}
