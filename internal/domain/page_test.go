package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextPageStatusExhaustive(t *testing.T) {
	t.Parallel()

	// Every legal (status, event) pair. Anything missing must be rejected.
	legal := map[PageStatus]map[PageEvent]PageStatus{
		PageStatusPending: {
			PageEventStart:      PageStatusQueued,
			PageEventRegenerate: PageStatusQueued,
		},
		PageStatusQueued: {
			PageEventPicked:     PageStatusGenerating,
			PageEventRegenerate: PageStatusQueued,
		},
		PageStatusGenerating: {
			PageEventSucceeded:       PageStatusComplete,
			PageEventFailedRetryable: PageStatusQueued,
			PageEventFailedTerminal:  PageStatusFailed,
			PageEventRegenerate:      PageStatusQueued,
		},
		PageStatusComplete: {
			PageEventRegenerate: PageStatusQueued,
		},
		PageStatusFailed: {
			PageEventRetry:      PageStatusQueued,
			PageEventRegenerate: PageStatusQueued,
		},
	}

	for _, from := range PageStatuses {
		for _, ev := range PageEvents {
			got, err := NextPageStatus(from, ev)
			want, ok := legal[from][ev]
			if ok {
				require.NoError(t, err, "%s on %s", ev, from)
				assert.Equal(t, want, got, "%s on %s", ev, from)
				continue
			}
			require.Error(t, err, "%s on %s should be illegal", ev, from)
			assert.True(t, errors.Is(err, ErrIllegalTransition))
			assert.Empty(t, got)
		}
	}
}

func TestNextPageStatusUnknownInputs(t *testing.T) {
	t.Parallel()

	_, err := NextPageStatus("archived", PageEventStart)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = NextPageStatus(PageStatusPending, "explode")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestPageApply(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := created.Add(time.Hour)
	p := &Page{Status: PageStatusPending, UpdatedAt: created}

	require.NoError(t, p.Apply(PageEventStart, now))
	assert.Equal(t, PageStatusQueued, p.Status)
	assert.Equal(t, now, p.UpdatedAt)

	err := p.Apply(PageEventSucceeded, now.Add(time.Minute))
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, PageStatusQueued, p.Status, "status unchanged on illegal transition")
	assert.Equal(t, now, p.UpdatedAt)
}

func TestPageAssetKeys(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	png, thumb := PageAssetKeys(id, 7)
	assert.Equal(t, "uploads/11111111-2222-3333-4444-555555555555/pages/0007.png", png)
	assert.Equal(t, "uploads/11111111-2222-3333-4444-555555555555/pages/0007_thumb.jpg", thumb)
	assert.Equal(t, "uploads/11111111-2222-3333-4444-555555555555/source.pdf", SourcePDFKey(id))
}
