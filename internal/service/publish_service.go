package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/events"
	"github.com/phrazzld/quizgen-api/internal/platform/logger"
	"github.com/phrazzld/quizgen-api/internal/store"
)

const opBulkPublish = "bulk_publish"

// PublishResult pairs each published question with its new bank entry.
// Both slices follow the order of the request.
type PublishResult struct {
	QuestionIDs  []uuid.UUID
	BankEntryIDs []uuid.UUID
}

// PublishService copies approved questions into the question bank.
type PublishService struct {
	tx      store.Transactor
	emitter events.EventEmitter
	now     func() time.Time
	logger  *slog.Logger
}

// NewPublishService creates a PublishService.
func NewPublishService(
	tx store.Transactor,
	emitter events.EventEmitter,
	logger *slog.Logger,
	opts ...Option,
) (*PublishService, error) {
	const op = "create_publish_service"
	switch {
	case tx == nil:
		return nil, missingDependency(op, "transactor")
	case emitter == nil:
		return nil, missingDependency(op, "event emitter")
	case logger == nil:
		return nil, missingDependency(op, "logger")
	}
	set := applyOptions(opts)
	return &PublishService{
		tx:      tx,
		emitter: emitter,
		now:     set.now,
		logger:  logger.With("component", "publish_service"),
	}, nil
}

// BulkPublish locks every question and creates its bank entry with the
// next sequence number of the question's subject. Every question must
// exist, be approved and not yet be locked; otherwise nothing is published.
//
// The questions are row-locked for the whole unit of work and the bank
// holds at most one entry per source question, so concurrent calls over
// overlapping ids publish each question once.
func (s *PublishService) BulkPublish(
	ctx context.Context,
	questionIDs []uuid.UUID,
	reviewerID uuid.UUID,
) (res *PublishResult, err error) {
	ctx, span := tracer.Start(ctx, "publish.bulk",
		trace.WithAttributes(attribute.Int("questions.count", len(questionIDs))))
	defer func() { endSpan(span, err) }()

	ids := uniqueIDs(questionIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one question id is required", domain.ErrValidation)
	}

	now := s.now()
	res = &PublishResult{
		QuestionIDs:  make([]uuid.UUID, 0, len(ids)),
		BankEntryIDs: make([]uuid.UUID, 0, len(ids)),
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		byID, err := lockQuestions(ctx, st, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if q := byID[id]; q.Status != domain.QuestionStatusApproved {
				return fmt.Errorf("%w: %s is %s", domain.ErrNotApproved, id, q.Status)
			}
		}
		for _, id := range ids {
			if byID[id].IsLockedAfterAdd {
				return fmt.Errorf("%w: %s", domain.ErrAlreadyLocked, id)
			}
		}

		codes := map[uuid.UUID]string{}
		for _, id := range ids {
			subjectID := byID[id].Classification.SubjectID
			code, ok := codes[subjectID]
			if !ok {
				if code, err = st.Bank.SubjectCode(ctx, subjectID); err != nil {
					return err
				}
				codes[subjectID] = code
			}
			seq, err := st.Bank.NextSequence(ctx, subjectID)
			if err != nil {
				return err
			}

			entry := &domain.BankEntry{
				ID:               uuid.New(),
				SourceQuestionID: id,
				SubjectID:        subjectID,
				SubjectCode:      code,
				SequenceNo:       seq,
				CreatedAt:        now,
			}
			if err := st.Bank.Create(ctx, entry); err != nil {
				return err
			}
			if err := st.Questions.MarkLocked(ctx, id, reviewerID, now); err != nil {
				return err
			}
			res.QuestionIDs = append(res.QuestionIDs, id)
			res.BankEntryIDs = append(res.BankEntryIDs, entry.ID)
		}
		return nil
	})
	if err != nil {
		return nil, NewServiceError(opBulkPublish, "failed to publish questions", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("questions published",
		"count", len(res.QuestionIDs), "reviewer_id", reviewerID)
	emitEvent(ctx, s.emitter, s.logger, events.QuestionsPublished, events.PublishedPayload{
		ReviewerID:   reviewerID,
		QuestionIDs:  res.QuestionIDs,
		BankEntryIDs: res.BankEntryIDs,
	})
	return res, nil
}

// lockQuestions locks the questions and fails with store.ErrQuestionNotFound
// naming the first id that does not exist.
func lockQuestions(ctx context.Context, st store.Stores, ids []uuid.UUID) (map[uuid.UUID]*domain.Question, error) {
	found, err := st.Questions.GetByIDsForUpdate(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*domain.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%w: %s", store.ErrQuestionNotFound, id)
		}
	}
	return byID, nil
}

// uniqueIDs drops duplicates and the nil uuid, keeping first occurrences in order.
func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
