package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/objectstore"
	"github.com/phrazzld/quizgen-api/internal/platform/logger"
	"github.com/phrazzld/quizgen-api/internal/store"
)

const (
	opBulkUpdateStatus = "bulk_update_status"
	opBulkDelete       = "bulk_delete"
	opListQuestions    = "list_questions"
	opUpdateQuestion   = "update_question"
)

var editValidator = validator.New(validator.WithRequiredStructEnabled())

// QuestionEdit holds the reviewer-editable fields of a question.
type QuestionEdit struct {
	Stem          string            `validate:"min=3,max=2000"`
	OptionA       string            `validate:"min=1,max=1000"`
	OptionB       string            `validate:"min=1,max=1000"`
	OptionC       string            `validate:"min=1,max=1000"`
	OptionD       string            `validate:"min=1,max=1000"`
	CorrectOption domain.OptionKey  `validate:"oneof=a b c d"`
	Explanation   string            `validate:"min=1,max=2000"`
	Difficulty    domain.Difficulty `validate:"oneof=easy medium hard"`
}

func (e QuestionEdit) normalized() QuestionEdit {
	e.Stem = strings.TrimSpace(e.Stem)
	e.OptionA = strings.TrimSpace(e.OptionA)
	e.OptionB = strings.TrimSpace(e.OptionB)
	e.OptionC = strings.TrimSpace(e.OptionC)
	e.OptionD = strings.TrimSpace(e.OptionD)
	e.Explanation = strings.TrimSpace(e.Explanation)
	return e
}

func (e QuestionEdit) validate() error {
	err := editValidator.Struct(e)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fe.Field())
		}
		return fmt.Errorf("%w: invalid %s", domain.ErrValidation, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", domain.ErrValidation, err)
}

func (e QuestionEdit) applyTo(q *domain.Question) {
	q.Stem = e.Stem
	q.Options = domain.Options{A: e.OptionA, B: e.OptionB, C: e.OptionC, D: e.OptionD}
	q.CorrectOption = e.CorrectOption
	q.Explanation = e.Explanation
	q.Difficulty = e.Difficulty
}

// QuestionListItem is a question in the review pool with the page it came
// from and its bank entry once published.
type QuestionListItem struct {
	Question     *domain.Question
	PageNumber   int
	PageImageURL string
	ThumbURL     string
	BankEntry    *domain.BankEntry
}

// QuestionList is one review pool listing. StatusCounts covers the filter
// without its status and always holds every status.
type QuestionList struct {
	Items        []QuestionListItem
	Total        int
	StatusCounts map[domain.QuestionStatus]int
}

// QuestionService applies review decisions to generated questions.
// Questions already published to the bank cannot be changed.
type QuestionService struct {
	tx      store.Transactor
	objects objectstore.Store
	signTTL time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewQuestionService creates a QuestionService.
func NewQuestionService(
	tx store.Transactor,
	objects objectstore.Store,
	logger *slog.Logger,
	opts ...Option,
) (*QuestionService, error) {
	const op = "create_question_service"
	switch {
	case tx == nil:
		return nil, missingDependency(op, "transactor")
	case objects == nil:
		return nil, missingDependency(op, "object store")
	case logger == nil:
		return nil, missingDependency(op, "logger")
	}
	set := applyOptions(opts)
	return &QuestionService{
		tx:      tx,
		objects: objects,
		signTTL: set.signTTL,
		now:     set.now,
		logger:  logger.With("component", "question_service"),
	}, nil
}

// List returns the questions matching f ordered by page number and line
// index, with signed page image links and bank entries.
func (s *QuestionService) List(ctx context.Context, f store.QuestionFilter) (*QuestionList, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown question status %q", domain.ErrValidation, f.Status)
	}
	st := s.tx.Stores()

	questions, err := st.Questions.List(ctx, f)
	if err != nil {
		return nil, NewServiceError(opListQuestions, "failed to list questions", err)
	}
	counts, err := st.Questions.CountByStatus(ctx, f)
	if err != nil {
		return nil, NewServiceError(opListQuestions, "failed to count questions", err)
	}
	statusCounts := map[domain.QuestionStatus]int{
		domain.QuestionStatusNotChecked: 0,
		domain.QuestionStatusApproved:   0,
		domain.QuestionStatusRejected:   0,
		domain.QuestionStatusNeedsFix:   0,
	}
	for status, n := range counts {
		statusCounts[status] = n
	}

	ids := make([]uuid.UUID, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	bank, err := st.Bank.GetBySourceQuestions(ctx, ids)
	if err != nil {
		return nil, NewServiceError(opListQuestions, "failed to load bank entries", err)
	}

	pages := map[uuid.UUID]QuestionListItem{}
	items := make([]QuestionListItem, 0, len(questions))
	for _, q := range questions {
		item, ok := pages[q.PageID]
		if !ok {
			if item, err = s.pageLinks(ctx, st, q.PageID); err != nil {
				return nil, NewServiceError(opListQuestions, "failed to sign page links", err)
			}
			pages[q.PageID] = item
		}
		item.Question = q
		item.BankEntry = bank[q.ID]
		items = append(items, item)
	}

	return &QuestionList{Items: items, Total: len(items), StatusCounts: statusCounts}, nil
}

// pageLinks returns a list item carrying the page's number and signed links.
func (s *QuestionService) pageLinks(ctx context.Context, st store.Stores, pageID uuid.UUID) (QuestionListItem, error) {
	page, err := st.Pages.GetByID(ctx, pageID)
	if err != nil {
		return QuestionListItem{}, err
	}
	image, err := s.objects.SignedURL(ctx, page.PNGKey, s.signTTL)
	if err != nil {
		return QuestionListItem{}, err
	}
	thumb, err := s.objects.SignedURL(ctx, page.ThumbKey, s.signTTL)
	if err != nil {
		return QuestionListItem{}, err
	}
	return QuestionListItem{PageNumber: page.PageNumber, PageImageURL: image, ThumbURL: thumb}, nil
}

// Update replaces a question's editable fields and records the reviewer.
// Published questions are refused with ErrLockConflict.
func (s *QuestionService) Update(
	ctx context.Context,
	id uuid.UUID,
	edit QuestionEdit,
	reviewerID uuid.UUID,
) (*domain.Question, error) {
	edit = edit.normalized()
	if err := edit.validate(); err != nil {
		return nil, err
	}

	var updated *domain.Question
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		byID, err := lockQuestions(ctx, st, []uuid.UUID{id})
		if err != nil {
			return err
		}
		q := byID[id]
		if q.IsLockedAfterAdd {
			return fmt.Errorf("%w: question %s is published", domain.ErrLockConflict, id)
		}
		edit.applyTo(q)
		q.ReviewedBy = &reviewerID
		q.UpdatedAt = s.now()
		if err := st.Questions.UpdateContent(ctx, q); err != nil {
			if errors.Is(err, store.ErrLocked) {
				return fmt.Errorf("%w: %v", domain.ErrLockConflict, err)
			}
			return err
		}
		updated = q
		return nil
	})
	if err != nil {
		return nil, NewServiceError(opUpdateQuestion, "failed to update question", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("question updated",
		"question_id", id, "reviewer_id", reviewerID)
	return updated, nil
}

// BulkUpdateStatus sets the review status of every question. It returns
// the number of questions updated.
func (s *QuestionService) BulkUpdateStatus(
	ctx context.Context,
	questionIDs []uuid.UUID,
	status domain.QuestionStatus,
	reviewerID uuid.UUID,
) (int, error) {
	if !status.Valid() {
		return 0, fmt.Errorf("%w: unknown question status %q", domain.ErrValidation, status)
	}
	ids := uniqueIDs(questionIDs)
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: at least one question id is required", domain.ErrValidation)
	}

	now := s.now()
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		if err := lockUnpublished(ctx, st, ids); err != nil {
			return err
		}
		return st.Questions.UpdateStatus(ctx, ids, status, reviewerID, now)
	})
	if err != nil {
		return 0, NewServiceError(opBulkUpdateStatus, "failed to update question status", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("question status updated",
		"count", len(ids), "status", status, "reviewer_id", reviewerID)
	return len(ids), nil
}

// BulkDelete removes the questions. It returns the number deleted.
func (s *QuestionService) BulkDelete(ctx context.Context, questionIDs []uuid.UUID) (int, error) {
	ids := uniqueIDs(questionIDs)
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: at least one question id is required", domain.ErrValidation)
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		if err := lockUnpublished(ctx, st, ids); err != nil {
			return err
		}
		return st.Questions.DeleteByIDs(ctx, ids)
	})
	if err != nil {
		return 0, NewServiceError(opBulkDelete, "failed to delete questions", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("questions deleted", "count", len(ids))
	return len(ids), nil
}

// lockUnpublished locks the questions and fails if any is missing or published.
func lockUnpublished(ctx context.Context, st store.Stores, ids []uuid.UUID) error {
	byID, err := lockQuestions(ctx, st, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if byID[id].IsLockedAfterAdd {
			return fmt.Errorf("%w: question %s is published", domain.ErrLockConflict, id)
		}
	}
	return nil
}
