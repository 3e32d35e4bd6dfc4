package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/store"
)

type uploadStore struct{ v view }

var _ store.UploadStore = uploadStore{}

func (s uploadStore) Create(_ context.Context, upload *domain.Upload) error {
	return s.v.do(func(d *data) error {
		if _, ok := d.uploads[upload.ID]; ok {
			return fmt.Errorf("%w: upload %s", store.ErrDuplicate, upload.ID)
		}
		d.uploads[upload.ID] = *upload
		return nil
	})
}

func (s uploadStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Upload, error) {
	var out *domain.Upload
	err := s.v.do(func(d *data) error {
		u, ok := d.uploads[id]
		if !ok {
			return store.ErrUploadNotFound
		}
		out = copyOf(u)
		return nil
	})
	return out, err
}

func (s uploadStore) GetChapter(_ context.Context, id uuid.UUID) (*domain.Chapter, error) {
	var out *domain.Chapter
	err := s.v.do(func(d *data) error {
		c, ok := d.chapters[id]
		if !ok {
			return store.ErrChapterNotFound
		}
		out = copyOf(c)
		return nil
	})
	return out, err
}

func (s uploadStore) ListByChapter(_ context.Context, chapterID uuid.UUID, limit int) ([]*domain.Upload, error) {
	var out []*domain.Upload
	err := s.v.do(func(d *data) error {
		for _, u := range d.uploads {
			if u.Classification.ChapterID == chapterID {
				out = append(out, copyOf(u))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

type pageStore struct{ v view }

var _ store.PageStore = pageStore{}

func (s pageStore) CreateBatch(_ context.Context, pages []*domain.Page) error {
	return s.v.do(func(d *data) error {
		for _, p := range pages {
			if _, ok := d.uploads[p.UploadID]; !ok {
				return fmt.Errorf("%w: page references missing upload", store.ErrInvalidEntity)
			}
			if _, ok := d.pages[p.ID]; ok {
				return fmt.Errorf("%w: page %s", store.ErrDuplicate, p.ID)
			}
			d.pages[p.ID] = *p
		}
		return nil
	})
}

func (s pageStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Page, error) {
	var out *domain.Page
	err := s.v.do(func(d *data) error {
		p, ok := d.pages[id]
		if !ok {
			return store.ErrPageNotFound
		}
		out = copyOf(p)
		return nil
	})
	return out, err
}

// GetByIDForUpdate needs no extra locking: units of work already hold the store lock.
func (s pageStore) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Page, error) {
	return s.GetByID(ctx, id)
}

func (s pageStore) ListByUpload(_ context.Context, uploadID uuid.UUID) ([]*domain.Page, error) {
	var out []*domain.Page
	err := s.v.do(func(d *data) error {
		out = filterPages(d, func(p domain.Page) bool { return p.UploadID == uploadID })
		return nil
	})
	return out, err
}

func (s pageStore) ListByStatusForUpdate(
	_ context.Context,
	uploadID uuid.UUID,
	status domain.PageStatus,
) ([]*domain.Page, error) {
	var out []*domain.Page
	err := s.v.do(func(d *data) error {
		out = filterPages(d, func(p domain.Page) bool {
			return p.UploadID == uploadID && p.Status == status
		})
		return nil
	})
	return out, err
}

func (s pageStore) ListStale(
	_ context.Context,
	status domain.PageStatus,
	cutoff time.Time,
	limit int,
) ([]*domain.Page, error) {
	var out []*domain.Page
	err := s.v.do(func(d *data) error {
		out = filterPages(d, func(p domain.Page) bool {
			return p.Status == status && p.UpdatedAt.Before(cutoff)
		})
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (s pageStore) Update(_ context.Context, page *domain.Page) error {
	return s.v.do(func(d *data) error {
		current, ok := d.pages[page.ID]
		if !ok {
			return store.ErrPageNotFound
		}
		current.Status = page.Status
		current.Language = page.Language
		current.LastGeneratedAt = page.LastGeneratedAt
		current.UpdatedAt = page.UpdatedAt
		d.pages[page.ID] = current
		return nil
	})
}

func filterPages(d *data, keep func(domain.Page) bool) []*domain.Page {
	out := make([]*domain.Page, 0)
	for _, p := range d.pages {
		if keep(p) {
			out = append(out, copyOf(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageNumber < out[j].PageNumber })
	return out
}

type attemptStore struct{ v view }

var _ store.AttemptStore = attemptStore{}

func (s attemptStore) Create(_ context.Context, attempt *domain.GenerationAttempt) error {
	return s.v.do(func(d *data) error {
		if _, ok := d.pages[attempt.PageID]; !ok {
			return fmt.Errorf("%w: attempt references missing page", store.ErrInvalidEntity)
		}
		for _, a := range d.attempts {
			if a.PageID == attempt.PageID && a.AttemptNo == attempt.AttemptNo {
				return store.ErrDuplicateAttempt
			}
		}
		d.attempts[attempt.ID] = *attempt
		return nil
	})
}

func (s attemptStore) CountByPage(_ context.Context, pageID uuid.UUID) (int, error) {
	n := 0
	err := s.v.do(func(d *data) error {
		for _, a := range d.attempts {
			if a.PageID == pageID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s attemptStore) GetLatestByPage(_ context.Context, pageID uuid.UUID) (*domain.GenerationAttempt, error) {
	var out *domain.GenerationAttempt
	err := s.v.do(func(d *data) error {
		for _, a := range d.attempts {
			if a.PageID == pageID && (out == nil || a.AttemptNo > out.AttemptNo) {
				out = copyOf(a)
			}
		}
		if out == nil {
			return store.ErrAttemptNotFound
		}
		return nil
	})
	return out, err
}

func (s attemptStore) MarkSucceeded(_ context.Context, id uuid.UUID, responseExcerpt string) error {
	return s.v.do(func(d *data) error {
		a, ok := d.attempts[id]
		if !ok {
			return store.ErrAttemptNotFound
		}
		a.IsSuccess = true
		a.ResponseExcerpt = copyOf(responseExcerpt)
		d.attempts[id] = a
		return nil
	})
}

func (s attemptStore) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	return s.v.do(func(d *data) error {
		a, ok := d.attempts[id]
		if !ok {
			return store.ErrAttemptNotFound
		}
		a.ErrorMessage = copyOf(message)
		d.attempts[id] = a
		return nil
	})
}

func (s attemptStore) ListByPages(_ context.Context, pageIDs []uuid.UUID) ([]*domain.GenerationAttempt, error) {
	want := idSet(pageIDs)
	var out []*domain.GenerationAttempt
	err := s.v.do(func(d *data) error {
		for _, a := range d.attempts {
			if _, ok := want[a.PageID]; ok {
				out = append(out, copyOf(a))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].PageID != out[j].PageID {
			return out[i].PageID.String() < out[j].PageID.String()
		}
		return out[i].AttemptNo > out[j].AttemptNo
	})
	return out, err
}

func (s attemptStore) ListRecentFailures(_ context.Context, since time.Time, limit int) ([]store.FailedAttempt, error) {
	var out []store.FailedAttempt
	err := s.v.do(func(d *data) error {
		for _, a := range d.attempts {
			if a.IsSuccess || a.ErrorMessage == nil || a.CreatedAt.Before(since) {
				continue
			}
			p := d.pages[a.PageID]
			out = append(out, store.FailedAttempt{Attempt: a, PageNumber: p.PageNumber, UploadID: p.UploadID})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Attempt.CreatedAt.After(out[j].Attempt.CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

type questionStore struct{ v view }

var _ store.QuestionStore = questionStore{}

func (s questionStore) CreateBatch(_ context.Context, questions []*domain.Question) error {
	return s.v.do(func(d *data) error {
		for _, q := range questions {
			if _, ok := d.pages[q.PageID]; !ok {
				return fmt.Errorf("%w: question references missing page", store.ErrInvalidEntity)
			}
			d.questions[q.ID] = *q
		}
		return nil
	})
}

func (s questionStore) ListByPage(_ context.Context, pageID uuid.UUID) ([]*domain.Question, error) {
	var out []*domain.Question
	err := s.v.do(func(d *data) error {
		for _, q := range d.questions {
			if q.PageID == pageID {
				out = append(out, copyOf(q))
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].LineIndex < out[j].LineIndex })
	return out, err
}

func (s questionStore) CountByPages(_ context.Context, pageIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	want := idSet(pageIDs)
	counts := make(map[uuid.UUID]int, len(pageIDs))
	err := s.v.do(func(d *data) error {
		for _, q := range d.questions {
			if _, ok := want[q.PageID]; ok {
				counts[q.PageID]++
			}
		}
		return nil
	})
	return counts, err
}

func (s questionStore) HasLockedByPage(_ context.Context, pageID uuid.UUID) (bool, error) {
	locked := false
	err := s.v.do(func(d *data) error {
		for _, q := range d.questions {
			if q.PageID == pageID && q.IsLockedAfterAdd {
				locked = true
				break
			}
		}
		return nil
	})
	return locked, err
}

func (s questionStore) DeleteByPage(_ context.Context, pageID uuid.UUID) (int64, error) {
	var n int64
	err := s.v.do(func(d *data) error {
		for id, q := range d.questions {
			if q.PageID != pageID {
				continue
			}
			if q.IsLockedAfterAdd {
				return store.ErrLocked
			}
			delete(d.questions, id)
			n++
		}
		return nil
	})
	return n, err
}

func (s questionStore) GetByIDsForUpdate(_ context.Context, ids []uuid.UUID) ([]*domain.Question, error) {
	var out []*domain.Question
	err := s.v.do(func(d *data) error {
		for id := range idSet(ids) {
			if q, ok := d.questions[id]; ok {
				out = append(out, copyOf(q))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, err
}

func (s questionStore) UpdateStatus(
	_ context.Context,
	ids []uuid.UUID,
	status domain.QuestionStatus,
	reviewerID uuid.UUID,
	at time.Time,
) error {
	return s.v.do(func(d *data) error {
		for _, id := range ids {
			q, ok := d.questions[id]
			if !ok {
				return store.ErrQuestionNotFound
			}
			if q.IsLockedAfterAdd {
				return store.ErrLocked
			}
			q.Status = status
			q.ReviewedBy = copyOf(reviewerID)
			q.UpdatedAt = at
			d.questions[id] = q
		}
		return nil
	})
}

func (s questionStore) DeleteByIDs(_ context.Context, ids []uuid.UUID) error {
	return s.v.do(func(d *data) error {
		for _, id := range ids {
			q, ok := d.questions[id]
			if !ok {
				return store.ErrQuestionNotFound
			}
			if q.IsLockedAfterAdd {
				return store.ErrLocked
			}
			delete(d.questions, id)
		}
		return nil
	})
}

func (s questionStore) MarkLocked(_ context.Context, id uuid.UUID, reviewerID uuid.UUID, at time.Time) error {
	return s.v.do(func(d *data) error {
		q, ok := d.questions[id]
		if !ok {
			return store.ErrQuestionNotFound
		}
		if q.IsLockedAfterAdd {
			return store.ErrLocked
		}
		q.IsLockedAfterAdd = true
		q.ReviewedBy = copyOf(reviewerID)
		q.UpdatedAt = at
		d.questions[id] = q
		return nil
	})
}

func (s questionStore) UpdateContent(_ context.Context, q *domain.Question) error {
	return s.v.do(func(d *data) error {
		current, ok := d.questions[q.ID]
		if !ok {
			return store.ErrQuestionNotFound
		}
		if current.IsLockedAfterAdd {
			return store.ErrLocked
		}
		current.Stem = q.Stem
		current.Options = q.Options
		current.CorrectOption = q.CorrectOption
		current.Explanation = q.Explanation
		current.Difficulty = q.Difficulty
		current.ReviewedBy = q.ReviewedBy
		current.UpdatedAt = q.UpdatedAt
		d.questions[q.ID] = current
		return nil
	})
}

func (s questionStore) List(_ context.Context, f store.QuestionFilter) ([]*domain.Question, error) {
	var out []*domain.Question
	pageNumbers := map[uuid.UUID]int{}
	err := s.v.do(func(d *data) error {
		for _, q := range d.questions {
			if matchesFilter(q, f) && (f.Status == "" || q.Status == f.Status) {
				out = append(out, copyOf(q))
				pageNumbers[q.PageID] = d.pages[q.PageID].PageNumber
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		pi, pj := pageNumbers[out[i].PageID], pageNumbers[out[j].PageID]
		if pi != pj {
			return pi < pj
		}
		if out[i].LineIndex != out[j].LineIndex {
			return out[i].LineIndex < out[j].LineIndex
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, err
}

func (s questionStore) CountByStatus(_ context.Context, f store.QuestionFilter) (map[domain.QuestionStatus]int, error) {
	counts := map[domain.QuestionStatus]int{}
	err := s.v.do(func(d *data) error {
		for _, q := range d.questions {
			if matchesFilter(q, f) {
				counts[q.Status]++
			}
		}
		return nil
	})
	return counts, err
}

// matchesFilter applies every field of f except Status.
func matchesFilter(q domain.Question, f store.QuestionFilter) bool {
	switch {
	case f.ClassID != 0 && q.Classification.ClassID != f.ClassID:
		return false
	case f.SubjectID != uuid.Nil && q.Classification.SubjectID != f.SubjectID:
		return false
	case f.ChapterID != uuid.Nil && q.Classification.ChapterID != f.ChapterID:
		return false
	case f.PageID != uuid.Nil && q.PageID != f.PageID:
		return false
	}
	return true
}

type bankStore struct{ v view }

var _ store.BankStore = bankStore{}

func (s bankStore) NextSequence(_ context.Context, subjectID uuid.UUID) (int64, error) {
	var next int64
	err := s.v.do(func(d *data) error {
		next = d.sequences[subjectID] + 1
		d.sequences[subjectID] = next
		return nil
	})
	return next, err
}

func (s bankStore) SubjectCode(_ context.Context, subjectID uuid.UUID) (string, error) {
	var code string
	err := s.v.do(func(d *data) error {
		subject, ok := d.subjects[subjectID]
		if !ok {
			return store.ErrSubjectNotFound
		}
		code = subject.Code
		return nil
	})
	return code, err
}

func (s bankStore) Create(_ context.Context, entry *domain.BankEntry) error {
	return s.v.do(func(d *data) error {
		for _, e := range d.bank {
			if e.SourceQuestionID == entry.SourceQuestionID {
				return store.ErrDuplicateBankEntry
			}
			if e.SubjectID == entry.SubjectID && e.SequenceNo == entry.SequenceNo {
				return fmt.Errorf("%w: subject sequence %d", store.ErrDuplicate, entry.SequenceNo)
			}
		}
		d.bank[entry.ID] = *entry
		return nil
	})
}

func (s bankStore) GetBySourceQuestions(
	_ context.Context,
	questionIDs []uuid.UUID,
) (map[uuid.UUID]*domain.BankEntry, error) {
	want := idSet(questionIDs)
	out := make(map[uuid.UUID]*domain.BankEntry)
	err := s.v.do(func(d *data) error {
		for _, e := range d.bank {
			if _, ok := want[e.SourceQuestionID]; ok {
				out[e.SourceQuestionID] = copyOf(e)
			}
		}
		return nil
	})
	return out, err
}

type usageStore struct{ v view }

var _ store.UsageStore = usageStore{}

func (s usageStore) Create(_ context.Context, event *domain.UsageEvent) error {
	return s.v.do(func(d *data) error {
		d.usage[event.ID] = *event
		return nil
	})
}

func (s usageStore) Totals(_ context.Context, since time.Time) (store.UsageTotals, error) {
	var totals store.UsageTotals
	err := s.v.do(func(d *data) error {
		for _, e := range d.usage {
			if e.CreatedAt.Before(since) {
				continue
			}
			totals.EventCount++
			totals.EstimatedCostUSD += e.EstimatedCostUSD
			if e.TokensIn != nil {
				totals.TokensIn += int64(*e.TokensIn)
			}
			if e.TokensOut != nil {
				totals.TokensOut += int64(*e.TokensOut)
			}
		}
		return nil
	})
	return totals, err
}
