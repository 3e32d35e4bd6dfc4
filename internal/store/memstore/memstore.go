// Package memstore is an in-memory implementation of every store contract
// and of store.Transactor. A unit of work runs against a private copy of
// the data while holding the store lock, and the copy replaces the live
// data only when the unit succeeds. Units are therefore atomic and fully
// serialized, which matches the row locking the postgres stores rely on.
package memstore

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/store"
)

type data struct {
	subjects  map[uuid.UUID]domain.Subject
	chapters  map[uuid.UUID]domain.Chapter
	uploads   map[uuid.UUID]domain.Upload
	pages     map[uuid.UUID]domain.Page
	attempts  map[uuid.UUID]domain.GenerationAttempt
	questions map[uuid.UUID]domain.Question
	bank      map[uuid.UUID]domain.BankEntry
	usage     map[uuid.UUID]domain.UsageEvent
	sequences map[uuid.UUID]int64
}

func newData() *data {
	return &data{
		subjects:  map[uuid.UUID]domain.Subject{},
		chapters:  map[uuid.UUID]domain.Chapter{},
		uploads:   map[uuid.UUID]domain.Upload{},
		pages:     map[uuid.UUID]domain.Page{},
		attempts:  map[uuid.UUID]domain.GenerationAttempt{},
		questions: map[uuid.UUID]domain.Question{},
		bank:      map[uuid.UUID]domain.BankEntry{},
		usage:     map[uuid.UUID]domain.UsageEvent{},
		sequences: map[uuid.UUID]int64{},
	}
}

// clone copies every table. Entities are stored by value and pointer
// fields are only ever replaced, never written through, so a shallow
// copy of each map isolates the snapshot.
func (d *data) clone() *data {
	return &data{
		subjects:  maps.Clone(d.subjects),
		chapters:  maps.Clone(d.chapters),
		uploads:   maps.Clone(d.uploads),
		pages:     maps.Clone(d.pages),
		attempts:  maps.Clone(d.attempts),
		questions: maps.Clone(d.questions),
		bank:      maps.Clone(d.bank),
		usage:     maps.Clone(d.usage),
		sequences: maps.Clone(d.sequences),
	}
}

// Store holds all tables in memory.
type Store struct {
	mu   sync.Mutex
	data *data
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: newData()}
}

var _ store.Transactor = (*Store)(nil)

// Stores returns repositories that each lock the store per call.
func (s *Store) Stores() store.Stores {
	return s.bind(view{s: s})
}

// WithinTx runs fn against a snapshot and publishes it if fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn store.UnitFn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(ctx, s.bind(view{tx: snapshot})); err != nil {
		return err
	}
	s.data = snapshot
	return nil
}

func (s *Store) bind(v view) store.Stores {
	return store.Stores{
		Uploads:   uploadStore{v},
		Pages:     pageStore{v},
		Attempts:  attemptStore{v},
		Questions: questionStore{v},
		Bank:      bankStore{v},
		Usage:     usageStore{v},
	}
}

// PutSubject seeds a subject.
func (s *Store) PutSubject(subject domain.Subject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.subjects[subject.ID] = subject
}

// PutChapter seeds a chapter.
func (s *Store) PutChapter(chapter domain.Chapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.chapters[chapter.ID] = chapter
}

// BankEntries returns every bank entry ordered by subject and sequence.
func (s *Store) BankEntries() []domain.BankEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.BankEntry, 0, len(s.data.bank))
	for _, e := range s.data.bank {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubjectID != out[j].SubjectID {
			return out[i].SubjectID.String() < out[j].SubjectID.String()
		}
		return out[i].SequenceNo < out[j].SequenceNo
	})
	return out
}

// UsageEvents returns every usage event ordered by creation time.
func (s *Store) UsageEvents() []domain.UsageEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UsageEvent, 0, len(s.data.usage))
	for _, e := range s.data.usage {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// view resolves which tables a repository call works on: the snapshot of
// the enclosing unit of work, or the live data under the store lock.
type view struct {
	s  *Store
	tx *data
}

func (v view) do(fn func(d *data) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return fn(v.s.data)
}

func idSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func copyOf[T any](v T) *T {
	return &v
}
