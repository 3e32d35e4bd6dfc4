package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/quizgen-api/internal/backoff"
	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/events"
	"github.com/phrazzld/quizgen-api/internal/generation"
	"github.com/phrazzld/quizgen-api/internal/mocks"
	"github.com/phrazzld/quizgen-api/internal/objectstore"
	"github.com/phrazzld/quizgen-api/internal/queue"
	"github.com/phrazzld/quizgen-api/internal/queue/memqueue"
	"github.com/phrazzld/quizgen-api/internal/store/memstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testClock moves forward by a millisecond on every read unless frozen, so
// rows written in sequence have ordered timestamps.
type testClock struct {
	mu     sync.Mutex
	now    time.Time
	frozen bool
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.frozen {
		c.now = c.now.Add(time.Millisecond)
	}
	return c.now
}

// Freeze stops the clock from moving on reads. Advance still moves it.
func (c *testClock) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = true
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingQueue remembers every accepted batch.
type recordingQueue struct {
	queue.Queue
	mu   sync.Mutex
	jobs []queue.Job
}

func (q *recordingQueue) Enqueue(ctx context.Context, jobs ...queue.Job) error {
	if err := q.Queue.Enqueue(ctx, jobs...); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, jobs...)
	return nil
}

func (q *recordingQueue) Jobs() []queue.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Job(nil), q.jobs...)
}

func intPtr(v int) *int { return &v }

func option(key, text string) generation.GeneratedOption {
	return generation.GeneratedOption{Key: key, Text: text}
}

func validQuestion(line int, stem string) generation.GeneratedQuestion {
	return generation.GeneratedQuestion{
		LineIndex:     line,
		Stem:          stem,
		Difficulty:    "medium",
		Options:       []generation.GeneratedOption{option("a", "one"), option("b", "two"), option("c", "three"), option("d", "four")},
		CorrectOption: "b",
		Explanation:   "because",
	}
}

// validResponse lists questions out of line order on purpose.
func validResponse() *generation.Response {
	return &generation.Response{
		Questions: []generation.GeneratedQuestion{
			validQuestion(2, "third"),
			validQuestion(0, "first"),
			validQuestion(1, "second"),
		},
		Language:  "bn",
		TokensIn:  intPtr(1000),
		TokensOut: intPtr(500),
	}
}

type fixture struct {
	t        *testing.T
	store    *memstore.Store
	queue    *recordingQueue
	objects  *objectstore.Memory
	gen      *mocks.MockGenerator
	events   *mocks.RecordingHandler
	clock    *testClock
	subject  domain.Subject
	chapter  domain.Chapter
	svc      *GenerationService
	publish  *PublishService
	question *QuestionService
}

func newFixture(t *testing.T, steps ...mocks.GenerateStep) *fixture {
	t.Helper()
	if len(steps) == 0 {
		steps = append(steps, mocks.Succeed(validResponse()))
	}

	clock := newTestClock()
	st := memstore.New()
	subject := domain.Subject{ID: uuid.New(), ClassID: 9, Code: "PHY", Name: "Physics"}
	chapter := domain.Chapter{ID: uuid.New(), SubjectID: subject.ID, ClassID: 9, Name: "Motion"}
	st.PutSubject(subject)
	st.PutChapter(chapter)

	q := &recordingQueue{Queue: memqueue.New(discardLogger(), memqueue.WithClock(clock.Now))}
	objects := objectstore.NewMemory("test-bucket")
	gen := mocks.NewMockGeneratorWithSteps(steps...)
	handler := &mocks.RecordingHandler{}
	emitter := events.NewInMemoryEventEmitter(discardLogger())
	emitter.RegisterHandler(handler)

	table := backoff.NewTable(backoff.DefaultDelays, backoff.DefaultJitter)
	table.Rand = func() float64 { return 0.2 }

	svc, err := NewGenerationService(st, q, gen, table, objects, emitter, GenerationConfig{
		MaxAttempts:   3,
		Model:         "test-model",
		PromptVersion: "v1",
		StaleAfter:    10 * time.Minute,
		SignTTL:       time.Hour,
		Rates:         generation.Rates{InputPer1K: 0.0007, OutputPer1K: 0.0028},
	}, discardLogger(), WithClock(clock.Now))
	require.NoError(t, err)

	publish, err := NewPublishService(st, emitter, discardLogger(), WithClock(clock.Now))
	require.NoError(t, err)
	question, err := NewQuestionService(st, objects, discardLogger(), WithClock(clock.Now), WithSignTTL(time.Hour))
	require.NoError(t, err)

	return &fixture{
		t:        t,
		store:    st,
		queue:    q,
		objects:  objects,
		gen:      gen,
		events:   handler,
		clock:    clock,
		subject:  subject,
		chapter:  chapter,
		svc:      svc,
		publish:  publish,
		question: question,
	}
}

// consumer returns the memory queue behind the fixture for dequeuing.
func (f *fixture) consumer() *memqueue.Queue {
	return f.queue.Queue.(*memqueue.Queue)
}

// deliver leases the next visible generation job, runs it and completes it.
func (f *fixture) deliver(ctx context.Context) {
	f.t.Helper()
	c := f.consumer()
	d, err := c.Dequeue(ctx, queue.Generation)
	require.NoError(f.t, err)
	require.NotNil(f.t, d, "no generation job ready")
	var payload queue.GenerationPayload
	require.NoError(f.t, d.Decode(&payload))
	require.NoError(f.t, f.svc.ProcessJob(ctx, payload))
	require.NoError(f.t, c.Complete(ctx, d))
}

func (f *fixture) classification() domain.Classification {
	return domain.Classification{ClassID: f.chapter.ClassID, SubjectID: f.subject.ID, ChapterID: f.chapter.ID}
}

// seedUpload creates an upload with n pending pages.
func (f *fixture) seedUpload(n int) (*domain.Upload, []*domain.Page) {
	f.t.Helper()
	ctx := context.Background()
	now := f.clock.Now()
	upload := &domain.Upload{
		ID:               uuid.New(),
		Classification:   f.classification(),
		OriginalFilename: "book.pdf",
		MimeType:         "application/pdf",
		Bucket:           "test-bucket",
		PageCount:        n,
		CreatedAt:        now,
	}
	upload.PDFKey = domain.SourcePDFKey(upload.ID)
	require.NoError(f.t, f.store.Stores().Uploads.Create(ctx, upload))

	pages := make([]*domain.Page, n)
	for i := range pages {
		png, thumb := domain.PageAssetKeys(upload.ID, i+1)
		pages[i] = &domain.Page{
			ID:         uuid.New(),
			UploadID:   upload.ID,
			PageNumber: i + 1,
			Status:     domain.PageStatusPending,
			PNGKey:     png,
			ThumbKey:   thumb,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}
	require.NoError(f.t, f.store.Stores().Pages.CreateBatch(ctx, pages))
	return upload, pages
}

func (f *fixture) page(id uuid.UUID) *domain.Page {
	f.t.Helper()
	p, err := f.store.Stores().Pages.GetByID(context.Background(), id)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) questions(pageID uuid.UUID) []*domain.Question {
	f.t.Helper()
	qs, err := f.store.Stores().Questions.ListByPage(context.Background(), pageID)
	require.NoError(f.t, err)
	return qs
}

// attempts returns the page's attempts oldest first.
func (f *fixture) attempts(pageID uuid.UUID) []*domain.GenerationAttempt {
	f.t.Helper()
	as, err := f.store.Stores().Attempts.ListByPages(context.Background(), []uuid.UUID{pageID})
	require.NoError(f.t, err)
	for i, j := 0, len(as)-1; i < j; i, j = i+1, j-1 {
		as[i], as[j] = as[j], as[i]
	}
	return as
}

// seedQuestions stores questions on the page with the given statuses.
func (f *fixture) seedQuestions(pageID uuid.UUID, statuses ...domain.QuestionStatus) []*domain.Question {
	f.t.Helper()
	now := f.clock.Now()
	qs := make([]*domain.Question, len(statuses))
	for i, status := range statuses {
		qs[i] = &domain.Question{
			ID:             uuid.New(),
			PageID:         pageID,
			Classification: f.classification(),
			Status:         status,
			Difficulty:     domain.DifficultyEasy,
			Language:       domain.LanguageEnglish,
			LineIndex:      i,
			Stem:           "seeded",
			CorrectOption:  domain.OptionA,
			Explanation:    "seeded",
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}
	require.NoError(f.t, f.store.Stores().Questions.CreateBatch(context.Background(), qs))
	return qs
}

func (f *fixture) lock(questionID uuid.UUID) {
	f.t.Helper()
	require.NoError(f.t, f.store.Stores().Questions.MarkLocked(context.Background(), questionID, uuid.New(), f.clock.Now()))
}

// queuePage moves a seeded page to queued through the service.
func (f *fixture) queuePage(upload *domain.Upload) {
	f.t.Helper()
	_, err := f.svc.StartGeneration(context.Background(), upload.ID)
	require.NoError(f.t, err)
}
