package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/queue"
	"github.com/phrazzld/quizgen-api/internal/service"
)

// BulkStatusRequest sets the review status of several questions.
type BulkStatusRequest struct {
	QuestionIDs []uuid.UUID `json:"questionIds" validate:"required,min=1,max=500"`
	Status      string      `json:"status"      validate:"required,oneof=not_checked approved rejected needs_fix"`
}

// BulkIDsRequest names the questions of a bulk delete or publish.
type BulkIDsRequest struct {
	QuestionIDs []uuid.UUID `json:"questionIds" validate:"required,min=1,max=500"`
}

// UpdateQuestionRequest replaces the editable fields of a question.
type UpdateQuestionRequest struct {
	Stem          string `json:"stem"          validate:"required,min=3,max=2000"`
	OptionA       string `json:"optionA"       validate:"required,max=1000"`
	OptionB       string `json:"optionB"       validate:"required,max=1000"`
	OptionC       string `json:"optionC"       validate:"required,max=1000"`
	OptionD       string `json:"optionD"       validate:"required,max=1000"`
	CorrectOption string `json:"correctOption" validate:"required,oneof=a b c d"`
	Explanation   string `json:"explanation"   validate:"required,max=2000"`
	Difficulty    string `json:"difficulty"    validate:"required,oneof=easy medium hard"`
}

func (req UpdateQuestionRequest) edit() service.QuestionEdit {
	return service.QuestionEdit{
		Stem:          req.Stem,
		OptionA:       req.OptionA,
		OptionB:       req.OptionB,
		OptionC:       req.OptionC,
		OptionD:       req.OptionD,
		CorrectOption: domain.OptionKey(req.CorrectOption),
		Explanation:   req.Explanation,
		Difficulty:    domain.Difficulty(req.Difficulty),
	}
}

// ClassificationResponse places an upload in the taxonomy.
type ClassificationResponse struct {
	ClassID   int       `json:"classId"`
	SubjectID uuid.UUID `json:"subjectId"`
	ChapterID uuid.UUID `json:"chapterId"`
}

// UploadResponse describes an upload.
type UploadResponse struct {
	ID               uuid.UUID              `json:"id"`
	Classification   ClassificationResponse `json:"classification"`
	OriginalFilename string                 `json:"originalFilename"`
	PageCount        int                    `json:"pageCount"`
	CreatedAt        time.Time              `json:"createdAt"`
}

// UploadPageResponse is a page of an upload with links to its images.
type UploadPageResponse struct {
	ID           uuid.UUID `json:"id"`
	PageNumber   int       `json:"pageNumber"`
	Status       string    `json:"status"`
	PNGURL       string    `json:"pngUrl"`
	ThumbnailURL string    `json:"thumbnailUrl"`
}

// UploadDetailResponse is an upload with its pages.
type UploadDetailResponse struct {
	UploadResponse
	PDFURL string               `json:"pdfUrl"`
	Pages  []UploadPageResponse `json:"pages"`
}

// UploadSummaryResponse is one row of a chapter's upload listing.
type UploadSummaryResponse struct {
	UploadResponse
	PDFURL         string `json:"pdfUrl"`
	CompletedPages int    `json:"completedPages"`
}

// AttemptResponse describes one generation attempt.
type AttemptResponse struct {
	ID              uuid.UUID `json:"id"`
	AttemptNo       int       `json:"attemptNo"`
	Model           string    `json:"model"`
	PromptVersion   string    `json:"promptVersion"`
	IsSuccess       bool      `json:"isSuccess"`
	ErrorMessage    *string   `json:"errorMessage,omitempty"`
	RequestExcerpt  string    `json:"requestExcerpt"`
	ResponseExcerpt *string   `json:"responseExcerpt,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// PageResponse describes a page and its generation history.
type PageResponse struct {
	ID              uuid.UUID         `json:"id"`
	PageNumber      int               `json:"pageNumber"`
	Status          string            `json:"status"`
	Language        *string           `json:"language,omitempty"`
	LastGeneratedAt *time.Time        `json:"lastGeneratedAt,omitempty"`
	QuestionCount   int               `json:"questionCount"`
	PNGURL          string            `json:"pngUrl,omitempty"`
	ThumbnailURL    string            `json:"thumbnailUrl,omitempty"`
	Attempts        []AttemptResponse `json:"attempts"`
}

// GenerationOverviewResponse is the generation state of an upload.
type GenerationOverviewResponse struct {
	Upload       UploadResponse `json:"upload"`
	Pages        []PageResponse `json:"pages"`
	StatusCounts map[string]int `json:"statusCounts"`
}

// StartGenerationResponse reports how many pages were queued.
type StartGenerationResponse struct {
	QueuedPages int `json:"queuedPages"`
}

// PageActionResponse acknowledges a retry or regenerate.
type PageActionResponse struct {
	PageID uuid.UUID `json:"pageId"`
	Status string    `json:"status"`
}

// BankEntryRefResponse identifies the bank entry of a published question.
type BankEntryRefResponse struct {
	ID          uuid.UUID `json:"id"`
	SequenceNo  int64     `json:"seqNo"`
	SubjectCode string    `json:"subjShortCode"`
	CreatedAt   time.Time `json:"createdAt"`
}

// QuestionResponse describes a question in the review pool.
type QuestionResponse struct {
	ID               uuid.UUID              `json:"id"`
	PageID           uuid.UUID              `json:"pageId"`
	PageNumber       int                    `json:"pageNumber,omitempty"`
	Classification   ClassificationResponse `json:"classification"`
	Status           string                 `json:"status"`
	Difficulty       string                 `json:"difficulty"`
	Language         string                 `json:"language"`
	LineIndex        int                    `json:"lineIndex"`
	Stem             string                 `json:"stem"`
	OptionA          string                 `json:"optionA"`
	OptionB          string                 `json:"optionB"`
	OptionC          string                 `json:"optionC"`
	OptionD          string                 `json:"optionD"`
	CorrectOption    string                 `json:"correctOption"`
	Explanation      string                 `json:"explanation"`
	IsLockedAfterAdd bool                   `json:"isLockedAfterAdd"`
	ReviewedBy       *uuid.UUID             `json:"reviewedBy,omitempty"`
	PageImageURL     string                 `json:"pageImageUrl,omitempty"`
	ThumbnailURL     string                 `json:"thumbnailUrl,omitempty"`
	BankEntry        *BankEntryRefResponse  `json:"bankEntry,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}

// QuestionListResponse is a filtered review pool listing.
type QuestionListResponse struct {
	Items        []QuestionResponse `json:"items"`
	Total        int                `json:"total"`
	StatusCounts map[string]int     `json:"statusCounts"`
}

// BulkUpdateResponse reports how many questions changed.
type BulkUpdateResponse struct {
	Updated int `json:"updated"`
}

// BulkDeleteResponse reports how many questions were removed.
type BulkDeleteResponse struct {
	Deleted int `json:"deleted"`
}

// PublishResponse lists the published questions and their bank entries.
type PublishResponse struct {
	PublishedIDs []uuid.UUID `json:"publishedIds"`
	BankEntryIDs []uuid.UUID `json:"bankEntryIds"`
}

// UsageResponse totals LLM usage over the window.
type UsageResponse struct {
	WindowHours      int     `json:"windowHours"`
	TokensIn         int64   `json:"tokensIn"`
	TokensOut        int64   `json:"tokensOut"`
	EstimatedCostUSD float64 `json:"estimatedCostUsd"`
	EventCount       int64   `json:"eventCount"`
}

// RecentErrorResponse is one failed attempt for triage.
type RecentErrorResponse struct {
	ID         uuid.UUID `json:"id"`
	Category   string    `json:"category"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurredAt"`
	PageID     uuid.UUID `json:"pageId"`
	PageNumber int       `json:"pageNumber"`
	UploadID   uuid.UUID `json:"uploadId"`
	AttemptNo  int       `json:"attemptNo"`
}

// OpsOverviewResponse is the operator view of pipeline health.
type OpsOverviewResponse struct {
	GeneratedAt  time.Time             `json:"generatedAt"`
	Queues       []queue.Metrics       `json:"queues"`
	Usage        UsageResponse         `json:"usage"`
	RecentErrors []RecentErrorResponse `json:"recentErrors"`
}

func uploadToResponse(u *domain.Upload) UploadResponse {
	return UploadResponse{
		ID:               u.ID,
		Classification:   classificationToResponse(u.Classification),
		OriginalFilename: u.OriginalFilename,
		PageCount:        u.PageCount,
		CreatedAt:        u.CreatedAt,
	}
}

func classificationToResponse(c domain.Classification) ClassificationResponse {
	return ClassificationResponse{ClassID: c.ClassID, SubjectID: c.SubjectID, ChapterID: c.ChapterID}
}

func uploadDetailToResponse(d *service.UploadDetail) UploadDetailResponse {
	pages := make([]UploadPageResponse, 0, len(d.Pages))
	for _, p := range d.Pages {
		pages = append(pages, UploadPageResponse{
			ID:           p.Page.ID,
			PageNumber:   p.Page.PageNumber,
			Status:       string(p.Page.Status),
			PNGURL:       p.ImageURL,
			ThumbnailURL: p.ThumbURL,
		})
	}
	return UploadDetailResponse{UploadResponse: uploadToResponse(d.Upload), PDFURL: d.PDFURL, Pages: pages}
}

func uploadSummariesToResponse(summaries []service.UploadSummary) []UploadSummaryResponse {
	out := make([]UploadSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, UploadSummaryResponse{
			UploadResponse: uploadToResponse(s.Upload),
			PDFURL:         s.PDFURL,
			CompletedPages: s.CompletedPages,
		})
	}
	return out
}

func questionToResponse(q *domain.Question) QuestionResponse {
	return QuestionResponse{
		ID:               q.ID,
		PageID:           q.PageID,
		Classification:   classificationToResponse(q.Classification),
		Status:           string(q.Status),
		Difficulty:       string(q.Difficulty),
		Language:         string(q.Language),
		LineIndex:        q.LineIndex,
		Stem:             q.Stem,
		OptionA:          q.Options.A,
		OptionB:          q.Options.B,
		OptionC:          q.Options.C,
		OptionD:          q.Options.D,
		CorrectOption:    string(q.CorrectOption),
		Explanation:      q.Explanation,
		IsLockedAfterAdd: q.IsLockedAfterAdd,
		ReviewedBy:       q.ReviewedBy,
		CreatedAt:        q.CreatedAt,
		UpdatedAt:        q.UpdatedAt,
	}
}

func questionListToResponse(list *service.QuestionList) QuestionListResponse {
	items := make([]QuestionResponse, 0, len(list.Items))
	for _, item := range list.Items {
		resp := questionToResponse(item.Question)
		resp.PageNumber = item.PageNumber
		resp.PageImageURL = item.PageImageURL
		resp.ThumbnailURL = item.ThumbURL
		if e := item.BankEntry; e != nil {
			resp.BankEntry = &BankEntryRefResponse{
				ID:          e.ID,
				SequenceNo:  e.SequenceNo,
				SubjectCode: e.SubjectCode,
				CreatedAt:   e.CreatedAt,
			}
		}
		items = append(items, resp)
	}
	counts := make(map[string]int, len(list.StatusCounts))
	for status, n := range list.StatusCounts {
		counts[string(status)] = n
	}
	return QuestionListResponse{Items: items, Total: list.Total, StatusCounts: counts}
}

func attemptToResponse(a domain.GenerationAttempt) AttemptResponse {
	return AttemptResponse{
		ID:              a.ID,
		AttemptNo:       a.AttemptNo,
		Model:           a.Model,
		PromptVersion:   a.PromptVersion,
		IsSuccess:       a.IsSuccess,
		ErrorMessage:    a.ErrorMessage,
		RequestExcerpt:  a.RequestExcerpt,
		ResponseExcerpt: a.ResponseExcerpt,
		CreatedAt:       a.CreatedAt,
	}
}

func overviewToResponse(ov *service.UploadOverview) GenerationOverviewResponse {
	pages := make([]PageResponse, 0, len(ov.Pages))
	for _, p := range ov.Pages {
		attempts := make([]AttemptResponse, 0, len(p.Attempts))
		for _, a := range p.Attempts {
			attempts = append(attempts, attemptToResponse(a))
		}
		var lang *string
		if p.Page.Language != nil {
			s := string(*p.Page.Language)
			lang = &s
		}
		pages = append(pages, PageResponse{
			ID:              p.Page.ID,
			PageNumber:      p.Page.PageNumber,
			Status:          string(p.Page.Status),
			Language:        lang,
			LastGeneratedAt: p.Page.LastGeneratedAt,
			QuestionCount:   p.QuestionCount,
			PNGURL:          p.PNGURL,
			ThumbnailURL:    p.ThumbnailURL,
			Attempts:        attempts,
		})
	}

	counts := make(map[string]int, len(ov.StatusCounts))
	for status, n := range ov.StatusCounts {
		counts[string(status)] = n
	}

	return GenerationOverviewResponse{
		Upload:       uploadToResponse(&ov.Upload),
		Pages:        pages,
		StatusCounts: counts,
	}
}

func opsToResponse(ov *service.OpsOverview) OpsOverviewResponse {
	recent := make([]RecentErrorResponse, 0, len(ov.RecentErrors))
	for _, e := range ov.RecentErrors {
		recent = append(recent, RecentErrorResponse{
			ID:         e.AttemptID,
			Category:   e.Category,
			Message:    e.Message,
			OccurredAt: e.OccurredAt,
			PageID:     e.PageID,
			PageNumber: e.PageNumber,
			UploadID:   e.UploadID,
			AttemptNo:  e.AttemptNo,
		})
	}
	queues := ov.Queues
	if queues == nil {
		queues = []queue.Metrics{}
	}
	return OpsOverviewResponse{
		GeneratedAt: ov.GeneratedAt,
		Queues:      queues,
		Usage: UsageResponse{
			WindowHours:      ov.Usage.WindowHours,
			TokensIn:         ov.Usage.TokensIn,
			TokensOut:        ov.Usage.TokensOut,
			EstimatedCostUSD: ov.Usage.EstimatedCostUSD,
			EventCount:       ov.Usage.EventCount,
		},
		RecentErrors: recent,
	}
}
