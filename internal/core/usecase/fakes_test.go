package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/woonylab/bookchat/internal/core/domain"
)

type fakeEmbedder struct {
	dim     int
	err     error
	queries []string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.queries = append(f.queries, text)
	return make([]float32, f.dim), nil
}

type fakeVectorIndex struct {
	mu           sync.Mutex
	searchHits   []domain.ScoredPoint
	searchErr    error
	scrollHits   []domain.ScoredPoint
	scrollErr    error
	count        int
	countErr     error
	ensured      []string
	upserted     map[string][]domain.VectorPoint
	lastSearchK  int
	sampleLimits []int
}

func (f *fakeVectorIndex) EnsureCollection(_ context.Context, collection string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, collection)
	return nil
}

func (f *fakeVectorIndex) Upsert(_ context.Context, collection string, points []domain.VectorPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upserted == nil {
		f.upserted = make(map[string][]domain.VectorPoint)
	}
	f.upserted[collection] = append(f.upserted[collection], points...)
	return nil
}

func (f *fakeVectorIndex) Search(_ context.Context, _ string, _ []float32, k int, _ float64) ([]domain.ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSearchK = k
	return f.searchHits, f.searchErr
}

func (f *fakeVectorIndex) ScrollAll(_ context.Context, _ string, _ int) ([]domain.ScoredPoint, error) {
	return f.scrollHits, f.scrollErr
}

func (f *fakeVectorIndex) ScrollSample(_ context.Context, _ string, limit int) ([]domain.ScoredPoint, error) {
	f.mu.Lock()
	f.sampleLimits = append(f.sampleLimits, limit)
	f.mu.Unlock()
	if f.scrollErr != nil {
		return nil, f.scrollErr
	}
	hits := f.scrollHits
	if limit >= 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *fakeVectorIndex) Count(_ context.Context, _ string) (int, error) {
	return f.count, f.countErr
}

type fakeCompleter struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt, _ string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	resp := ""
	if f.calls < len(f.responses) {
		resp = f.responses[f.calls]
	} else if len(f.responses) > 0 {
		resp = f.responses[len(f.responses)-1]
	}
	f.calls++
	return resp, nil
}

type fakeConversations struct {
	mu        sync.Mutex
	turns     map[string][]domain.ConversationTurn
	appendErr error
	similar   []domain.ScoredTurn
	simErr    error
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{turns: make(map[string][]domain.ConversationTurn)}
}

func (f *fakeConversations) Append(_ context.Context, userID, query, response string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns[userID] = append(f.turns[userID], domain.ConversationTurn{
		Query: query, Response: response, Timestamp: time.Now(),
	})
	return nil
}

func (f *fakeConversations) GetByIndex(userID string, index int) *domain.ConversationTurn {
	f.mu.Lock()
	defer f.mu.Unlock()
	turns := f.turns[userID]
	if index < 0 {
		index += len(turns)
	}
	if index < 0 || index >= len(turns) {
		return nil
	}
	turn := turns[index]
	return &turn
}

func (f *fakeConversations) Count(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.turns[userID])
}

func (f *fakeConversations) Recent(userID string, n int) []domain.ConversationTurn {
	f.mu.Lock()
	defer f.mu.Unlock()
	turns := f.turns[userID]
	if n <= 0 || n >= len(turns) {
		return append([]domain.ConversationTurn(nil), turns...)
	}
	return append([]domain.ConversationTurn(nil), turns[len(turns)-n:]...)
}

func (f *fakeConversations) SearchSimilar(_ context.Context, _, _ string, _ int, _ float64) ([]domain.ScoredTurn, error) {
	return f.similar, f.simErr
}

type fakeInvalidator struct {
	mu    sync.Mutex
	users []string
}

func (f *fakeInvalidator) Invalidate(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
}

type fakeQueue struct {
	published  []string
	publishErr error
}

func (f *fakeQueue) PublishUploadCreated(_ context.Context, jobID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, jobID)
	return nil
}

func (f *fakeQueue) SubscribeUploadCreated(_ context.Context, _ func(context.Context, string) error) error {
	return nil
}

type fakeUploadRepo struct {
	mu       sync.Mutex
	jobs     map[string]*domain.UploadJob
	statuses []domain.UploadStatus
}

func newFakeUploadRepo() *fakeUploadRepo {
	return &fakeUploadRepo{jobs: make(map[string]*domain.UploadJob)}
}

func (f *fakeUploadRepo) Create(_ context.Context, job *domain.UploadJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeUploadRepo) GetByID(_ context.Context, id string) (*domain.UploadJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get upload job", fmt.Errorf("job %s", id))
	}
	copied := *job
	return &copied, nil
}

func (f *fakeUploadRepo) UpdateStatus(_ context.Context, id string, status domain.UploadStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	if job, ok := f.jobs[id]; ok {
		job.Status = status
		job.Error = errMessage
	}
	return nil
}
