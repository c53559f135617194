package stats

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"frontwatch/db"
	"frontwatch/models"
	"frontwatch/sentiment"
)

// fakeSource is an in-memory ContentSource for pipeline tests.
type fakeSource struct {
	mu sync.Mutex

	listing    []models.RawSubmission
	listingErr error

	comments    map[string][]models.RawComment
	commentsErr map[string]error

	oldest      map[string][]models.RawComment
	oldestCalls map[string]int

	abouts map[string]models.SubredditAbout
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		comments:    make(map[string][]models.RawComment),
		commentsErr: make(map[string]error),
		oldest:      make(map[string][]models.RawComment),
		oldestCalls: make(map[string]int),
		abouts:      make(map[string]models.SubredditAbout),
	}
}

func (f *fakeSource) TopSubmissions(ctx context.Context, limit int) ([]models.RawSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listingErr != nil {
		return nil, f.listingErr
	}
	if len(f.listing) > limit {
		return f.listing[:limit], nil
	}
	return f.listing, nil
}

func (f *fakeSource) SubmissionComments(ctx context.Context, id string) ([]models.RawComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.commentsErr[id]; err != nil {
		return nil, err
	}
	return f.comments[id], nil
}

func (f *fakeSource) SubmissionCommentsOldest(ctx context.Context, id string) ([]models.RawComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.oldestCalls[id]++
	return f.oldest[id], nil
}

func (f *fakeSource) SubredditAbout(ctx context.Context, name string) (models.SubredditAbout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.abouts[name], nil
}

// stubScorer returns canned scores per text so aggregate math is
// deterministic; unknown texts score neutral.
type stubScorer struct {
	scores map[string]sentiment.Score
}

func (s stubScorer) Analyze(text string) sentiment.Score {
	if score, ok := s.scores[text]; ok {
		return score
	}
	return sentiment.Score{Words: 1, Sentences: 1}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestDatabase(t *testing.T) *db.Database {
	t.Helper()

	database, err := db.NewDatabase(filepath.Join(t.TempDir(), "frontwatch.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return database
}

func rawSubmission(id, subreddit string, score, numComments int) models.RawSubmission {
	return models.RawSubmission{
		ID:          id,
		Subreddit:   subreddit,
		Title:       "title " + id,
		Author:      "author_" + id,
		Score:       score,
		NumComments: numComments,
		Domain:      "example.com",
		UpvoteRatio: 0.9,
		CreatedUTC:  1500000000,
	}
}

func rawComment(id, author, body string) models.RawComment {
	return models.RawComment{
		ID:         id,
		Author:     author,
		Body:       body,
		Score:      1,
		IsRoot:     true,
		CreatedUTC: 1500000100,
	}
}
