package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frontwatch/cache"
	"frontwatch/db"
	"frontwatch/models"
)

func newTestCollector(t *testing.T, source *fakeSource) (*Collector, *db.Database, clockwork.FakeClock) {
	t.Helper()

	database := newTestDatabase(t)
	clock := clockwork.NewFakeClock()
	log := testLogger()

	materializer := NewMaterializer(database, source, stubScorer{}, log)
	responses := cache.New(time.Minute, clock)

	return NewCollector(source, database, materializer, responses, 100, 60, clock, log), database, clock
}

func TestTickMaterializesWindow(t *testing.T) {
	source := newFakeSource()
	source.listing = []models.RawSubmission{
		rawSubmission("a", "golang", 10, 0),
		rawSubmission("b", "news", 20, 6),
	}

	collector, database, _ := newTestCollector(t, source)

	require.NoError(t, collector.Tick(context.Background()))

	windowed, err := database.WindowedSubmissions()
	require.NoError(t, err)
	require.Len(t, windowed, 2)
	assert.Equal(t, "a", windowed[0].ID)
	assert.Equal(t, 1, windowed[0].Rank)
	assert.Equal(t, "b", windowed[1].ID)
	assert.Equal(t, 2, windowed[1].Rank)

	scores, err := database.SubmissionScoreSamples("a")
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 10, scores[0].Value)

	averageScores, err := database.FrontpageAverageScoreSamples()
	require.NoError(t, err)
	require.Len(t, averageScores, 1)
	assert.InDelta(t, 15.0, averageScores[0].Value, 1e-9)

	averageComments, err := database.FrontpageAverageCommentSamples()
	require.NoError(t, err)
	require.Len(t, averageComments, 1)
	assert.InDelta(t, 3.0, averageComments[0].Value, 1e-9)
}

func TestTickFailsWhenListingUnavailable(t *testing.T) {
	source := newFakeSource()
	source.listingErr = errors.New("503 service unavailable")

	collector, database, _ := newTestCollector(t, source)

	err := collector.Tick(context.Background())
	require.ErrorIs(t, err, ErrUpstreamUnavailable)

	windowed, err := database.WindowedSubmissions()
	require.NoError(t, err)
	assert.Empty(t, windowed)
}

func TestTickRejectsEmptyListing(t *testing.T) {
	source := newFakeSource()

	collector, database, clock := newTestCollector(t, source)

	// a tracked submission must not be retired by a bogus empty listing
	source.listing = []models.RawSubmission{rawSubmission("a", "golang", 10, 0)}
	require.NoError(t, collector.Tick(context.Background()))

	source.mu.Lock()
	source.listing = nil
	source.mu.Unlock()
	clock.Advance(time.Minute)

	err := collector.Tick(context.Background())
	require.ErrorIs(t, err, ErrUpstreamUnavailable)

	submission, err := database.GetSubmission("a")
	require.NoError(t, err)
	assert.Equal(t, 1, submission.Rank)
}

func TestTickSkipsSubmissionOnCommentFetchFailure(t *testing.T) {
	source := newFakeSource()
	source.listing = []models.RawSubmission{
		rawSubmission("a", "golang", 10, 0),
		rawSubmission("b", "news", 20, 0),
	}
	source.commentsErr["b"] = errors.New("read timeout")

	collector, database, _ := newTestCollector(t, source)

	require.NoError(t, collector.Tick(context.Background()))

	_, err := database.GetSubmission("a")
	require.NoError(t, err)

	_, err = database.GetSubmission("b")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestExitRollsUpOnce(t *testing.T) {
	source := newFakeSource()
	source.listing = []models.RawSubmission{
		rawSubmission("a", "golang", 100, 10),
		rawSubmission("b", "news", 50, 5),
	}

	collector, database, clock := newTestCollector(t, source)

	require.NoError(t, collector.Tick(context.Background()))

	// a drops out, b stays
	source.mu.Lock()
	source.listing = []models.RawSubmission{rawSubmission("b", "news", 60, 7)}
	source.mu.Unlock()
	clock.Advance(time.Minute)

	require.NoError(t, collector.Tick(context.Background()))

	submission, err := database.GetSubmission("a")
	require.NoError(t, err)
	assert.Equal(t, models.RankNone, submission.Rank)

	subreddit, err := database.GetSubreddit("golang")
	require.NoError(t, err)
	assert.Equal(t, 100, subreddit.Score)
	assert.Equal(t, 10, subreddit.NumComments)
	assert.Equal(t, 1, subreddit.TrackedSubmissions)

	totalScore, totalComments, err := database.LatestTotals()
	require.NoError(t, err)
	assert.Equal(t, 100, totalScore)
	assert.Equal(t, 10, totalComments)

	samples, err := database.SubredditScoreSamples("golang")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 100, samples[0].Value)

	// a further tick without a must not repeat any of the above
	clock.Advance(time.Minute)
	require.NoError(t, collector.Tick(context.Background()))

	subreddit, err = database.GetSubreddit("golang")
	require.NoError(t, err)
	assert.Equal(t, 100, subreddit.Score)
	assert.Equal(t, 1, subreddit.TrackedSubmissions)

	totalScore, _, err = database.LatestTotals()
	require.NoError(t, err)
	assert.Equal(t, 100, totalScore)

	samples, err = database.SubredditScoreSamples("golang")
	require.NoError(t, err)
	assert.Len(t, samples, 1)
}

func TestReentryUpdatesInPlace(t *testing.T) {
	source := newFakeSource()
	source.listing = []models.RawSubmission{
		rawSubmission("a", "golang", 100, 10),
		rawSubmission("b", "news", 50, 5),
	}

	collector, database, clock := newTestCollector(t, source)
	require.NoError(t, collector.Tick(context.Background()))

	source.mu.Lock()
	source.listing = []models.RawSubmission{rawSubmission("b", "news", 60, 7)}
	source.mu.Unlock()
	clock.Advance(time.Minute)
	require.NoError(t, collector.Tick(context.Background()))

	// a climbs back in
	source.mu.Lock()
	source.listing = []models.RawSubmission{
		rawSubmission("a", "golang", 140, 12),
		rawSubmission("b", "news", 65, 8),
	}
	source.mu.Unlock()
	clock.Advance(time.Minute)
	require.NoError(t, collector.Tick(context.Background()))

	submission, err := database.GetSubmission("a")
	require.NoError(t, err)
	assert.Equal(t, 1, submission.Rank)
	assert.Equal(t, models.RankNone, submission.RankPrevious)
	assert.Equal(t, 140, submission.Score)

	windowed, err := database.WindowedSubmissions()
	require.NoError(t, err)
	assert.Len(t, windowed, 2, "re-entry must not create a duplicate row")
}

func TestExitSharedSubredditSingleSeriesSample(t *testing.T) {
	source := newFakeSource()
	source.listing = []models.RawSubmission{
		rawSubmission("a", "golang", 100, 10),
		rawSubmission("b", "golang", 50, 5),
	}

	collector, database, clock := newTestCollector(t, source)
	require.NoError(t, collector.Tick(context.Background()))

	// both golang submissions exit in the same tick
	source.mu.Lock()
	source.listing = []models.RawSubmission{rawSubmission("c", "news", 30, 2)}
	source.mu.Unlock()
	clock.Advance(time.Minute)
	require.NoError(t, collector.Tick(context.Background()))

	subreddit, err := database.GetSubreddit("golang")
	require.NoError(t, err)
	assert.Equal(t, 150, subreddit.Score)
	assert.Equal(t, 2, subreddit.TrackedSubmissions)

	samples, err := database.SubredditScoreSamples("golang")
	require.NoError(t, err)
	require.Len(t, samples, 1, "one sample per subreddit per tick")
	assert.Equal(t, 150, samples[0].Value)
}

func TestTotalsAccumulateAcrossExits(t *testing.T) {
	source := newFakeSource()
	source.listing = []models.RawSubmission{rawSubmission("a", "golang", 50, 10)}

	collector, database, clock := newTestCollector(t, source)

	require.NoError(t, database.AddTotalSamples(1000, 500, clock.Now().Add(-time.Hour)))

	require.NoError(t, collector.Tick(context.Background()))

	source.mu.Lock()
	source.listing = []models.RawSubmission{rawSubmission("b", "news", 5, 1)}
	source.mu.Unlock()
	clock.Advance(time.Minute)
	require.NoError(t, collector.Tick(context.Background()))

	totalScore, totalComments, err := database.LatestTotals()
	require.NoError(t, err)
	assert.Equal(t, 1050, totalScore)
	assert.Equal(t, 510, totalComments)
}

func TestRollupFoldsRoleAndGildingAveragesOnExitOnly(t *testing.T) {
	opReply := rawComment("c1", "author_a", "op here")
	opReply.Gildings = models.Gildings{Gold: 1}

	source := newFakeSource()
	source.listing = []models.RawSubmission{rawSubmission("a", "golang", 100, 1)}
	source.comments["a"] = []models.RawComment{opReply}

	collector, database, clock := newTestCollector(t, source)
	require.NoError(t, collector.Tick(context.Background()))

	// while windowed: comment sentiment has streamed in, but gilding and
	// role averages have not
	subreddit, err := database.GetSubreddit("golang")
	require.NoError(t, err)
	assert.Equal(t, 1, subreddit.TrackedComments)
	assert.Zero(t, subreddit.AverageIsOP)
	assert.Zero(t, subreddit.AverageGildedGold)

	source.mu.Lock()
	source.listing = []models.RawSubmission{rawSubmission("b", "news", 10, 0)}
	source.mu.Unlock()
	clock.Advance(time.Minute)
	require.NoError(t, collector.Tick(context.Background()))

	subreddit, err = database.GetSubreddit("golang")
	require.NoError(t, err)
	assert.Equal(t, 1, subreddit.TrackedSubmissions)
	assert.InDelta(t, 1.0, subreddit.AverageIsOP, 1e-9)
	assert.InDelta(t, 1.0, subreddit.AverageGildedGold, 1e-9)
	assert.InDelta(t, 0.9, subreddit.AverageUpvoteRatio, 1e-9)
}

func TestFrontpageCacheInvalidatedOnTick(t *testing.T) {
	source := newFakeSource()
	source.listing = []models.RawSubmission{rawSubmission("a", "golang", 10, 0)}

	collector, _, _ := newTestCollector(t, source)

	collector.responses.Set(cache.KeyFrontpage, "stale")
	require.NoError(t, collector.Tick(context.Background()))

	_, ok := collector.responses.Get(cache.KeyFrontpage)
	assert.False(t, ok)
}
