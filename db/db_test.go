package db

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frontwatch/models"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	database, err := NewDatabase(filepath.Join(t.TempDir(), "frontwatch.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return database
}

func testSubmission(id, subreddit string, rank int) *models.Submission {
	return &models.Submission{
		ID:           id,
		Subreddit:    subreddit,
		Title:        "title " + id,
		Author:       "someone",
		Rank:         rank,
		RankPrevious: rank,
		RankPeak:     rank,
		Score:        100,
		NumComments:  10,
		UpvoteRatio:  0.9,
		CreatedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestGetSubmissionNotFound(t *testing.T) {
	database := newTestDB(t)

	_, err := database.GetSubmission("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveSubmissionRoundtrip(t *testing.T) {
	database := newTestDB(t)

	in := testSubmission("abc", "golang", 4)
	in.Polarity = 0.25
	in.Subjectivity = 0.5
	in.Domain = "example.com"
	in.LinkFlairText = "News"
	in.Over18 = true
	in.GildedGold = 2

	require.NoError(t, database.SaveSubmission(in))

	out, err := database.GetSubmission("abc")
	require.NoError(t, err)

	assert.Equal(t, in.Title, out.Title)
	assert.Equal(t, 4, out.Rank)
	assert.Equal(t, "News", out.LinkFlairText)
	assert.True(t, out.Over18)
	assert.Equal(t, 2, out.GildedGold)
	assert.InDelta(t, 0.25, out.Polarity, 1e-9)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
}

func TestWindowedSubmissions(t *testing.T) {
	database := newTestDB(t)

	require.NoError(t, database.SaveSubmission(testSubmission("low", "golang", 3)))
	require.NoError(t, database.SaveSubmission(testSubmission("gone", "golang", models.RankNone)))
	require.NoError(t, database.SaveSubmission(testSubmission("top", "news", 1)))

	windowed, err := database.WindowedSubmissions()
	require.NoError(t, err)

	require.Len(t, windowed, 2)
	assert.Equal(t, "top", windowed[0].ID)
	assert.Equal(t, "low", windowed[1].ID)
}

func TestSetSubmissionRank(t *testing.T) {
	database := newTestDB(t)

	require.NoError(t, database.SaveSubmission(testSubmission("abc", "golang", 7)))
	require.NoError(t, database.SetSubmissionRank("abc", models.RankNone))

	out, err := database.GetSubmission("abc")
	require.NoError(t, err)
	assert.Equal(t, models.RankNone, out.Rank)
	assert.Equal(t, 7, out.RankPeak, "only the rank changes")
}

func TestSubmissionsBySubreddit(t *testing.T) {
	database := newTestDB(t)

	second := testSubmission("b", "golang", models.RankNone)
	second.RankPeak = 5
	first := testSubmission("a", "golang", models.RankNone)
	first.RankPeak = 2
	other := testSubmission("c", "news", 1)

	require.NoError(t, database.SaveSubmission(second))
	require.NoError(t, database.SaveSubmission(first))
	require.NoError(t, database.SaveSubmission(other))

	submissions, err := database.SubmissionsBySubreddit("GoLang")
	require.NoError(t, err)

	require.Len(t, submissions, 2)
	assert.Equal(t, "a", submissions[0].ID, "best peak rank first")
	assert.Equal(t, "b", submissions[1].ID)
}

func TestSearchSubmissions(t *testing.T) {
	database := newTestDB(t)

	old := testSubmission("old", "golang", 1)
	old.Title = "Generics finally landed"
	old.Score = 500
	old.NumComments = 50
	old.CreatedAt = time.Now().UTC().AddDate(0, 0, -60)

	recent := testSubmission("new", "news", 2)
	recent.Title = "generics hot take"
	recent.Score = 100
	recent.NumComments = 200
	recent.CreatedAt = time.Now().UTC().AddDate(0, 0, -2)

	unrelated := testSubmission("other", "pics", 3)
	unrelated.Title = "a cat"

	require.NoError(t, database.SaveSubmission(old))
	require.NoError(t, database.SaveSubmission(recent))
	require.NoError(t, database.SaveSubmission(unrelated))

	t.Run("Title match is case insensitive", func(t *testing.T) {
		results, err := database.SearchSubmissions(SearchOptions{Query: "GENERICS"})
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("No match", func(t *testing.T) {
		results, err := database.SearchSubmissions(SearchOptions{Query: "kubernetes"})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("Since filter", func(t *testing.T) {
		results, err := database.SearchSubmissions(SearchOptions{
			Query: "generics",
			Since: time.Now().UTC().AddDate(0, 0, -7),
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "new", results[0].ID)
	})

	t.Run("Subreddit filter is case insensitive", func(t *testing.T) {
		results, err := database.SearchSubmissions(SearchOptions{
			Query:      "generics",
			Subreddits: []string{"GOLANG"},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "old", results[0].ID)
	})

	t.Run("Order by score", func(t *testing.T) {
		results, err := database.SearchSubmissions(SearchOptions{Query: "generics", OrderBy: "score"})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "old", results[0].ID)
	})

	t.Run("Order by comments", func(t *testing.T) {
		results, err := database.SearchSubmissions(SearchOptions{Query: "generics", OrderBy: "comments"})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "new", results[0].ID)
	})
}

func TestCommentRoleRoundtrip(t *testing.T) {
	database := newTestDB(t)

	isOP := true
	isMod := false
	known := &models.Comment{
		ID:           "c1",
		SubmissionID: "abc",
		Score:        12,
		IsRoot:       true,
		IsOP:         &isOP,
		IsMod:        &isMod,
		IsAdmin:      &isMod,
		IsSpecial:    &isMod,
		CreatedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	unknown := &models.Comment{
		ID:           "c2",
		SubmissionID: "abc",
		Score:        1,
		CreatedAt:    time.Date(2024, 5, 1, 12, 1, 0, 0, time.UTC),
	}

	require.NoError(t, database.SaveComment(known))
	require.NoError(t, database.SaveComment(unknown))

	out, err := database.GetComment("c1")
	require.NoError(t, err)
	require.NotNil(t, out.IsOP)
	assert.True(t, *out.IsOP)
	require.NotNil(t, out.IsMod)
	assert.False(t, *out.IsMod)

	out, err = database.GetComment("c2")
	require.NoError(t, err)
	assert.Nil(t, out.IsOP)
	assert.Nil(t, out.IsMod)
	assert.Nil(t, out.IsAdmin)
	assert.Nil(t, out.IsSpecial)

	comments, err := database.CommentsBySubmission("abc")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "c1", comments[0].ID, "ordered by creation time")
}

func TestUpdateCommentVotes(t *testing.T) {
	database := newTestDB(t)

	comment := &models.Comment{
		ID:           "c1",
		SubmissionID: "abc",
		Score:        5,
		Polarity:     0.4,
		CreatedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, database.SaveComment(comment))

	require.NoError(t, database.UpdateCommentVotes("c1", 99, models.Gildings{Silver: 1, Gold: 2}))

	out, err := database.GetComment("c1")
	require.NoError(t, err)
	assert.Equal(t, 99, out.Score)
	assert.Equal(t, 1, out.GildedSilver)
	assert.Equal(t, 2, out.GildedGold)
	assert.InDelta(t, 0.4, out.Polarity, 1e-9, "sentiment snapshot untouched")
}

func TestSubredditRoundtrip(t *testing.T) {
	database := newTestDB(t)

	_, err := database.GetSubreddit("golang")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, database.CreateSubreddit(&models.Subreddit{
		Name:  "golang",
		Title: "The Go Programming Language",
	}))

	subreddit, err := database.GetSubreddit("golang")
	require.NoError(t, err)
	assert.Equal(t, "The Go Programming Language", subreddit.Title)
	assert.Zero(t, subreddit.TrackedSubmissions)

	subreddit.Score = 1500
	subreddit.TrackedSubmissions = 3
	subreddit.TrackedComments = 42
	subreddit.AverageCommentsPolarity = 0.125
	subreddit.AverageIsOP = 0.5
	require.NoError(t, database.SaveSubreddit(subreddit))

	out, err := database.GetSubreddit("golang")
	require.NoError(t, err)
	assert.Equal(t, 1500, out.Score)
	assert.Equal(t, 3, out.TrackedSubmissions)
	assert.Equal(t, 42, out.TrackedComments)
	assert.InDelta(t, 0.125, out.AverageCommentsPolarity, 1e-9)
	assert.InDelta(t, 0.5, out.AverageIsOP, 1e-9)
}

func TestLatestTotals(t *testing.T) {
	database := newTestDB(t)

	score, numComments, err := database.LatestTotals()
	require.NoError(t, err)
	assert.Zero(t, score)
	assert.Zero(t, numComments)

	now := time.Now().UTC()
	require.NoError(t, database.AddTotalSamples(1000, 500, now.Add(-time.Minute)))
	require.NoError(t, database.AddTotalSamples(1050, 510, now))

	score, numComments, err = database.LatestTotals()
	require.NoError(t, err)
	assert.Equal(t, 1050, score)
	assert.Equal(t, 510, numComments)
}

func TestSubmissionSeries(t *testing.T) {
	database := newTestDB(t)

	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, database.AddSubmissionSamples("abc", 100, 10, 0.9, t0))
	require.NoError(t, database.AddSubmissionSamples("abc", 150, 14, 0.92, t0.Add(time.Minute)))
	require.NoError(t, database.AddSubmissionSamples("other", 5, 1, 0.5, t0))

	scores, err := database.SubmissionScoreSamples("abc")
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, 100, scores[0].Value)
	assert.Equal(t, 150, scores[1].Value)

	counts, err := database.SubmissionCommentSamples("abc")
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, 14, counts[1].Value)

	ratios, err := database.SubmissionRatioSamples("abc")
	require.NoError(t, err)
	require.Len(t, ratios, 2)
	assert.InDelta(t, 0.92, ratios[1].Value, 1e-9)
}
