package stats

import (
	"fmt"
	"time"

	"frontwatch/models"
)

// commentAggregates holds the per-submission comment tallies the rollup
// folds into subreddit averages.
type commentAggregates struct {
	gildedSilver   int
	gildedGold     int
	gildedPlatinum int
	isOP           int
	isMod          int
	isAdmin        int
	isSpecial      int
}

// rollup applies the one-time aggregate updates for a submission at the
// moment it leaves the window. It must run exactly once per exit: the
// caller only invokes it for rows still holding a positive rank and
// clears the rank immediately afterwards.
func (c *Collector) rollup(submission *models.Submission, now time.Time) error {
	// 1. extend the global cumulative series
	latestScore, latestComments, err := c.database.LatestTotals()
	if err != nil {
		return err
	}
	if err := c.database.AddTotalSamples(
		latestScore+submission.Score,
		latestComments+submission.NumComments,
		now,
	); err != nil {
		return err
	}

	// 2. batch-sum this submission's comments; unlike comment
	// sentiment, gilding and role aggregates are only tallied here
	comments, err := c.database.CommentsBySubmission(submission.ID)
	if err != nil {
		return err
	}
	aggregates := tallyComments(comments)

	// 3. fold the submission's final values into its subreddit
	lock := c.materializer.subredditLock(submission.Subreddit)
	lock.Lock()
	defer lock.Unlock()

	subreddit, err := c.database.GetSubreddit(submission.Subreddit)
	if err != nil {
		return fmt.Errorf("failed to load subreddit %s for rollup: %w", submission.Subreddit, err)
	}

	n := subreddit.TrackedSubmissions
	subreddit.AverageSubmissionPolarity = UpdateAverage(subreddit.AverageSubmissionPolarity, submission.Polarity, n)
	subreddit.AverageSubmissionSubjectivity = UpdateAverage(subreddit.AverageSubmissionSubjectivity, submission.Subjectivity, n)
	subreddit.AverageUpvoteRatio = UpdateAverage(subreddit.AverageUpvoteRatio, submission.UpvoteRatio, n)
	subreddit.AverageGildedSilver = UpdateAverage(subreddit.AverageGildedSilver, float64(aggregates.gildedSilver), n)
	subreddit.AverageGildedGold = UpdateAverage(subreddit.AverageGildedGold, float64(aggregates.gildedGold), n)
	subreddit.AverageGildedPlatinum = UpdateAverage(subreddit.AverageGildedPlatinum, float64(aggregates.gildedPlatinum), n)
	subreddit.AverageIsOP = UpdateAverage(subreddit.AverageIsOP, float64(aggregates.isOP), n)
	subreddit.AverageIsMod = UpdateAverage(subreddit.AverageIsMod, float64(aggregates.isMod), n)
	subreddit.AverageIsAdmin = UpdateAverage(subreddit.AverageIsAdmin, float64(aggregates.isAdmin), n)
	subreddit.AverageIsSpecial = UpdateAverage(subreddit.AverageIsSpecial, float64(aggregates.isSpecial), n)

	subreddit.Score += submission.Score
	subreddit.NumComments += submission.NumComments
	subreddit.TrackedSubmissions++

	return c.database.SaveSubreddit(subreddit)
}

// tallyComments sums gilding tiers and counts definitively-true role
// flags. Unknown roles (nil) count as neither true nor false.
func tallyComments(comments []models.Comment) commentAggregates {
	var agg commentAggregates

	for _, comment := range comments {
		agg.gildedSilver += comment.GildedSilver
		agg.gildedGold += comment.GildedGold
		agg.gildedPlatinum += comment.GildedPlatinum

		if comment.IsOP != nil && *comment.IsOP {
			agg.isOP++
		}
		if comment.IsMod != nil && *comment.IsMod {
			agg.isMod++
		}
		if comment.IsAdmin != nil && *comment.IsAdmin {
			agg.isAdmin++
		}
		if comment.IsSpecial != nil && *comment.IsSpecial {
			agg.isSpecial++
		}
	}

	return agg
}
