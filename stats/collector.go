package stats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"frontwatch/cache"
	"frontwatch/db"
	"frontwatch/models"
)

// ErrUpstreamUnavailable marks a tick aborted before any write because
// the top-level listing fetch failed. The scheduler simply retries on
// the next interval.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// Collector drives the ingestion pipeline: on every tick it fetches the
// top-N listing, materializes records, detects window exits and rolls
// their aggregates up. Exactly one tick runs at a time; the cron chain
// skips a firing while the previous tick is still in flight.
type Collector struct {
	source       ContentSource
	database     *db.Database
	materializer *Materializer
	responses    *cache.Cache
	windowSize   int
	interval     time.Duration
	clock        clockwork.Clock
	log          *logrus.Logger

	mutex     sync.Mutex
	tickCount int
}

// NewCollector creates a new collector.
func NewCollector(
	source ContentSource,
	database *db.Database,
	materializer *Materializer,
	responses *cache.Cache,
	windowSize int,
	pollingInterval int,
	clock clockwork.Clock,
	log *logrus.Logger,
) *Collector {
	return &Collector{
		source:       source,
		database:     database,
		materializer: materializer,
		responses:    responses,
		windowSize:   windowSize,
		interval:     time.Duration(pollingInterval) * time.Second,
		clock:        clock,
		log:          log,
	}
}

// Start runs an immediate tick and then schedules one per polling
// interval until the context is cancelled.
func (c *Collector) Start(ctx context.Context) error {
	c.log.WithFields(logrus.Fields{
		"window_size":      c.windowSize,
		"polling_interval": c.interval.String(),
	}).Info("Starting collector")

	cronLog := cron.PrintfLogger(c.log)
	runner := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLog),
		cron.Recover(cronLog),
	))

	_, err := runner.AddFunc(fmt.Sprintf("@every %s", c.interval), func() {
		if err := c.Tick(ctx); err != nil {
			c.log.WithError(err).Error("Tick failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule tick: %w", err)
	}

	if err := c.Tick(ctx); err != nil {
		c.log.WithError(err).Error("Initial tick failed")
	}

	runner.Start()

	<-ctx.Done()

	stopCtx := runner.Stop()
	<-stopCtx.Done()

	return ctx.Err()
}

// Tick runs one full ingestion pass. It is safe to call once per
// schedule interval; overlapping calls must be prevented by the caller.
func (c *Collector) Tick(ctx context.Context) error {
	started := c.clock.Now().UTC()

	listing, err := c.source.TopSubmissions(ctx, c.windowSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if len(listing) == 0 {
		// an empty listing would mark the entire window as exited;
		// treat it as an upstream fault instead
		return fmt.Errorf("%w: empty listing", ErrUpstreamUnavailable)
	}

	windowIDs := make(map[string]bool, len(listing))
	frontpageScore := 0
	frontpageComments := 0
	for _, raw := range listing {
		windowIDs[raw.ID] = true
		frontpageScore += raw.Score
		frontpageComments += raw.NumComments
	}

	// materialize each ranked submission concurrently; submissions of
	// the same subreddit serialize on the per-subreddit mutex
	var wg sync.WaitGroup
	for i, raw := range listing {
		wg.Add(1)
		go func(raw models.RawSubmission, rank int) {
			defer wg.Done()

			submission, err := c.materializer.UpsertSubmission(ctx, raw, rank)
			if err != nil {
				c.log.WithError(err).WithFields(logrus.Fields{
					"submission_id": raw.ID,
					"rank":          rank,
				}).Warn("Skipping submission this cycle")
				return
			}

			err = c.database.AddSubmissionSamples(
				submission.ID, submission.Score, submission.NumComments, submission.UpvoteRatio, started)
			if err != nil {
				c.log.WithError(err).WithField("submission_id", submission.ID).
					Error("Failed to append submission samples")
			}
		}(raw, i+1)
	}
	wg.Wait()

	exited, err := c.retireExited(windowIDs, started)
	if err != nil {
		return err
	}

	err = c.database.AddFrontpageAverageSamples(
		float64(frontpageScore)/float64(len(listing)),
		float64(frontpageComments)/float64(len(listing)),
		started,
	)
	if err != nil {
		return err
	}

	c.responses.Invalidate(cache.KeyFrontpage)

	c.mutex.Lock()
	c.tickCount++
	ticks := c.tickCount
	c.mutex.Unlock()

	c.log.WithFields(logrus.Fields{
		"tick":        ticks,
		"fetched":     len(listing),
		"exited":      exited,
		"duration_ms": c.clock.Since(started).Milliseconds(),
	}).Info("Tick complete")

	return nil
}

// retireExited rolls up and unranks every tracked submission that fell
// out of the new window. Each distinct subreddit touched gets one pair
// of series samples, no matter how many of its submissions exited.
func (c *Collector) retireExited(windowIDs map[string]bool, now time.Time) (int, error) {
	windowed, err := c.database.WindowedSubmissions()
	if err != nil {
		return 0, err
	}

	exited := 0
	touched := make(map[string]bool)

	for i := range windowed {
		submission := &windowed[i]
		if windowIDs[submission.ID] {
			continue
		}

		if err := c.rollup(submission, now); err != nil {
			c.log.WithError(err).WithField("submission_id", submission.ID).
				Error("Failed to roll up exiting submission")
			continue
		}

		// clearing the rank is what makes the rollup one-shot: a
		// repeated exit scan no longer sees this row
		if err := c.database.SetSubmissionRank(submission.ID, models.RankNone); err != nil {
			return exited, err
		}

		touched[submission.Subreddit] = true
		exited++

		c.log.WithFields(logrus.Fields{
			"submission_id": submission.ID,
			"subreddit":     submission.Subreddit,
			"final_score":   submission.Score,
		}).Debug("Submission left the window")
	}

	for name := range touched {
		subreddit, err := c.database.GetSubreddit(name)
		if err != nil {
			return exited, err
		}
		if err := c.database.AddSubredditSamples(name, subreddit.Score, subreddit.NumComments, now); err != nil {
			return exited, err
		}
	}

	return exited, nil
}
