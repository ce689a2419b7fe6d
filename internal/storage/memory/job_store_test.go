package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/roosearch/internal/crawler"
)

func fixedClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func TestJobStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewJobStore(fixedClock(time.Unix(1700000000, 0).UTC()))
	ctx := context.Background()
	job := crawler.Job{ID: "job-1", Params: crawler.JobParams{URLs: []string{"https://example.com/"}, MaxPages: 5}}

	require.NoError(t, store.CreateJob(ctx, job))
	require.ErrorIs(t, store.CreateJob(ctx, job), ErrJobExists)

	queued, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusQueued, queued.Status)
	require.False(t, queued.Submitted.IsZero())
	require.Nil(t, queued.Started)

	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, crawler.JobStatusRunning, "", crawler.JobCounters{}))
	running, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, running.Started)
	require.Nil(t, running.Finished)

	counters := crawler.CountersFrom(crawler.Result{Succeeded: 3, Failed: 1, Discovered: 9})
	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, crawler.JobStatusSucceeded, "", counters))
	final, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusSucceeded, final.Status)
	require.Equal(t, *running.Started, *final.Started)
	require.NotNil(t, final.Finished)
	require.True(t, final.Finished.After(*final.Started))
	require.Equal(t, crawler.JobCounters{PagesSucceeded: 3, PagesFailed: 1, Discovered: 9}, final.Counters)

	// Terminal jobs are frozen.
	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, crawler.JobStatusFailed, "late", crawler.JobCounters{}))
	again, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, final, again)
}

func TestJobStoreUnknownJob(t *testing.T) {
	t.Parallel()

	store := NewJobStore(nil)
	ctx := context.Background()
	_, err := store.GetJob(ctx, "missing")
	require.ErrorIs(t, err, crawler.ErrJobNotFound)
	err = store.UpdateJobStatus(ctx, "missing", crawler.JobStatusRunning, "", crawler.JobCounters{})
	require.ErrorIs(t, err, crawler.ErrJobNotFound)
}

func TestJobStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	store := NewJobStore(nil)
	ctx := context.Background()
	urls := []string{"https://a.example/"}
	require.NoError(t, store.CreateJob(ctx, crawler.Job{ID: "j", Params: crawler.JobParams{URLs: urls}}))
	urls[0] = "mutated"

	got, err := store.GetJob(ctx, "j")
	require.NoError(t, err)
	require.Equal(t, "https://a.example/", got.Params.URLs[0])
	got.Params.URLs[0] = "mutated"

	again, err := store.GetJob(ctx, "j")
	require.NoError(t, err)
	require.Equal(t, "https://a.example/", again.Params.URLs[0])
}

func TestJobStoreFailedWithoutRunningStampsBoth(t *testing.T) {
	t.Parallel()

	store := NewJobStore(nil)
	ctx := context.Background()
	require.NoError(t, store.CreateJob(ctx, crawler.Job{ID: "j"}))
	require.NoError(t, store.UpdateJobStatus(ctx, "j", crawler.JobStatusCanceled, "context canceled", crawler.JobCounters{}))
	job, err := store.GetJob(ctx, "j")
	require.NoError(t, err)
	require.NotNil(t, job.Started)
	require.NotNil(t, job.Finished)
	require.Equal(t, "context canceled", job.ErrorText)
}

func TestListJobsNewestFirst(t *testing.T) {
	t.Parallel()

	store := NewJobStore(fixedClock(time.Unix(0, 0).UTC()))
	ctx := context.Background()
	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, store.CreateJob(ctx, crawler.Job{ID: id}))
	}
	jobs := store.ListJobs(ctx)
	require.Len(t, jobs, 3)
	require.Equal(t, "third", jobs[0].ID)
	require.Equal(t, "first", jobs[2].ID)
}
