package captation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"workflow-backend/internal/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForJob(t *testing.T, tracker *JobTracker, id string) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		var err error
		job, err = tracker.Get(context.Background(), id)
		return err == nil && job.Status != JobRunning
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestJobTrackerCompletes(t *testing.T) {
	p := newPipeline()
	tracker := NewJobTracker(cache.NewMemory(), p.importer, time.Hour, time.UTC, discardLogger())

	items := []PreviewItem{
		validItem("Loja A", "RS", "Porto Alegre", "Comércio"),
		validItem("Loja B", "ZZ", "Nenhum", "Comércio"),
	}
	job, err := tracker.Start(context.Background(), items, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, JobRunning, job.Status)
	assert.Equal(t, 2, job.Total)

	done := waitForJob(t, tracker, job.ID)
	assert.Equal(t, JobCompleted, done.Status)
	assert.Equal(t, 2, done.Processed)
	require.NotNil(t, done.Result)
	assert.Equal(t, 1, done.Result.Success)
	assert.Equal(t, 1, done.Result.Errors)
	assert.NotNil(t, done.FinishedAt)

	assert.ErrorIs(t, tracker.Cancel(context.Background(), job.ID), ErrJobFinished)
}

func TestJobTrackerCancel(t *testing.T) {
	p := newPipeline()
	started := make(chan struct{})
	release := make(chan struct{})
	first := true
	p.store.beforeInsert = func(Site) {
		if first {
			first = false
			close(started)
			<-release
		}
	}
	tracker := NewJobTracker(cache.NewMemory(), p.importer, time.Hour, time.UTC, discardLogger())

	items := make([]PreviewItem, 0, 6)
	for i := 0; i < 6; i++ {
		items = append(items, validItem(fmt.Sprintf("Loja %d", i), "RS", "Porto Alegre", "Comércio"))
	}
	job, err := tracker.Start(context.Background(), items, ImportOptions{Workers: 1, BatchSize: 2})
	require.NoError(t, err)

	<-started
	require.NoError(t, tracker.Cancel(context.Background(), job.ID))
	close(release)

	done := waitForJob(t, tracker, job.ID)
	assert.Equal(t, JobCancelled, done.Status)
	require.NotNil(t, done.Result)
	assert.True(t, done.Result.Cancelled)
	assert.Equal(t, 1, done.Result.Success)
	assert.Equal(t, 1, p.store.siteCount())
}

func TestJobTrackerUnknownJob(t *testing.T) {
	p := newPipeline()
	tracker := NewJobTracker(cache.NewMemory(), p.importer, 0, time.UTC, discardLogger())

	_, err := tracker.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, tracker.Cancel(context.Background(), "missing"), ErrJobNotFound)
	assert.NoError(t, tracker.Shutdown(context.Background()))
}
