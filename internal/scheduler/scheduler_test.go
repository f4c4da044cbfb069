package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H3199/duunikanban/internal/model"
	"github.com/H3199/duunikanban/internal/scraper"
)

type stubSource struct{}

func (stubSource) Name() string         { return "stub" }
func (stubSource) Region() model.Region { return model.RegionFI }
func (stubSource) Fetch(context.Context) (scraper.Batch, error) {
	return scraper.Batch{}, nil
}

type countingRunner struct {
	calls atomic.Int32
	block chan struct{}
}

func (r *countingRunner) RunAll(context.Context, []scraper.Source) {
	r.calls.Add(1)
	if r.block != nil {
		<-r.block
	}
}

func TestNew_Spec(t *testing.T) {
	s := New(&countingRunner{}, nil, 6)
	assert.Equal(t, "@every 6h", s.Spec())
}

func TestStart_RunsImmediately(t *testing.T) {
	r := &countingRunner{}
	s := New(r, []scraper.Source{stubSource{}}, 1)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()

	assert.Equal(t, int32(1), r.calls.Load())
}

func TestStart_NoSourcesSkipsRun(t *testing.T) {
	r := &countingRunner{}
	s := New(r, nil, 1)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()

	assert.Zero(t, r.calls.Load())
}

func TestStart_InvalidInterval(t *testing.T) {
	s := New(&countingRunner{}, nil, 0)
	assert.Error(t, s.Start(context.Background()))
}

func TestRunCycle_SkipsWhileRunning(t *testing.T) {
	r := &countingRunner{block: make(chan struct{})}
	s := New(r, []scraper.Source{stubSource{}}, 1)

	done := make(chan struct{})
	go func() {
		s.runCycle(context.Background())
		close(done)
	}()
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.runCycle(context.Background())
	assert.Equal(t, int32(1), r.calls.Load(), "overlapping cycle must be skipped")

	close(r.block)
	<-done
}
