package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pensionflow/pkg/logger"
)

func TestScheduler_RunsDueJobs(t *testing.T) {
	s := NewScheduler(2*time.Millisecond, logger.NewNop())
	var runs atomic.Int32
	id := s.Schedule(&Job{Name: "count", Interval: 5 * time.Millisecond, Run: func() { runs.Add(1) }})
	assert.NotEmpty(t, id)

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 2*time.Millisecond)
}

func TestScheduler_PausedJobDoesNotRun(t *testing.T) {
	s := NewScheduler(2*time.Millisecond, logger.NewNop())
	var runs atomic.Int32
	id := s.Schedule(&Job{Name: "paused", Interval: time.Millisecond, Run: func() { runs.Add(1) }})
	assert.True(t, s.Pause(id))
	assert.False(t, s.Pause("missing"))

	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(0), runs.Load())
}

func TestScheduler_SurvivesPanickingJob(t *testing.T) {
	s := NewScheduler(2*time.Millisecond, logger.NewNop())
	var runs atomic.Int32
	s.Schedule(&Job{Name: "boom", Interval: time.Millisecond, Run: func() { panic("boom") }})
	s.Schedule(&Job{Name: "ok", Interval: time.Millisecond, Run: func() { runs.Add(1) }})

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 2*time.Millisecond)
}
