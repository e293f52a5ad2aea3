package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freelancedao/escrow-service/internal/model"
)

func milestones(flags ...bool) model.Milestones {
	out := make(model.Milestones, len(flags))
	for i, done := range flags {
		out[i] = model.Milestone{Name: string(rune('A' + i)), Amount: 10, Completed: done}
	}
	return out
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name string
		in   model.Milestones
		want int
	}{
		{"empty", nil, 0},
		{"none done", milestones(false, false), 0},
		{"one of three", milestones(true, false, false), 33},
		{"two of three", milestones(true, true, false), 67},
		{"half", milestones(true, false), 50},
		{"all", milestones(true, true, true), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Progress(tt.in))
		})
	}
}

func TestToggleMilestone(t *testing.T) {
	job := model.Job{Status: model.JobStatusInProgress, Milestones: milestones(false, false)}

	require.NoError(t, ToggleMilestone(&job, 0, true, testNow))
	assert.Equal(t, 50, job.Progress)
	assert.Equal(t, model.JobStatusInProgress, job.Status)
	require.NotNil(t, job.Milestones[0].CompletedAt)

	// Re-completing keeps the original completion time.
	require.NoError(t, ToggleMilestone(&job, 0, true, testNow.Add(time.Hour)))
	assert.True(t, job.Milestones[0].CompletedAt.Equal(testNow))

	require.NoError(t, ToggleMilestone(&job, 1, true, testNow))
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, model.JobStatusCompleted, job.Status)

	require.NoError(t, ToggleMilestone(&job, 1, false, testNow))
	assert.Equal(t, 50, job.Progress)
	assert.Equal(t, model.JobStatusInProgress, job.Status)
	assert.Nil(t, job.Milestones[1].CompletedAt)
}

func TestToggleMilestoneOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		list  model.Milestones
		index int
	}{
		{"empty list", nil, 0},
		{"negative", milestones(false), -1},
		{"past end", milestones(false, false), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := model.Job{Status: model.JobStatusInProgress, Milestones: tt.list}
			err := ToggleMilestone(&job, tt.index, true, testNow)
			assert.ErrorIs(t, err, ErrOutOfRange)
			assert.Equal(t, 0, job.Progress)
		})
	}
}

func TestRecomputeJobLeavesOpenJobs(t *testing.T) {
	job := model.Job{Status: model.JobStatusOpen}
	RecomputeJob(&job)
	assert.Equal(t, model.JobStatusOpen, job.Status)
	assert.Equal(t, 0, job.Progress)
}

func TestMilestonesDiffer(t *testing.T) {
	base := milestones(true, false)

	assert.False(t, MilestonesDiffer(base, base.Clone()))

	changed := base.Clone()
	changed[1].Completed = true
	assert.True(t, MilestonesDiffer(base, changed))

	renamed := base.Clone()
	renamed[0].Name = "Z"
	assert.True(t, MilestonesDiffer(base, renamed))

	assert.True(t, MilestonesDiffer(base, base[:1]))

	// Descriptions are not part of the comparison.
	described := base.Clone()
	described[0].Description = "changed"
	assert.False(t, MilestonesDiffer(base, described))
}

func TestJobMilestonesFromContract(t *testing.T) {
	src := model.Milestones{
		{Name: "Design", Description: "Milestone: Design", Amount: 200, Duration: "2 weeks", Completed: true, CompletedAt: &testNow},
		{Name: "Build", Amount: 300},
	}

	out := JobMilestonesFromContract(src)
	require.Len(t, out, 2)
	assert.Equal(t, "2 weeks", out[0].Duration)
	assert.Equal(t, "1 week", out[1].Duration)
	assert.Empty(t, out[0].Description)
	assert.True(t, out[0].Completed)

	out[0].CompletedAt = nil
	assert.NotNil(t, src[0].CompletedAt)
}

func TestValidateMilestones(t *testing.T) {
	assert.ErrorIs(t, ValidateMilestones(nil), ErrInvalidInput)
	assert.ErrorIs(t, ValidateMilestones(model.Milestones{{Name: "", Amount: 1}}), ErrInvalidInput)
	assert.ErrorIs(t, ValidateMilestones(model.Milestones{{Name: "x", Amount: -1}}), ErrInvalidInput)
	assert.NoError(t, ValidateMilestones(model.Milestones{{Name: "x", Amount: 0}}))
}
