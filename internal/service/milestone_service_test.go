package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freelancedao/escrow-service/internal/model"
)

func TestSyncJobMilestoneMirrorsContract(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.activeContract(t, twoMilestones())
	env.sink.reset()

	res, err := env.milestoneSvc.SyncJobMilestone(ctx, f.job.ID, 0, true, f.freelancer)
	require.NoError(t, err)
	assert.Equal(t, 50, res.Job.Progress)
	assert.Equal(t, model.JobStatusInProgress, res.Job.Status)
	require.NotNil(t, res.Contract)
	assert.True(t, res.Contract.Milestones[0].Completed)
	require.NotNil(t, res.Contract.Milestones[0].CompletedAt)
	assert.True(t, res.Contract.Milestones[0].CompletedAt.Equal(fixedNow))

	stored, err := env.contracts.GetByID(ctx, f.contract.ID)
	require.NoError(t, err)
	assert.True(t, stored.Milestones[0].Completed)
	assert.False(t, stored.Milestones[1].Completed)
	assert.Equal(t, "Milestone: Design", stored.Milestones[0].Description)

	sent := env.sink.ofType(model.NotificationMilestoneCompleted)
	require.Len(t, sent, 1)
	assert.Equal(t, f.client.ID, sent[0].RecipientID)

	// Marking it again changes nothing and sends nothing.
	_, err = env.milestoneSvc.SyncJobMilestone(ctx, f.job.ID, 0, true, f.freelancer)
	require.NoError(t, err)
	assert.Len(t, env.sink.ofType(model.NotificationMilestoneCompleted), 1)

	res, err = env.milestoneSvc.SyncContractMilestone(ctx, f.contract.ID, 1, true, f.freelancer)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Job.Progress)
	assert.Equal(t, model.JobStatusCompleted, res.Job.Status)
	assert.Len(t, env.sink.ofType(model.NotificationMilestoneCompleted), 2)

	res, err = env.milestoneSvc.SyncJobMilestone(ctx, f.job.ID, 1, false, f.freelancer)
	require.NoError(t, err)
	assert.Equal(t, 50, res.Job.Progress)
	assert.Equal(t, model.JobStatusInProgress, res.Job.Status)
	assert.Nil(t, res.Job.Milestones[1].CompletedAt)
	assert.False(t, res.Contract.Milestones[1].Completed)
}

func TestSyncJobMilestoneProgressRounding(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.activeContract(t, model.Milestones{
		{Name: "One", Amount: 100},
		{Name: "Two", Amount: 100},
		{Name: "Three", Amount: 100},
	})

	res, err := env.milestoneSvc.SyncJobMilestone(ctx, f.job.ID, 2, true, f.freelancer)
	require.NoError(t, err)
	assert.Equal(t, 33, res.Job.Progress)

	res, err = env.milestoneSvc.SyncJobMilestone(ctx, f.job.ID, 0, true, f.freelancer)
	require.NoError(t, err)
	assert.Equal(t, 67, res.Job.Progress)
}

func TestSyncJobMilestoneErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.activeContract(t, twoMilestones())

	tests := []struct {
		name    string
		index   int
		actor   model.Actor
		wantErr error
	}{
		{"client cannot update", 0, f.client, ErrPermissionDenied},
		{"other freelancer", 0, freelancerActor(), ErrPermissionDenied},
		{"negative index", -1, f.freelancer, ErrOutOfRange},
		{"index past end", 2, f.freelancer, ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.milestoneSvc.SyncJobMilestone(ctx, f.job.ID, tt.index, true, tt.actor)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := env.milestoneSvc.SyncContractMilestone(ctx, f.job.ID, 0, true, f.freelancer)
	assert.ErrorIs(t, err, ErrNotFound)

	job, err := env.jobs.GetByID(ctx, f.job.ID)
	require.NoError(t, err)
	job.Milestones = model.Milestones{}
	require.NoError(t, env.jobs.Update(ctx, job))

	_, err = env.milestoneSvc.SyncJobMilestone(ctx, f.job.ID, 0, true, f.freelancer)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestSyncJobMilestoneCountMismatchLeavesContract(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.activeContract(t, twoMilestones())

	job, err := env.jobs.GetByID(ctx, f.job.ID)
	require.NoError(t, err)
	job.Milestones = append(job.Milestones, model.Milestone{Name: "Extra", Amount: 50})
	require.NoError(t, env.jobs.Update(ctx, job))

	before, err := env.contracts.GetByID(ctx, f.contract.ID)
	require.NoError(t, err)

	res, err := env.milestoneSvc.SyncJobMilestone(ctx, f.job.ID, 0, true, f.freelancer)
	require.NoError(t, err)
	assert.Nil(t, res.Contract)
	assert.Equal(t, 33, res.Job.Progress)

	after, err := env.contracts.GetByID(ctx, f.contract.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.False(t, after.Milestones[0].Completed)
}

func TestApproveJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.activeContract(t, twoMilestones())

	_, err := env.milestoneSvc.ApproveJob(ctx, f.job.ID, true, f.client)
	assert.ErrorIs(t, err, ErrInvalidState)

	for i := range 2 {
		_, err := env.milestoneSvc.SyncJobMilestone(ctx, f.job.ID, i, true, f.freelancer)
		require.NoError(t, err)
	}

	_, err = env.milestoneSvc.ApproveJob(ctx, f.job.ID, true, f.freelancer)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	env.sink.reset()
	res, err := env.milestoneSvc.ApproveJob(ctx, f.job.ID, true, f.client)
	require.NoError(t, err)
	require.NotNil(t, res.Contract)
	assert.Equal(t, model.ContractStatusCompleted, res.Contract.Status)

	sent := env.sink.ofType(model.NotificationPaymentReceived)
	require.Len(t, sent, 1)
	assert.Equal(t, f.freelancer.ID, sent[0].RecipientID)

	_, err = env.milestoneSvc.ApproveJob(ctx, f.job.ID, true, f.client)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestApproveJobRequestsRevisions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.activeContract(t, twoMilestones())

	for i := range 2 {
		_, err := env.milestoneSvc.SyncJobMilestone(ctx, f.job.ID, i, true, f.freelancer)
		require.NoError(t, err)
	}
	env.sink.reset()

	res, err := env.milestoneSvc.ApproveJob(ctx, f.job.ID, false, f.client)
	require.NoError(t, err)
	assert.Equal(t, 50, res.Job.Progress)
	assert.Equal(t, model.JobStatusInProgress, res.Job.Status)
	assert.True(t, res.Job.Milestones[0].Completed)
	assert.False(t, res.Job.Milestones[1].Completed)

	stored, err := env.contracts.GetByID(ctx, f.contract.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusActive, stored.Status)
	assert.False(t, stored.Milestones[1].Completed)

	sent := env.sink.ofType(model.NotificationRevisionRequested)
	require.Len(t, sent, 1)
	assert.Equal(t, f.freelancer.ID, sent[0].RecipientID)
}

func TestReconcile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fixtures := make([]*contractFixture, 0, 10)
	for range 10 {
		fixtures = append(fixtures, env.activeContract(t, twoMilestones()))
	}

	// Drift four contracts away from their jobs.
	for _, f := range fixtures[:4] {
		c, err := env.contracts.GetByID(ctx, f.contract.ID)
		require.NoError(t, err)
		c.Milestones[0].Completed = true
		c.Milestones[1].Completed = true
		require.NoError(t, env.contracts.Update(ctx, c))
	}

	_, err := env.milestoneSvc.Reconcile(ctx, fixtures[0].client)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	summary, err := env.milestoneSvc.Reconcile(ctx, adminActor())
	require.NoError(t, err)
	assert.Equal(t, int64(10), summary.Total)
	assert.Equal(t, int64(4), summary.Synced)
	assert.Equal(t, int64(6), summary.Unchanged)
	assert.Zero(t, summary.Failed)
	assert.Len(t, summary.Rows, 10)

	job, err := env.jobs.GetByID(ctx, fixtures[0].job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Empty(t, job.Milestones[0].Description)

	again, err := env.milestoneSvc.Reconcile(ctx, adminActor())
	require.NoError(t, err)
	assert.Zero(t, again.Synced)
	assert.Equal(t, int64(10), again.Unchanged)
}

func TestReconcileSkipsMissingJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.acceptedContract(t, twoMilestones())
	kept := env.acceptedContract(t, twoMilestones())

	require.NoError(t, env.db.Delete(&model.Job{}, "id = ?", f.job.ID).Error)

	summary, err := env.milestoneSvc.Reconcile(ctx, adminActor())
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Total)
	assert.Equal(t, int64(1), summary.Skipped)
	// The job had no milestones yet, so it picks up the contract's.
	assert.Equal(t, int64(1), summary.Synced)

	job, err := env.jobs.GetByID(ctx, kept.job.ID)
	require.NoError(t, err)
	require.Len(t, job.Milestones, 2)
	assert.Equal(t, "1 week", job.Milestones[0].Duration)
	assert.Equal(t, model.JobStatusInProgress, job.Status)
}

