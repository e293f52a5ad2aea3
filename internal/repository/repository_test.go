package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/freelancedao/escrow-service/internal/model"
)

var at = time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)

func TestJobUpdateIsVersioned(t *testing.T) {
	ctx := context.Background()
	jobs := NewJobRepository(openTestDB(t))
	job := seedJob(t, jobs, model.Milestones{{Name: "A", Amount: 1}})

	stale, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)

	job.Progress = 100
	job.Status = model.JobStatusCompleted
	require.NoError(t, jobs.Update(ctx, job))
	assert.Equal(t, int64(2), job.Version)

	stale.Progress = 0
	err = jobs.Update(ctx, stale)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, int64(1), stale.Version)

	got, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	require.Len(t, got.Milestones, 1)
	assert.Equal(t, "A", got.Milestones[0].Name)
}

func TestGetMissingReturnsRecordNotFound(t *testing.T) {
	jobs := NewJobRepository(openTestDB(t))
	_, err := jobs.GetByID(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestProposalAcceptCascades(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	jobs := NewJobRepository(database)
	proposals := NewProposalRepository(database)

	job := seedJob(t, jobs, nil)
	winner := seedProposal(t, proposals, job.ID, at)
	loserA := seedProposal(t, proposals, job.ID, at.Add(time.Minute))
	loserB := seedProposal(t, proposals, job.ID, at.Add(2*time.Minute))
	otherJob := seedJob(t, jobs, nil)
	untouched := seedProposal(t, proposals, otherJob.ID, at)

	assigned := model.AssignFreelancer(winner.FreelancerID).Apply(*job)
	accepted, rejected, err := proposals.Accept(ctx, winner.ID, &assigned, at)
	require.NoError(t, err)

	assert.Equal(t, model.ProposalStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.RespondedAt)
	require.Len(t, rejected, 2)
	assert.Equal(t, loserA.ID, rejected[0].ID)
	assert.Equal(t, loserB.ID, rejected[1].ID)
	for _, p := range rejected {
		assert.Equal(t, model.ProposalStatusRejected, p.Status)
	}

	storedJob, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusInProgress, storedJob.Status)
	assert.True(t, storedJob.IsAssignedTo(winner.FreelancerID))

	other, err := proposals.GetByID(ctx, untouched.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProposalStatusPending, other.Status)

	// The cascade already rejected loserA; accepting it now loses.
	again := model.AssignFreelancer(loserA.FreelancerID).Apply(*storedJob)
	_, _, err = proposals.Accept(ctx, loserA.ID, &again, at)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestProposalAcceptRollsBackOnStaleJob(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	jobs := NewJobRepository(database)
	proposals := NewProposalRepository(database)

	job := seedJob(t, jobs, nil)
	p := seedProposal(t, proposals, job.ID, at)
	other := seedProposal(t, proposals, job.ID, at)

	stale := *job
	job.Title = "Renamed"
	require.NoError(t, jobs.Update(ctx, job))

	assigned := model.AssignFreelancer(p.FreelancerID).Apply(stale)
	_, _, err := proposals.Accept(ctx, p.ID, &assigned, at)
	assert.ErrorIs(t, err, ErrVersionConflict)

	for _, id := range []uuid.UUID{p.ID, other.ID} {
		got, err := proposals.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.ProposalStatusPending, got.Status)
	}
}

func TestProposalReject(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	proposals := NewProposalRepository(database)
	job := seedJob(t, NewJobRepository(database), nil)
	p := seedProposal(t, proposals, job.ID, at)

	got, err := proposals.Reject(ctx, p.ID, at)
	require.NoError(t, err)
	assert.Equal(t, model.ProposalStatusRejected, got.Status)

	_, err = proposals.Reject(ctx, p.ID, at)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestContractUniquePerProposal(t *testing.T) {
	ctx := context.Background()
	contracts := NewContractRepository(openTestDB(t))
	proposalID := uuid.New()

	first := &model.Contract{JobID: uuid.New(), ProposalID: proposalID, Status: model.ContractStatusPendingClientSignature}
	require.NoError(t, contracts.Create(ctx, first))

	dup := &model.Contract{JobID: first.JobID, ProposalID: proposalID, Status: model.ContractStatusPendingClientSignature}
	err := contracts.Create(ctx, dup)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	got, err := contracts.GetByProposalID(ctx, proposalID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestContractSaveWithJobIsAtomic(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	jobs := NewJobRepository(database)
	contracts := NewContractRepository(database)

	job := seedJob(t, jobs, model.Milestones{{Name: "A"}})
	c := &model.Contract{JobID: job.ID, ProposalID: uuid.New(), Milestones: model.Milestones{{Name: "A"}}, Status: model.ContractStatusActive}
	require.NoError(t, contracts.Create(ctx, c))

	staleContract := *c
	c.Title = "bumped"
	require.NoError(t, contracts.Update(ctx, c))

	job.Milestones[0].Completed = true
	job.Progress = 100
	staleContract.Milestones = model.Milestones{{Name: "A", Completed: true}}
	err := contracts.SaveWithJob(ctx, &staleContract, job)
	assert.ErrorIs(t, err, ErrVersionConflict)

	stored, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Progress)
	assert.False(t, stored.Milestones[0].Completed)
}

func TestContractListAndBatches(t *testing.T) {
	ctx := context.Background()
	contracts := NewContractRepository(openTestDB(t))
	client := uuid.New()

	for i := 0; i < 5; i++ {
		c := &model.Contract{
			JobID:      uuid.New(),
			ProposalID: uuid.New(),
			ClientID:   client,
			Status:     model.ContractStatusActive,
		}
		if i%2 == 0 {
			c.Milestones = model.Milestones{{Name: "A"}}
			c.Status = model.ContractStatusPendingEscrow
		}
		require.NoError(t, contracts.Create(ctx, c))
	}
	require.NoError(t, contracts.Create(ctx, &model.Contract{JobID: uuid.New(), ProposalID: uuid.New(), ClientID: uuid.New(), Status: model.ContractStatusActive}))

	list, total, err := contracts.List(ctx, ContractFilter{PartyID: &client, Limit: 2, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, list, 2)

	list, total, err = contracts.List(ctx, ContractFilter{Statuses: []model.ContractStatus{model.ContractStatusActive}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 3)

	seen := 0
	err = contracts.EachWithMilestones(ctx, 2, func(batch []model.Contract) error {
		for _, c := range batch {
			assert.NotEmpty(t, c.Milestones)
		}
		seen += len(batch)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, seen)
}

func TestPaymentUpsertByReference(t *testing.T) {
	ctx := context.Background()
	payments := NewPaymentRepository(openTestDB(t))
	contractID := uuid.New()

	first, err := payments.Upsert(ctx, &model.Payment{
		PayerID:    uuid.New(),
		PayerKind:  model.ActorClient,
		Method:     model.PaymentMethodGateway,
		Purpose:    model.PaymentPurposeEscrowDeposit,
		Amount:     500,
		Currency:   "USD",
		Status:     model.PaymentStatusPending,
		Reference:  "escrow_ref_1",
		ContractID: &contractID,
	})
	require.NoError(t, err)

	second, err := payments.Upsert(ctx, &model.Payment{
		PayerID:   first.PayerID,
		PayerKind: model.ActorClient,
		Method:    model.PaymentMethodGateway,
		Purpose:   model.PaymentPurposeEscrowDeposit,
		Amount:    499.5,
		Currency:  "NGN",
		Status:    model.PaymentStatusSuccess,
		Reference: "escrow_ref_1",
		Channel:   "card",
		Meta:      model.Meta{"claimed_amount": 500.0},
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, model.PaymentStatusSuccess, second.Status)
	assert.Equal(t, 499.5, second.Amount)
	assert.Equal(t, "card", second.Channel)
	require.NotNil(t, second.ContractID)
	assert.Equal(t, contractID, *second.ContractID)
	assert.Equal(t, 500.0, second.Meta["claimed_amount"])

	var count int64
	require.NoError(t, payments.db.Model(&model.Payment{}).Where("reference = ?", "escrow_ref_1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestNotificationsAndReports(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	notifications := NewNotificationRepository(database)
	contracts := NewContractRepository(database)
	reports := NewReportRepository(database)

	recipient := uuid.New()
	require.NoError(t, notifications.Create(ctx, &model.Notification{
		RecipientID: recipient, RecipientKind: model.ActorFreelancer,
		Type: model.NotificationProposalAccepted, Title: "Proposal Accepted", Message: "ok",
	}))
	other := &model.Notification{
		RecipientID: recipient, RecipientKind: model.ActorFreelancer,
		Type: model.NotificationContractSigned, Title: "Contract Signed", Message: "ok",
	}
	require.NoError(t, notifications.Create(ctx, other))
	stranger := &model.Notification{
		RecipientID: uuid.New(), RecipientKind: model.ActorClient,
		Type: model.NotificationContractActive, Title: "Contract Active", Message: "ok",
	}
	require.NoError(t, notifications.Create(ctx, stranger))

	list, err := notifications.ListByRecipient(ctx, NotificationFilter{RecipientID: recipient})
	require.NoError(t, err)
	require.Len(t, list, 2)

	readAt := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	n, err := notifications.MarkRead(ctx, recipient, []uuid.UUID{other.ID, stranger.ID}, readAt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	unread, err := notifications.ListByRecipient(ctx, NotificationFilter{RecipientID: recipient, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, model.NotificationProposalAccepted, unread[0].Type)

	count, err := notifications.CountUnread(ctx, recipient)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	n, err = notifications.MarkRead(ctx, recipient, nil, readAt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	count, err = notifications.CountUnread(ctx, recipient)
	require.NoError(t, err)
	assert.Zero(t, count)
	count, err = notifications.CountUnread(ctx, stranger.RecipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	funded := &model.Contract{JobID: uuid.New(), ProposalID: uuid.New(), Status: model.ContractStatusActive,
		Escrow: model.Escrow{Funded: true, Amount: 300}}
	draft := &model.Contract{JobID: uuid.New(), ProposalID: uuid.New(), Status: model.ContractStatusPendingClientSignature,
		Escrow: model.Escrow{Amount: 100}}
	require.NoError(t, contracts.Create(ctx, funded))
	require.NoError(t, contracts.Create(ctx, draft))

	counts, err := reports.ContractStatusCounts(ctx, nil)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "active", counts[0].Status)
	assert.Equal(t, 300.0, counts[0].Amount)
	assert.Equal(t, 0.0, counts[1].Amount)

	counts, err = reports.ContractStatusCounts(ctx, []model.ContractStatus{model.ContractStatusActive})
	require.NoError(t, err)
	assert.Len(t, counts, 1)
}
