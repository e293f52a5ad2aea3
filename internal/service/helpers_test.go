package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/freelancedao/escrow-service/internal/config"
	"github.com/freelancedao/escrow-service/internal/db"
	"github.com/freelancedao/escrow-service/internal/events"
	"github.com/freelancedao/escrow-service/internal/gateway"
	"github.com/freelancedao/escrow-service/internal/lock"
	"github.com/freelancedao/escrow-service/internal/model"
	"github.com/freelancedao/escrow-service/internal/repository"
)

var fixedNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type recordingSink struct {
	mu    sync.Mutex
	items []model.Notification
	err   error
}

func (s *recordingSink) Notify(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, n)
	return s.err
}

func (s *recordingSink) ofType(typ model.NotificationType) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Notification
	for _, n := range s.items {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

type fakeGateway struct {
	mu          sync.Mutex
	verifyCalls int
	verify      func(ctx context.Context, reference string) (*gateway.Transaction, error)
	initialized []gateway.InitializeRequest
}

func (g *fakeGateway) Initialize(_ context.Context, in gateway.InitializeRequest) (*gateway.Authorization, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initialized = append(g.initialized, in)
	return &gateway.Authorization{
		AuthorizationURL: "https://checkout.example/" + in.Reference,
		AccessCode:       "code",
		Reference:        in.Reference,
	}, nil
}

func (g *fakeGateway) Verify(ctx context.Context, reference string) (*gateway.Transaction, error) {
	g.mu.Lock()
	g.verifyCalls++
	fn := g.verify
	g.mu.Unlock()
	return fn(ctx, reference)
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verifyCalls
}

func successfulTx(amount float64) func(context.Context, string) (*gateway.Transaction, error) {
	return func(_ context.Context, reference string) (*gateway.Transaction, error) {
		return &gateway.Transaction{
			Status:    "success",
			Reference: reference,
			Amount:    amount,
			Currency:  "NGN",
			Channel:   "card",
			Raw:       map[string]any{"status": "success"},
		}, nil
	}
}

type fakeLocker struct {
	err error
}

func (l fakeLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, l.err
}

var errRedisDown = errors.New("dial tcp: connection refused")

type testEnv struct {
	db        *gorm.DB
	jobs      *repository.JobRepository
	proposals *repository.ProposalRepository
	contracts *repository.ContractRepository
	payments  *repository.PaymentRepository
	reports   *repository.ReportRepository
	sink      *recordingSink
	bus       *events.Bus
	gateway   *fakeGateway

	proposalSvc  *ProposalService
	contractSvc  *ContractService
	milestoneSvc *MilestoneService
	paymentSvc   *PaymentService
}

type stubPDF struct{}

func (stubPDF) Generate(doc model.ContractDocument) ([]byte, error) {
	return []byte("%PDF-" + doc.Contract.ID.String()), nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Environment: "test",
		DB: config.DBConfig{
			Driver:       "sqlite",
			DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
			MaxOpenConns: 1,
		},
	}
	database, err := db.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	env := &testEnv{
		db:        database,
		jobs:      repository.NewJobRepository(database),
		proposals: repository.NewProposalRepository(database),
		contracts: repository.NewContractRepository(database),
		payments:  repository.NewPaymentRepository(database),
		reports:   repository.NewReportRepository(database),
		sink:      &recordingSink{},
		bus:       events.NewBus(),
		gateway:   &fakeGateway{verify: successfulTx(750000)},
	}
	log := zerolog.Nop()

	env.proposalSvc = NewProposalService(env.proposals, env.jobs, env.sink, log)
	env.proposalSvc.now = fixedClock
	env.contractSvc = NewContractService(env.contracts, env.proposals, env.jobs, env.payments, env.sink, env.bus, stubPDF{}, log)
	env.contractSvc.now = fixedClock
	env.milestoneSvc = NewMilestoneService(env.jobs, env.contracts, env.sink, env.bus, 4, log)
	env.milestoneSvc.now = fixedClock
	env.paymentSvc = NewPaymentService(env.payments, env.contracts, env.gateway, lock.NopLocker{}, config.GatewayConfig{
		Currency:     "NGN",
		ExchangeRate: 1500,
		CallbackURL:  "https://app.example",
	}, log)
	env.paymentSvc.now = fixedClock
	return env
}

func clientActor() model.Actor {
	return model.Actor{ID: uuid.New(), Kind: model.ActorClient, Email: "client@example.com"}
}

func freelancerActor() model.Actor {
	return model.Actor{ID: uuid.New(), Kind: model.ActorFreelancer, Email: "freelancer@example.com"}
}

func adminActor() model.Actor {
	return model.Actor{ID: uuid.New(), Kind: model.ActorAdmin}
}

func (e *testEnv) seedJob(t *testing.T, client model.Actor) *model.Job {
	t.Helper()
	job := &model.Job{
		Title:    "Checkout redesign",
		Status:   model.JobStatusOpen,
		Budget:   model.Budget{Amount: 500, Currency: "USD"},
		ClientID: client.ID,
	}
	require.NoError(t, e.jobs.Create(context.Background(), job))
	return job
}

func (e *testEnv) seedProposal(t *testing.T, job *model.Job, freelancer model.Actor, milestones model.Milestones) *model.Proposal {
	t.Helper()
	p := &model.Proposal{
		JobID:        job.ID,
		FreelancerID: freelancer.ID,
		Description:  "I will deliver in two steps",
		Budget:       model.Budget{Amount: 500, Currency: "USD"},
		Milestones:   milestones,
		SubmittedAt:  fixedNow,
	}
	require.NoError(t, e.proposals.Create(context.Background(), p))
	return p
}

func twoMilestones() model.Milestones {
	return model.Milestones{
		{Name: "Design", Amount: 200, Duration: "1 week"},
		{Name: "Build", Amount: 300, Duration: "2 weeks"},
	}
}

// contractFixture walks a job through acceptance and contract creation.
type contractFixture struct {
	client     model.Actor
	freelancer model.Actor
	job        *model.Job
	proposal   *model.Proposal
	contract   *model.Contract
}

func (e *testEnv) acceptedContract(t *testing.T, milestones model.Milestones) *contractFixture {
	t.Helper()
	ctx := context.Background()
	f := &contractFixture{client: clientActor(), freelancer: freelancerActor()}
	f.job = e.seedJob(t, f.client)
	f.proposal = e.seedProposal(t, f.job, f.freelancer, milestones)

	_, err := e.proposalSvc.Resolve(ctx, f.proposal.ID, DecisionAccept, f.client)
	require.NoError(t, err)

	contract, created, err := e.contractSvc.Create(ctx, f.proposal.ID, f.client)
	require.NoError(t, err)
	require.True(t, created)
	f.contract = contract
	return f
}

// activeContract additionally signs and funds the contract and copies the
// contract milestones onto the job.
func (e *testEnv) activeContract(t *testing.T, milestones model.Milestones) *contractFixture {
	t.Helper()
	ctx := context.Background()
	f := e.acceptedContract(t, milestones)

	_, err := e.contractSvc.Apply(ctx, f.contract.ID, ApplyInput{Action: ActionSign}, f.client)
	require.NoError(t, err)
	_, err = e.contractSvc.Apply(ctx, f.contract.ID, ApplyInput{Action: ActionEscrow}, f.client)
	require.NoError(t, err)
	c, err := e.contractSvc.Apply(ctx, f.contract.ID, ApplyInput{Action: ActionSign}, f.freelancer)
	require.NoError(t, err)
	f.contract = c

	job, err := e.jobs.GetByID(ctx, f.job.ID)
	require.NoError(t, err)
	job.Milestones = c.Milestones.Clone()
	require.NoError(t, e.jobs.Update(ctx, job))
	f.job = job
	return f
}
