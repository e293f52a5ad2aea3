package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/freelancedao/escrow-service/internal/config"
	"github.com/freelancedao/escrow-service/internal/gateway"
	"github.com/freelancedao/escrow-service/internal/lock"
	"github.com/freelancedao/escrow-service/internal/model"
	"github.com/freelancedao/escrow-service/internal/repository"
)

const (
	escrowAmountTolerance     = 0.01
	indeterminateWriteTimeout = 5 * time.Second
)

type Gateway interface {
	Initialize(ctx context.Context, in gateway.InitializeRequest) (*gateway.Authorization, error)
	Verify(ctx context.Context, reference string) (*gateway.Transaction, error)
}

type PaymentService struct {
	payments  *repository.PaymentRepository
	contracts *repository.ContractRepository
	gateway   Gateway
	locker    lock.Locker
	cfg       config.GatewayConfig
	flight    singleflight.Group
	log       zerolog.Logger
	now       func() time.Time
}

type VerifyInput struct {
	Reference     string
	Purpose       model.PaymentPurpose
	ClaimedAmount float64
	ContractID    *uuid.UUID
	JobID         *uuid.UUID
}

type InitializeInput struct {
	ContractID uuid.UUID
	Amount     float64
}

type InitializeResult struct {
	AuthorizationURL string  `json:"authorization_url"`
	AccessCode       string  `json:"access_code"`
	Reference        string  `json:"reference"`
	GatewayAmount    float64 `json:"gateway_amount"`
	GatewayCurrency  string  `json:"gateway_currency"`
	ExchangeRate     float64 `json:"exchange_rate"`
}

func NewPaymentService(
	payments *repository.PaymentRepository,
	contracts *repository.ContractRepository,
	gw Gateway,
	locker lock.Locker,
	cfg config.GatewayConfig,
	log zerolog.Logger,
) *PaymentService {
	if locker == nil {
		locker = lock.NopLocker{}
	}
	return &PaymentService{
		payments:  payments,
		contracts: contracts,
		gateway:   gw,
		locker:    locker,
		cfg:       cfg,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Initialize starts an escrow deposit for a contract with the gateway and
// records it as a pending payment.
func (s *PaymentService) Initialize(ctx context.Context, input InitializeInput, actor model.Actor) (*InitializeResult, error) {
	contract, err := s.contracts.GetByID(ctx, input.ContractID)
	if err != nil {
		return nil, storeErr(err, "contract")
	}
	if !actor.IsClient() || contract.ClientID != actor.ID {
		return nil, fmt.Errorf("%w: only the client can fund this contract", ErrPermissionDenied)
	}
	if contract.Escrow.Funded {
		return nil, fmt.Errorf("%w: funds already escrowed", ErrConflict)
	}
	if math.Abs(contract.PaymentTerms.EscrowAmount-input.Amount) > escrowAmountTolerance {
		return nil, fmt.Errorf("%w: amount does not match contract escrow amount", ErrInvalidInput)
	}

	rate := s.cfg.ExchangeRate
	gatewayAmount := math.Ceil(input.Amount * rate)
	reference := fmt.Sprintf("escrow_%s_%d", contract.ID, s.now().UnixMilli())

	callback := ""
	if s.cfg.CallbackURL != "" {
		callback = strings.TrimRight(s.cfg.CallbackURL, "/") + "/contracts/" + contract.ID.String()
	}

	auth, err := s.gateway.Initialize(ctx, gateway.InitializeRequest{
		Email:       actor.Email,
		Amount:      int64(gatewayAmount) * 100,
		Currency:    s.cfg.Currency,
		Reference:   reference,
		CallbackURL: callback,
		Metadata: map[string]any{
			"contract_id":   contract.ID.String(),
			"purpose":       string(model.PaymentPurposeEscrowDeposit),
			"amount":        input.Amount,
			"exchange_rate": rate,
			"client_id":     actor.ID.String(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	contractID := contract.ID
	jobID := contract.JobID
	_, err = s.payments.Upsert(ctx, &model.Payment{
		PayerID:    actor.ID,
		PayerKind:  actor.Kind,
		Method:     model.PaymentMethodGateway,
		Purpose:    model.PaymentPurposeEscrowDeposit,
		Amount:     gatewayAmount,
		Currency:   s.cfg.Currency,
		Status:     model.PaymentStatusPending,
		Reference:  auth.Reference,
		ContractID: &contractID,
		JobID:      &jobID,
		Meta: model.Meta{
			"claimed_amount": input.Amount,
			"exchange_rate":  rate,
		},
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("contract_id", contract.ID.String()).
		Str("reference", auth.Reference).
		Msg("escrow payment initialized")

	return &InitializeResult{
		AuthorizationURL: auth.AuthorizationURL,
		AccessCode:       auth.AccessCode,
		Reference:        auth.Reference,
		GatewayAmount:    gatewayAmount,
		GatewayCurrency:  s.cfg.Currency,
		ExchangeRate:     rate,
	}, nil
}

// Verify confirms a payment with the gateway and records the outcome under
// its reference. Repeated calls for one reference update the same record.
// Verification never funds escrow; the client does that with the escrow action.
func (s *PaymentService) Verify(ctx context.Context, input VerifyInput, actor model.Actor) (*model.Payment, error) {
	input.Reference = strings.TrimSpace(input.Reference)
	if input.Reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrInvalidInput)
	}
	if _, ok := model.ParsePaymentPurpose(string(input.Purpose)); !ok {
		return nil, fmt.Errorf("%w: unknown purpose %q", ErrInvalidInput, input.Purpose)
	}
	if !actor.IsClient() && !actor.IsFreelancer() {
		return nil, fmt.Errorf("%w: only clients and freelancers make payments", ErrPermissionDenied)
	}

	v, err, _ := s.flight.Do(input.Reference, func() (any, error) {
		return s.verify(ctx, input, actor)
	})
	if err != nil {
		return nil, err
	}
	payment := v.(*model.Payment)
	if err := matchesCaller(payment, input, actor); err != nil {
		return nil, err
	}
	return payment, nil
}

// matchesCaller rejects a recorded payment that was verified for a different
// payer, purpose or link than the caller asked about. Concurrent callers of
// one reference share a single verification.
func matchesCaller(p *model.Payment, input VerifyInput, actor model.Actor) error {
	mismatch := p.PayerID != actor.ID || p.Purpose != input.Purpose
	if input.ContractID != nil && (p.ContractID == nil || *p.ContractID != *input.ContractID) {
		mismatch = true
	}
	if input.JobID != nil && (p.JobID == nil || *p.JobID != *input.JobID) {
		mismatch = true
	}
	if mismatch {
		return fmt.Errorf("%w: payment %s was verified for another payer or purpose", ErrConflict, p.Reference)
	}
	return nil
}

func (s *PaymentService) verify(ctx context.Context, input VerifyInput, actor model.Actor) (*model.Payment, error) {
	log := s.log.With().Str("reference", input.Reference).Logger()

	existing, err := s.payments.GetByReference(ctx, input.Reference)
	switch {
	case err == nil && existing.Status == model.PaymentStatusSuccess:
		return existing, nil
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, "payment:"+input.Reference)
	if errors.Is(err, lock.ErrHeld) {
		return nil, fmt.Errorf("%w: verification of %s already in progress", ErrConflict, input.Reference)
	}
	if err != nil {
		log.Warn().Err(err).Msg("verification lock unavailable, continuing without it")
	}
	defer release()

	payment := &model.Payment{
		PayerID:    actor.ID,
		PayerKind:  actor.Kind,
		Method:     model.PaymentMethodGateway,
		Purpose:    input.Purpose,
		Currency:   s.cfg.Currency,
		Reference:  input.Reference,
		ContractID: input.ContractID,
		JobID:      input.JobID,
		Meta: model.Meta{
			"gateway":        "paystack",
			"claimed_amount": input.ClaimedAmount,
			"exchange_rate":  s.cfg.ExchangeRate,
		},
	}

	tx, err := s.gateway.Verify(ctx, input.Reference)
	if err != nil {
		if gateway.IsTimeout(err) {
			// Outcome unknown: keep a failed record the caller can retry over.
			payment.Status = model.PaymentStatusFailed
			payment.Meta["indeterminate"] = true
			// The caller's deadline may be what fired, so record on a detached context.
			recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), indeterminateWriteTimeout)
			_, upErr := s.payments.Upsert(recordCtx, payment)
			cancel()
			if upErr != nil {
				log.Error().Err(upErr).Msg("failed to record indeterminate payment")
			}
			log.Warn().Err(err).Msg("payment verification timed out")
		}
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	payment.Status = model.PaymentStatusFailed
	if tx.Succeeded() {
		payment.Status = model.PaymentStatusSuccess
	}
	payment.Amount = tx.Amount
	if tx.Currency != "" {
		payment.Currency = tx.Currency
	}
	payment.Channel = tx.Channel
	payment.Meta["raw"] = tx.Raw

	saved, err := s.payments.Upsert(ctx, payment)
	if err != nil {
		return nil, err
	}

	log.Info().Str("status", string(saved.Status)).Float64("amount", saved.Amount).Msg("payment verified")
	return saved, nil
}

func (s *PaymentService) List(ctx context.Context, page, limit int, actor model.Actor) ([]model.Payment, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, fmt.Errorf("%w: admin access required", ErrPermissionDenied)
	}
	return s.payments.List(ctx, page, limit)
}
