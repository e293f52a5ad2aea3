package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/freelancedao/escrow-service/internal/config"
	"github.com/freelancedao/escrow-service/internal/db"
	"github.com/freelancedao/escrow-service/internal/events"
	"github.com/freelancedao/escrow-service/internal/excel"
	"github.com/freelancedao/escrow-service/internal/gateway"
	httphandler "github.com/freelancedao/escrow-service/internal/http"
	"github.com/freelancedao/escrow-service/internal/lock"
	"github.com/freelancedao/escrow-service/internal/mq"
	"github.com/freelancedao/escrow-service/internal/notify"
	"github.com/freelancedao/escrow-service/internal/pdf"
	"github.com/freelancedao/escrow-service/internal/repository"
	"github.com/freelancedao/escrow-service/internal/service"
)

type app struct {
	cfg        *config.Config
	log        zerolog.Logger
	db         *gorm.DB
	services   httphandler.Services
	bus        *events.Bus
	dispatcher *notify.Dispatcher
	publisher  *mq.Publisher
	redis      *redis.Client
}

func newApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	database, err := db.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a := &app{cfg: cfg, log: log, db: database, bus: events.NewBus()}

	jobRepo := repository.NewJobRepository(database)
	proposalRepo := repository.NewProposalRepository(database)
	contractRepo := repository.NewContractRepository(database)
	paymentRepo := repository.NewPaymentRepository(database)
	notificationRepo := repository.NewNotificationRepository(database)
	reportRepo := repository.NewReportRepository(database)

	sinks := notify.Fanout{notify.NewStoreSink(notificationRepo)}
	if cfg.MQ.URL != "" {
		publisher, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange)
		if err != nil {
			log.Warn().Err(err).Msg("message broker unavailable, notifications stay in the database")
		} else {
			a.publisher = publisher
			sinks = append(sinks, notify.NewMQSink(publisher))
		}
	}
	a.dispatcher = notify.NewDispatcher(sinks, cfg.Notify.QueueSize, cfg.Notify.Workers, log)

	var locker lock.Locker = lock.NopLocker{}
	if cfg.Redis.Addr != "" {
		a.redis = lock.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		locker = lock.NewRedisLocker(a.redis, cfg.Redis.LockTTL)
	}

	gw := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.SecretKey, cfg.Gateway.Timeout)
	milestones := service.NewMilestoneService(jobRepo, contractRepo, a.dispatcher, a.bus, cfg.Reconcile.Concurrency, log)

	a.services = httphandler.Services{
		Proposals:     service.NewProposalService(proposalRepo, jobRepo, a.dispatcher, log),
		Contracts:     service.NewContractService(contractRepo, proposalRepo, jobRepo, paymentRepo, a.dispatcher, a.bus, pdf.NewGenerator(), log),
		Milestones:    milestones,
		Payments:      service.NewPaymentService(paymentRepo, contractRepo, gw, locker, cfg.Gateway, log),
		Reports:       service.NewReportService(reportRepo, milestones, excel.NewGenerator()),
		Notifications: service.NewNotificationService(notificationRepo),
	}
	return a, nil
}

func (a *app) ready(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	if a.publisher != nil && !a.publisher.IsConnected() {
		return errors.New("message broker connection closed")
	}
	return nil
}

// close drains pending notifications before closing their transports.
func (a *app) close() error {
	a.bus.Close()
	a.dispatcher.Close()
	stats := a.dispatcher.Stats()
	a.log.Info().
		Int64("delivered", stats.Delivered).
		Int64("failed", stats.Failed).
		Int64("dropped", stats.Dropped).
		Msg("notification dispatcher stopped")

	var errs []error
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if sqlDB, err := a.db.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}
