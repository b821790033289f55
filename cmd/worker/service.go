package main

import (
	"context"
	"errors"

	"github.com/angelmondragon/dontforget-backend/internal/orchestrator"
	pkgerrors "github.com/angelmondragon/dontforget-backend/pkg/errors"
	"github.com/angelmondragon/dontforget-backend/pkg/logger"
)

// ServiceParams wire the worker's event loop and its inbound consumer.
type ServiceParams struct {
	Logger       *logger.Logger
	Orchestrator *orchestrator.Service
	Consumer     *orchestrator.Consumer
}

// Service runs the orchestrator loop alongside the geofence event consumer
// and stops both when either fails or the context ends.
type Service struct {
	logg         *logger.Logger
	orchestrator *orchestrator.Service
	consumer     *orchestrator.Consumer
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	if params.Orchestrator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orchestrator is required")
	}
	if params.Consumer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "consumer is required")
	}
	return &Service{
		logg:         params.Logger,
		orchestrator: params.Orchestrator,
		consumer:     params.Consumer,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- s.orchestrator.Run(ctx)
	}()
	go func() {
		errs <- s.consumer.Run(ctx)
	}()

	// First exit wins; cancel tears the sibling down and we drain it.
	err := <-errs
	cancel()
	second := <-errs

	if err == nil || errors.Is(err, context.Canceled) {
		err = second
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
