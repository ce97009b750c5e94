package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"trademon/config"
	"trademon/internal/domain"
	"trademon/internal/feed"
	"trademon/internal/ports"
	"trademon/internal/trading"
)

// TwoLegService runs a ladder of buy/sell order pairs against the live feed.
// Every pair transition is driven by ticker messages; exchange calls run in
// the background and their results come back through the machine's result
// channel so pair state is only mutated here.
type TwoLegService struct {
	cfg        *config.Config
	logger     ports.Logger
	machine    *trading.Machine
	supervisor *feed.Supervisor

	doneLogged bool
}

// NewTwoLegService creates the two-leg trade service.
func NewTwoLegService(
	cfg *config.Config,
	logger ports.Logger,
	machine *trading.Machine,
	supervisor *feed.Supervisor,
) (*TwoLegService, error) {
	if cfg == nil || logger == nil || machine == nil || supervisor == nil {
		return nil, fmt.Errorf("missing required dependencies for TwoLegService")
	}
	return &TwoLegService{
		cfg:        cfg,
		logger:     logger,
		machine:    machine,
		supervisor: supervisor,
	}, nil
}

// Start runs the dispatch loop until the context is cancelled or a shutdown
// signal arrives. Completed ladders do not stop the service; the operator
// terminates the process.
func (s *TwoLegService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting two-leg trade service", map[string]interface{}{
		"product": s.cfg.ProductID,
		"pairs":   len(s.machine.Pairs()),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
		cancel()
	}()

	supervisorErrCh := make(chan error, 1)
	go func() {
		supervisorErrCh <- s.supervisor.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Two-leg trade service stopped")
			return nil

		case err := <-supervisorErrCh:
			if ctx.Err() != nil {
				s.logger.Info(ctx, "Two-leg trade service stopped")
				return nil
			}
			return fmt.Errorf("feed supervisor stopped unexpectedly: %w", err)

		case msg, ok := <-s.supervisor.Messages():
			if !ok {
				continue
			}
			s.handleMessage(ctx, msg)

		case res := <-s.machine.Results():
			s.machine.Apply(ctx, res)
			s.checkDone(ctx)
		}
	}
}

func (s *TwoLegService) handleMessage(ctx context.Context, msg domain.FeedMessage) {
	if msg.Type != domain.MsgTicker || msg.ProductID != s.cfg.ProductID {
		return
	}
	s.machine.HandleTick(ctx, msg)
}

func (s *TwoLegService) checkDone(ctx context.Context) {
	if s.doneLogged || !s.machine.Done() {
		return
	}
	s.doneLogged = true
	s.logger.Info(ctx, "All order pairs reached a terminal state", map[string]interface{}{
		"pairs": len(s.machine.Pairs()),
	})
}
