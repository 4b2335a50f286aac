package main

import (
	"context"
	"fmt"

	"github.com/kardianos/service"
)

// program implements service.Interface so the server can run under the
// platform's service manager.
type program struct {
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	svcLogger service.Logger
}

func (p *program) Start(s service.Service) error {
	p.svcLogger, _ = s.Logger(nil)
	if p.svcLogger != nil {
		p.svcLogger.Info("Order Summary Server service starting")
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.done = make(chan struct{})

	go p.run()
	return nil
}

func (p *program) run() {
	defer close(p.done)
	runServer(p.ctx)
	if p.svcLogger != nil {
		p.svcLogger.Info("Order Summary Server service stopped")
	}
}

func (p *program) Stop(s service.Service) error {
	if p.svcLogger != nil {
		p.svcLogger.Info("Order Summary Server service stop requested")
	}
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
	return nil
}

func serviceConfig() *service.Config {
	return &service.Config{
		Name:        "ordersummary-server",
		DisplayName: "Order Summary Server",
		Description: "Reconciles order/manufacturing/delivery quantities and pushes live summary updates.",
	}
}

// handleServiceCommand runs a service control action, or the service itself
// for "run".
func handleServiceCommand(action string) error {
	prg := &program{}
	svc, err := service.New(prg, serviceConfig())
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	switch action {
	case "run":
		return svc.Run()
	case "install", "uninstall", "start", "stop", "restart":
		if err := service.Control(svc, action); err != nil {
			return fmt.Errorf("service %s failed: %w", action, err)
		}
		fmt.Printf("Service %s: OK\n", action)
		return nil
	default:
		return fmt.Errorf("unknown service action %q (expected install, uninstall, start, stop, restart, run)", action)
	}
}
