package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"commhub/internal/biz/usecase"
	"commhub/internal/capture"
	"commhub/internal/conf"
	"commhub/internal/data"
	"commhub/internal/eventbus"
)

// Hub assembles the automation core: storage behind the async writer, the
// automation usecase, the browser tab host and the capture schedule.
type Hub struct {
	cfg *conf.Config
	log zerolog.Logger

	bus        eventbus.Bus
	writer     *AsyncWriter
	automation *usecase.AutomationUsecase
	host       *data.RodTabHost
	scheduler  *CaptureScheduler
}

// NewHub wires the core from configuration. The browser side is attached in
// Start so a storage-only deployment stays possible.
func NewHub(cfg *conf.Config, log zerolog.Logger) (*Hub, error) {
	state, err := data.NewStateRepo(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open state storage: %w", err)
	}
	writer := NewAsyncWriter(state, log)
	bus := eventbus.New()
	codegen := usecase.NewCodeGenerator(
		data.NewCodegenRepo(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL),
		log,
	)
	automation := usecase.NewAutomationUsecase(writer, codegen, bus, log)

	return &Hub{
		cfg:        cfg,
		log:        log.With().Str("component", "hub").Logger(),
		bus:        bus,
		writer:     writer,
		automation: automation,
	}, nil
}

// Automation exposes the automation usecase to front-end surfaces.
func (h *Hub) Automation() *usecase.AutomationUsecase { return h.automation }

// Bus exposes the event fanout for observers.
func (h *Hub) Bus() eventbus.Bus { return h.bus }

// Start hydrates state and, when the browser is enabled, opens the tab host
// and begins the capture schedule.
func (h *Hub) Start(ctx context.Context) error {
	if err := h.automation.Hydrate(ctx); err != nil {
		return err
	}

	if !h.cfg.Browser.Enabled {
		h.log.Info().Msg("browser disabled, running storage-only")
		return nil
	}

	host := data.NewRodTabHost(data.RodHostConfig{
		ControlURL: h.cfg.Browser.ControlURL,
		Headless:   h.cfg.Browser.Headless,
	}, h.bus, h.log)
	if err := host.Start(ctx); err != nil {
		return fmt.Errorf("start tab host: %w", err)
	}
	h.host = host

	orchestrator, err := capture.NewOrchestrator(host, h.automation, h.log)
	if err != nil {
		h.host.Close()
		return err
	}

	h.scheduler = NewCaptureScheduler(
		orchestrator, host, host,
		h.cfg.Capture.Interval, h.cfg.Capture.SteerInterval,
		h.log,
	)
	if err := h.scheduler.Start(); err != nil {
		h.host.Close()
		return err
	}

	h.log.Info().Msg("hub started")
	return nil
}

// Stop shuts the schedule, the browser and finally storage, draining pending
// writes.
func (h *Hub) Stop() {
	if h.scheduler != nil {
		h.scheduler.Stop()
	}
	if h.host != nil {
		if err := h.host.Close(); err != nil {
			h.log.Warn().Err(err).Msg("tab host close failed")
		}
	}
	if err := h.writer.Close(); err != nil {
		h.log.Warn().Err(err).Msg("state writer close failed")
	}
	h.log.Info().Msg("hub stopped")
}
