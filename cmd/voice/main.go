package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/DannyahIA/nexus-sub002/internal/adapters/http"
	"github.com/DannyahIA/nexus-sub002/internal/adapters/rtc"
	signaladapter "github.com/DannyahIA/nexus-sub002/internal/adapters/signal"
	"github.com/DannyahIA/nexus-sub002/internal/app"
	"github.com/DannyahIA/nexus-sub002/internal/config"
	"github.com/DannyahIA/nexus-sub002/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		// invalid/missing TURN configuration is fatal: no session may be
		// created against a channel that cannot relay
		log.Fatal().Err(err).Msg("configuration invalid")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	provider := rtc.NewIceProvider(cfg.ICE)
	factory, err := rtc.NewFactory(provider)
	if err != nil {
		log.Fatal().Err(err).Msg("webrtc factory init failed")
	}

	client, err := signaladapter.Dial(ctx, cfg.SignalURL)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.SignalURL).Msg("signaling dial failed")
	}

	localID := domain.UserID(uuid.NewString())
	bus := app.NewBus()
	engine := app.NewEngine(localID, factory, client, bus, cfg.Reconnect)
	coordinator := app.NewTrackCoordinator(engine, client)
	monitor := app.NewHealthMonitor(engine, bus, cfg.Health.StaleAfter)

	// the engine only attaches tracks it is handed; capture lives elsewhere
	audio, err := rtc.NewAudioTrack("audio", "nexus-voice")
	if err != nil {
		log.Fatal().Err(err).Msg("audio track init failed")
	}
	engine.SetLocalTrack(audio)

	// recheck reactively when any peer's connection state moves
	unsubscribe := bus.Subscribe(app.TopicConnectionStateChange, func(any) {
		results := monitor.PerformHealthCheck()
		if err := monitor.PerformAutomaticRecovery(ctx, results); err != nil {
			log.Warn().Err(err).Msg("reactive recovery aborted")
		}
	})
	defer unsubscribe()

	client.Run(ctx, engine)
	go monitor.Run(ctx, cfg.Health.Interval)

	r := router.SetupRouter(cfg, engine, coordinator, monitor)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		log.Info().Str("addr", addr).Str("user_id", string(localID)).Msg("voice mesh client started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	engine.Close()
	client.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("exited gracefully")
}
