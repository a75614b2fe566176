package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/admission"
	"main/internal/dispatch"
	"main/internal/model/enum"
	"main/internal/notify"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/venue"
	"main/internal/venue/brokerage"
	"main/internal/venue/chain"
	"main/internal/venue/spot"
	"main/internal/webhook"
	"main/pkg/exception"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Profiler != nil {
		stopProfiler, err := obs.StartProfiler("swaphook", cfg.Profiler.Server, cfg.Profiler.Env)
		if err != nil {
			log.Fatalf("start profiler: %v", err)
		}
		defer func() { _ = stopProfiler() }()
	}

	notifier, hub := buildNotifier(ctx, cfg)
	metrics := obs.NewMetrics(nil)
	metricsServer := obs.Serve(cfg.Server.MetricsAddr)
	defer shutdown(metricsServer)

	store, closeStore, err := buildStore(cfg.Admission)
	if err != nil {
		log.Fatalf("open signal ledger: %v", err)
	}
	defer closeStore()

	registry, err := buildRegistry(cfg.Venues)
	if err != nil {
		log.Fatalf("build venue registry: %v", err)
	}

	dispatcher := dispatch.NewDispatcher(dispatch.Option{
		Registry:             registry,
		Admission:            admission.NewQueue(store, cfg.Admission.Retention),
		Notifier:             notifier,
		Metrics:              metrics,
		Workers:              cfg.Dispatch.Workers,
		QueueCapacity:        cfg.Dispatch.QueueCapacity,
		RequestPolicy:        &cfg.Request,
		SettlementPolicy:     &cfg.Settlement,
		AssumeNotFoundFilled: cfg.Dispatch.AssumeNotFoundFilled,
		BalanceWindow:        cfg.Dispatch.BalanceWindow,
		GasSwapWindow:        cfg.Dispatch.GasSwapWindow,
		FeeRate:              cfg.Dispatch.FeeRate,
		ExcludedSymbols:      cfg.Dispatch.ExcludedSymbols,
	})
	dispatcher.Run(ctx)

	credentials := make(map[enum.Venue]webhook.Credentials, len(cfg.Venues))
	for v, venueCfg := range cfg.Venues {
		credentials[v] = venueCfg.Credentials
	}

	mux := http.NewServeMux()
	mux.Handle("/webhook", webhook.NewHandler(dispatcher, credentials, cfg.Dispatch.ExcludedSymbols))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if hub != nil {
		mux.Handle("/events", hub.Handler())
	}

	server := &http.Server{Addr: cfg.Server.WebhookAddr, Handler: mux}
	go func() {
		logs.Infof("webhook listening on %s", cfg.Server.WebhookAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Errorf("webhook server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logs.Info("shutting down")
	shutdown(server)
}

func buildNotifier(ctx context.Context, cfg ops.Loaded) (notify.Notifier, *notify.Hub) {
	notifiers := notify.Multi{notify.NewLogNotifier()}
	if cfg.Telegram != nil {
		notifiers = append(notifiers, notify.NewTelegram(nil, cfg.Telegram.Token, cfg.Telegram.ChatID))
	}

	var hub *notify.Hub
	if cfg.Server.EventsHub {
		hub = notify.NewHub()
		go hub.Run(ctx)
		notifiers = append(notifiers, hub)
	}
	return notifiers, hub
}

func buildStore(cfg ops.AdmissionSpec) (admission.Store, func(), error) {
	if cfg.Postgres == nil {
		return admission.NewMemoryStore(), func() {}, nil
	}
	store, err := admission.NewPostgresStore(admission.PostgresOption{
		Host:       cfg.Postgres.Host,
		Port:       cfg.Postgres.Port,
		User:       cfg.Postgres.User,
		Password:   cfg.Postgres.Password,
		Database:   cfg.Postgres.Database,
		SSLMode:    cfg.Postgres.SSLMode,
		ConnString: cfg.Postgres.ConnString,
	})
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			logs.Errorf("close signal ledger: %v", err)
		}
	}, nil
}

func buildRegistry(venues map[enum.Venue]ops.VenueConfig) (*venue.Registry, error) {
	registry := venue.NewRegistry()
	client := &http.Client{}

	for v, cfg := range venues {
		switch v {
		case enum.VenueSpot:
			registry.Register(v, spot.NewAdapter(client, spot.Option{
				BaseURL:   cfg.BaseURL,
				AccessID:  cfg.AccessID,
				SecretKey: cfg.SecretKey,
			}))
		case enum.VenueBrokerage:
			registry.Register(v, brokerage.NewAdapter(client, brokerage.Option{
				BaseURL:  cfg.BaseURL,
				Username: cfg.Username,
				Password: cfg.Password,
				DeviceID: cfg.DeviceID,
			}))
		case enum.VenueChain:
			opt, err := chainOption(cfg)
			if err != nil {
				return nil, err
			}
			registry.Register(v, chain.NewAdapter(client, opt))
		default:
			return nil, exception.ErrUnsupportedVenue
		}
	}
	return registry, nil
}

func chainOption(cfg ops.VenueConfig) (chain.Option, error) {
	opt := chain.Option{
		RPCURL:          cfg.RPCURL,
		RouterURL:       cfg.RouterURL,
		WalletAddress:   cfg.WalletAddress,
		SettlementAsset: cfg.SettlementAsset,
	}
	var err error
	if cfg.ReserveTarget != "" {
		if opt.ReserveTarget, err = decimal.NewFromString(cfg.ReserveTarget); err != nil {
			return chain.Option{}, err
		}
	}
	if cfg.MaxGasPriceWei != "" {
		if opt.MaxGasPriceWei, err = decimal.NewFromString(cfg.MaxGasPriceWei); err != nil {
			return chain.Option{}, err
		}
	}
	return opt, nil
}

func shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logs.Errorf("shutdown %s: %v", server.Addr, err)
	}
}
