package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appAccount "github.com/vendstack/vendingmachine/internal/application/account"
	appBalance "github.com/vendstack/vendingmachine/internal/application/balance"
	appCatalog "github.com/vendstack/vendingmachine/internal/application/catalog"
	appOrder "github.com/vendstack/vendingmachine/internal/application/order"
	"github.com/vendstack/vendingmachine/internal/config"
	domainCatalog "github.com/vendstack/vendingmachine/internal/domain/catalog"
	"github.com/vendstack/vendingmachine/internal/domain/storage"
	"github.com/vendstack/vendingmachine/internal/infrastructure/id"
	"github.com/vendstack/vendingmachine/internal/infrastructure/memory"
	obsinfra "github.com/vendstack/vendingmachine/internal/infrastructure/observability"
	"github.com/vendstack/vendingmachine/internal/infrastructure/observability/oteltrace"
	"github.com/vendstack/vendingmachine/internal/infrastructure/observability/prometrics"
	"github.com/vendstack/vendingmachine/internal/infrastructure/observability/zaplogger"
	"github.com/vendstack/vendingmachine/internal/infrastructure/stoolapdb"
	"github.com/vendstack/vendingmachine/internal/observability"
	"github.com/vendstack/vendingmachine/internal/pkg/logging"
	httppresentation "github.com/vendstack/vendingmachine/internal/presentation/http"
)

func main() {
	cfg := config.Load()

	baseLogger := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	registry := prometrics.New("vending", "core")
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(
			string(observability.MUsecaseRequests),
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MHTTPRequests: registry.Counter(
			string(observability.MHTTPRequests),
			"Total number of HTTP requests.",
			"method", "route", "status",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.",
			prometheus.DefBuckets,
			"use_case",
		),
		observability.MHTTPRequestDuration: registry.Histogram(
			string(observability.MHTTPRequestDuration),
			"Duration of HTTP requests in seconds.",
			prometheus.DefBuckets,
			"method", "route", "status",
		),
	}

	tel := obsinfra.New(
		oteltrace.New(cfg.ServiceName),
		zaplogger.New(baseLogger),
		counters,
		histograms,
	)
	systemLogger := tel.Logger().With(observability.F("component", "main"))

	store, cleanup, err := openStore(cfg)
	if err != nil {
		systemLogger.Error("store_open_failed", observability.F("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()
	systemLogger.Info("store_ready", observability.F("backend", cfg.StoreBackend))

	idGenerator := id.NewUUIDGenerator()

	if cfg.SeedDemoCatalog {
		if err := seedDemoCatalog(context.Background(), store, idGenerator); err != nil {
			systemLogger.Error("seed_failed", observability.F("error", err.Error()))
			os.Exit(1)
		}
		systemLogger.Info("demo_catalog_seeded")
	}

	accountService := appAccount.NewService(store, idGenerator, tel)
	balanceOperator := appBalance.NewUseCase(store, tel)
	orderOperator := appOrder.NewUseCase(store, balanceOperator, tel)
	catalogQuery := appCatalog.NewQuery(store)

	handler := httppresentation.NewHandler(accountService, balanceOperator, orderOperator, catalogQuery, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		systemLogger.Info("http_server_start", observability.F("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error", observability.F("error", err.Error()))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		systemLogger.Info("http_server_stopped")
	}
}

func openStore(cfg config.Config) (storage.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendStoolap:
		store, err := stoolapdb.Open(cfg.StoolapDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return memory.NewStore(), func() {}, nil
	}
}

// seedDemoCatalog fills the first grid row so a fresh instance has something
// to sell. Real catalogs come from admin tooling.
func seedDemoCatalog(ctx context.Context, store storage.Store, idGen *id.UUIDGenerator) error {
	demo := []struct {
		name        string
		description string
		price       string
		quantity    int
	}{
		{"Sparkling Water", "500ml bottle", "1.50", 10},
		{"Salted Crisps", "45g bag", "2.00", 8},
		{"Chocolate Bar", "milk chocolate", "2.50", 12},
		{"Chewing Gum", "", "0.80", 20},
		{"Energy Drink", "250ml can", "3.10", 6},
	}

	for i, d := range demo {
		price, err := decimal.NewFromString(d.price)
		if err != nil {
			return err
		}
		product, err := domainCatalog.NewProduct(idGen.NewID(), d.name, d.description, price)
		if err != nil {
			return err
		}
		if err := store.InsertProduct(ctx, product); err != nil {
			return err
		}
		slot, err := domainCatalog.NewSlot(idGen.NewID(), product, d.quantity, 1, i+1)
		if err != nil {
			return err
		}
		if err := store.InsertSlot(ctx, slot); err != nil {
			return err
		}
	}
	return nil
}
