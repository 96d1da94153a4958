package main

import (
	"context"
	"errors"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FikFikk/luminastore/internal/backend"
	"github.com/FikFikk/luminastore/internal/cart"
	"github.com/FikFikk/luminastore/internal/checkout"
	"github.com/FikFikk/luminastore/internal/config"
	"github.com/FikFikk/luminastore/internal/events"
	h "github.com/FikFikk/luminastore/internal/http"
	"github.com/FikFikk/luminastore/internal/payment"
	"github.com/FikFikk/luminastore/internal/shipping"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("failed to connect to redis at %s: %v", cfg.RedisAddr, err)
	}

	backendClient := backend.New(cfg.BackendBaseURL, cfg.BackendAPIKey, cfg.RequestTimeout)
	cartService := cart.NewService(backendClient)

	var quotes checkout.Quoter
	var destinations destinationSearcher
	if err := cfg.RequireShipping(); err != nil {
		quotes = unavailableShipping{err: err}
		destinations = unavailableShipping{err: err}
	} else {
		rateClient := shipping.NewHTTPRateClient(cfg.ShippingBaseURL, cfg.ShippingAPIKey, cfg.RequestTimeout)
		quoteCache := shipping.NewRedisQuoteCache(redisClient, cfg.QuoteTTL)
		quoteService := shipping.NewQuoteService(rateClient, quoteCache)
		quotes = quoteService
		destinations = quoteService
	}

	var methods checkout.MethodCatalog
	if err := cfg.RequirePayment(); err != nil {
		methods = unavailablePayment{err: err}
	} else {
		methodClient := payment.NewHTTPMethodClient(cfg.PaymentBaseURL, cfg.DuitkuMerchantCode, cfg.DuitkuAPIKey, cfg.RequestTimeout)
		methodCache := payment.NewRedisMethodCache(redisClient, cfg.MethodTTL)
		methods = payment.NewService(methodClient, methodCache, cfg.AmountBucket)
	}

	publisher := events.NewPublisher(cfg.KafkaBrokers)
	defer publisher.Close()

	selectionStore := checkout.NewRedisSelectionStore(redisClient, 0)
	orchestrator := checkout.NewOrchestrator(
		cartService,
		quotes,
		methods,
		backendClient,
		backendClient,
		selectionStore,
		publisher,
		checkout.Options{
			Debounce:        cfg.QuoteDebounce,
			RetryBaseWait:   cfg.RetryBaseWait,
			MaxQuoteRetries: cfg.MaxQuoteRetry,
			NotesLimit:      cfg.NotesLimit,
			QuoteTimeout:    cfg.RequestTimeout,
		},
	)
	defer orchestrator.Close()

	router := h.NewRouter(h.Handlers{
		Auth:     h.NewAuthHandler(backendClient, 0),
		Session:  h.NewSessionHandler(),
		Products: h.NewProductHandler(backendClient),
		Cart:     h.NewCartHandler(cartService),
		Address:  h.NewAddressHandler(backendClient),
		Orders:   h.NewOrdersHandler(backendClient),
		Shipping: h.NewShippingHandler(destinations),
		Checkout: h.NewCheckoutHandler(orchestrator),
	}, cfg.RequestTimeout)

	srv := &stdhttp.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("storefront gateway starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
