package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kicklover/go-sneaker-orders/internal/catalog"
	"github.com/kicklover/go-sneaker-orders/internal/config"
	"github.com/kicklover/go-sneaker-orders/internal/httpx"
	kafkax "github.com/kicklover/go-sneaker-orders/internal/kafka"
	"github.com/kicklover/go-sneaker-orders/internal/orders"
	"github.com/kicklover/go-sneaker-orders/internal/postgres"
	"github.com/kicklover/go-sneaker-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PGMaxConns)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per lifecycle topic
	pPlaced := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024)
	pPlaced.Start(ctx)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStatusChanged, 1024)
	pStatus.Start(ctx)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024)
	pCancelled.Start(ctx)

	// Stores & engine
	catalogStore := &catalog.Repo{DB: db}
	orderStore := &orders.Repo{DB: db}
	engine := orders.NewEngine(catalogStore, orderStore)

	// Router & handlers
	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Engine:            engine,
		Redis:             rdb,
		PlacedProducer:    pPlaced,
		StatusProducer:    pStatus,
		CancelledProducer: pCancelled,
		Service:           cfg.ServiceName,
	}
	oh.Register(router)
	ch := &httpx.CatalogHandler{Store: catalogStore}
	ch.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	pPlaced.Close()
	pStatus.Close()
	pCancelled.Close()
	pPlaced.WaitClosed()
	pStatus.WaitClosed()
	pCancelled.WaitClosed()
}
