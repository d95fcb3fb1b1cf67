package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/kicklover/go-sneaker-orders/internal/config"
	kafkax "github.com/kicklover/go-sneaker-orders/internal/kafka"
	"github.com/kicklover/go-sneaker-orders/internal/orders"
	"github.com/kicklover/go-sneaker-orders/internal/redisx"
	"github.com/kicklover/go-sneaker-orders/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &worker.StatusCache{
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-worker",
	}

	group := getenv("WORKER_GROUP", "status-cache")
	workers := mustAtoi(os.Getenv("WORKER_CONCURRENCY"), 4)

	topics := []string{
		orders.TopicOrderPlaced,
		orders.TopicStatusChanged,
		orders.TopicOrderCancelled,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range topics {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, topic, workers)
		log.Printf("consumer started: group=%s topic=%s workers=%d", group, topic, workers)
		g.Go(func() error {
			return cons.Start(gctx, svc.HandleEvent)
		})
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Println("shutting down consumers...")
		cancel()
	}()

	if err := g.Wait(); err != nil {
		log.Printf("consumer exit: %v", err)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
