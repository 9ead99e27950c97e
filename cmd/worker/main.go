package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-grocery-orderflow/internal/aws"
	"github.com/imrishuroy/go-grocery-orderflow/internal/carts"
	"github.com/imrishuroy/go-grocery-orderflow/internal/checkout"
	"github.com/imrishuroy/go-grocery-orderflow/internal/config"
	"github.com/imrishuroy/go-grocery-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-grocery-orderflow/internal/inventory"
	"github.com/imrishuroy/go-grocery-orderflow/internal/logging"
	"github.com/imrishuroy/go-grocery-orderflow/internal/orders"
	"github.com/imrishuroy/go-grocery-orderflow/internal/pricing"
	"github.com/imrishuroy/go-grocery-orderflow/internal/promotions"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		logger.Fatal("init aws clients", zap.Error(err))
	}

	engine := checkout.NewEngine(checkout.Deps{
		DB:         clients.DynamoDB,
		Orders:     orders.NewStore(clients.DynamoDB, cfg.Tables.Orders, cfg.Tables.OrderHistory),
		Inventory:  inventory.NewStore(clients.DynamoDB, cfg.Tables.Products),
		Carts:      carts.NewStore(clients.DynamoDB, cfg.Tables.Carts),
		Promotions: promotions.NewStore(clients.DynamoDB, cfg.Tables.Promotions),
		Calculator: pricing.NewCalculator(cfg.Pricing),
		Events:     aws.NewPublisher(clients.SQS, cfg.QueueURL),
		Metrics:    aws.NewMetrics(clients.CloudWatch, cfg.MetricsNamespace),
		Logger:     logger.Named("checkout"),
	}, checkout.WithTxTimeout(cfg.TxTimeout))

	dedupe := idempotency.NewStore(clients.DynamoDB, cfg.Tables.Idempotency, cfg.IdempotencyTTL)
	processor := NewProcessor(engine, dedupe, logger.Named("worker"))

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			raw, _ := json.Marshal(orders.OrderEvent{Type: orders.EventPlaced, OrderID: os.Getenv("LOCAL_ORDER_ID")})
			body = string(raw)
		}
		event := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local-1", Body: body}}}
		resp, err := processor.Handle(context.Background(), event)
		if err != nil || len(resp.BatchItemFailures) > 0 {
			logger.Fatal("local handler failed", zap.Error(err), zap.Int("failures", len(resp.BatchItemFailures)))
		}
		return
	}

	lambda.Start(processor.Handle)
}
