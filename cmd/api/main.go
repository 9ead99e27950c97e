package main

import (
	"context"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-grocery-orderflow/internal/aws"
	"github.com/imrishuroy/go-grocery-orderflow/internal/carts"
	"github.com/imrishuroy/go-grocery-orderflow/internal/checkout"
	"github.com/imrishuroy/go-grocery-orderflow/internal/config"
	"github.com/imrishuroy/go-grocery-orderflow/internal/handlers"
	"github.com/imrishuroy/go-grocery-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-grocery-orderflow/internal/inventory"
	"github.com/imrishuroy/go-grocery-orderflow/internal/logging"
	"github.com/imrishuroy/go-grocery-orderflow/internal/orders"
	"github.com/imrishuroy/go-grocery-orderflow/internal/pricing"
	"github.com/imrishuroy/go-grocery-orderflow/internal/promotions"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterOrdersRoutes(r, cfg)

	return r
}

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

	products := inventory.NewStore(clients.DynamoDB, cfg.Tables.Products)
	engine := checkout.NewEngine(checkout.Deps{
		DB:          clients.DynamoDB,
		Orders:      orders.NewStore(clients.DynamoDB, cfg.Tables.Orders, cfg.Tables.OrderHistory),
		Inventory:   products,
		Carts:       carts.NewStore(clients.DynamoDB, cfg.Tables.Carts),
		Promotions:  promotions.NewStore(clients.DynamoDB, cfg.Tables.Promotions),
		Idempotency: idempotency.NewStore(clients.DynamoDB, cfg.Tables.Idempotency, cfg.IdempotencyTTL),
		Calculator:  pricing.NewCalculator(cfg.Pricing),
		Events:      aws.NewPublisher(clients.SQS, cfg.QueueURL),
		Metrics:     aws.NewMetrics(clients.CloudWatch, cfg.MetricsNamespace),
		Logger:      logger.Named("checkout"),
	}, checkout.WithTxTimeout(cfg.TxTimeout))

	r := setupRouter(handlers.HandlerConfig{
		Orders: engine,
		Stock:  products,
		Logger: logger.Named("http"),
	})

	// if RUN_LOCAL is set, run a local HTTP server for development.
	if cfg.RunLocal {
		logger.Info("running local server", zap.String("addr", cfg.ListenAddr))
		if err := r.Run(cfg.ListenAddr); err != nil {
			logger.Fatal("local server stopped", zap.Error(err))
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
