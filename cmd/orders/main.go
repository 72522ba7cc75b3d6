package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"order-up/internal/orders"
)

func main() {
	cfg, err := orders.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		slog.Error("unable to load aws config", slog.Any("error", err))
		os.Exit(1)
	}

	store := orders.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.TableName)
	lambda.Start(orders.NewHandler(store).Handle)
}
