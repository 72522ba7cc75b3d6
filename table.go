package main

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/dynamodb"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

type TableArgs struct {
	name string
}

type OrdersTable struct {
	table *dynamodb.Table
}

// NewOrdersTable declares the orders table. Items are keyed by a string id and
// are otherwise schemaless. The table is deleted with the stack.
func NewOrdersTable(ctx *pulumi.Context, args TableArgs) (*OrdersTable, error) {
	tableArgs := &dynamodb.TableArgs{
		Attributes: dynamodb.TableAttributeArray{
			dynamodb.TableAttributeArgs{
				Name: pulumi.String("id"),
				Type: pulumi.String("S"),
			},
		},
		HashKey:                   pulumi.String("id"),
		BillingMode:               pulumi.String("PROVISIONED"),
		ReadCapacity:              pulumi.IntPtr(5),
		WriteCapacity:             pulumi.IntPtr(5),
		DeletionProtectionEnabled: pulumi.BoolPtr(false),
	}
	if args.name != "" {
		tableArgs.Name = pulumi.StringPtr(args.name)
	}

	table, err := dynamodb.NewTable(ctx, "orders-table", tableArgs,
		pulumi.RetainOnDelete(false),
		pulumi.Protect(false),
	)
	if err != nil {
		return nil, fmt.Errorf("Error creating table: %w", err)
	}

	ctx.Export("tableName", table.Name)

	return &OrdersTable{table: table}, nil
}
