package main

import (
	"fmt"
	"strings"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/lambda"
	"github.com/pulumi/pulumi-command/sdk/go/command/local"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// tableActions is the complete data plane access granted to the orders function.
var tableActions = []string{
	"dynamodb:DeleteItem",
	"dynamodb:GetItem",
	"dynamodb:PutItem",
	"dynamodb:Scan",
	"dynamodb:UpdateItem",
}

type LambdaHandler struct {
	function *lambda.Function
	role     *iam.Role
}

type LambdaHandlerArgs struct {
	table *OrdersTable
}

func NewLambdaHandler(ctx *pulumi.Context, args LambdaHandlerArgs) (*LambdaHandler, error) {
	lh := &LambdaHandler{}

	_, err := local.Run(ctx, &local.RunArgs{
		Dir: pulumi.StringRef("."),
		Command: strings.Join([]string{
			"rm -rf asset && mkdir asset",
			"GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -mod=readonly -tags lambda.norpc -o ./asset/bootstrap ./cmd/orders",
			"chmod +x ./asset/bootstrap",
		}, " && "),
		AssetPaths: []string{"asset/bootstrap"},
	})
	if err != nil {
		return nil, fmt.Errorf("Error running local command: %w", err)
	}

	region, err := aws.GetRegion(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Error looking up region: %w", err)
	}
	identity, err := aws.GetCallerIdentity(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Error looking up account: %w", err)
	}

	tablePolicy, err := iam.GetPolicyDocument(ctx, &iam.GetPolicyDocumentArgs{
		Statements: []iam.GetPolicyDocumentStatement{
			{
				Effect:  pulumi.StringRef("Allow"),
				Actions: tableActions,
				Resources: []string{
					fmt.Sprintf("arn:aws:dynamodb:%s:%s:table/*", region.Name, identity.AccountId),
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating table policy document: %w", err)
	}
	microservicePolicy, err := iam.NewPolicy(ctx, "lambda-microservice-policy", &iam.PolicyArgs{
		Name:   pulumi.String("AWSLambdaMicroserviceExecutionRole"),
		Policy: pulumi.String(tablePolicy.Json),
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating microservice policy: %w", err)
	}

	assumeRolePolicy, err := iam.GetPolicyDocument(ctx, &iam.GetPolicyDocumentArgs{
		Statements: []iam.GetPolicyDocumentStatement{
			{
				Actions: []string{"sts:AssumeRole"},
				Principals: []iam.GetPolicyDocumentStatementPrincipal{
					{Type: "Service", Identifiers: []string{"lambda.amazonaws.com"}},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating AssumeRolePolicy: %w", err)
	}
	lh.role, err = iam.NewRole(ctx, "lambda-execution-role", &iam.RoleArgs{
		AssumeRolePolicy: pulumi.String(assumeRolePolicy.Json),
		ManagedPolicyArns: pulumi.StringArray{
			pulumi.String(string(iam.ManagedPolicyAWSLambdaBasicExecutionRole)),
			microservicePolicy.Arn,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating execution role: %w", err)
	}

	code := pulumi.NewAssetArchive(map[string]interface{}{"bootstrap": pulumi.NewFileAsset("./asset/bootstrap")})
	lh.function, err = lambda.NewFunction(ctx, "orders-function", &lambda.FunctionArgs{
		Architectures: pulumi.ToStringArray([]string{"arm64"}),
		Role:          lh.role.Arn,
		Code:          code,
		Handler:       pulumi.String("bootstrap"),
		Runtime:       pulumi.String("provided.al2023"),
		Environment: &lambda.FunctionEnvironmentArgs{
			Variables: pulumi.StringMap{
				"TABLE_NAME": args.table.table.Name,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating lambda function: %w", err)
	}

	return lh, nil
}
