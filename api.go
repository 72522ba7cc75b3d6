package main

import (
	"fmt"

	apigwv2 "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/apigatewayv2"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/lambda"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

type orderRoute struct {
	name string
	key  string
}

// orderRoutes are the only routes on the api. Every one of them goes to the
// orders function unchanged.
var orderRoutes = []orderRoute{
	{name: "list-orders", key: "GET /orders"},
	{name: "put-order", key: "PUT /orders"},
	{name: "get-order", key: "GET /orders/{id}"},
	{name: "delete-order", key: "DELETE /orders/{id}"},
}

type ApiArgs struct {
	handler *LambdaHandler
}

type Api struct {
	api          *apigwv2.Api
	defaultStage *apigwv2.Stage
	integration  *apigwv2.Integration
	routes       []*apigwv2.Route
}

func NewApi(ctx *pulumi.Context, args ApiArgs) (*Api, error) {
	api := &Api{}
	var err error
	api.api, err = apigwv2.NewApi(ctx, "orders-api", &apigwv2.ApiArgs{
		Name:         pulumi.String("Orders Service"),
		Description:  pulumi.String("This service serves orders."),
		ProtocolType: pulumi.String("HTTP"),
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating api: %w", err)
	}

	api.defaultStage, err = apigwv2.NewStage(ctx, "default-stage", &apigwv2.StageArgs{
		ApiId:      api.api.ID(),
		Name:       pulumi.String("$default"),
		AutoDeploy: pulumi.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating stage: %w", err)
	}

	if err := api.registerLambda(ctx, args.handler.function); err != nil {
		return nil, err
	}

	ctx.Export("apiUrl", api.api.ApiEndpoint)

	return api, nil
}

// Endpoint is the externally reachable url of the api.
func (a *Api) Endpoint() pulumi.StringOutput {
	return a.api.ApiEndpoint
}

func (a *Api) registerLambda(ctx *pulumi.Context, handler *lambda.Function) error {
	var err error
	a.integration, err = apigwv2.NewIntegration(ctx, "orders-integration", &apigwv2.IntegrationArgs{
		ApiId:                a.api.ID(),
		IntegrationMethod:    pulumi.String("POST"),
		IntegrationType:      pulumi.String("AWS_PROXY"),
		IntegrationUri:       handler.Arn,
		PayloadFormatVersion: pulumi.String("2.0"),
	})
	if err != nil {
		return fmt.Errorf("Error creating integration: %w", err)
	}

	for _, r := range orderRoutes {
		route, err := apigwv2.NewRoute(ctx, r.name, &apigwv2.RouteArgs{
			ApiId:    a.api.ID(),
			RouteKey: pulumi.String(r.key),
			Target:   pulumi.Sprintf("integrations/%s", a.integration.ID()),
		})
		if err != nil {
			return fmt.Errorf("Error creating route %q: %w", r.key, err)
		}
		a.routes = append(a.routes, route)
	}

	_, err = lambda.NewPermission(ctx, "apigw-lambda-permission", &lambda.PermissionArgs{
		Action:    pulumi.String("lambda:InvokeFunction"),
		SourceArn: pulumi.Sprintf("%s/*/*", a.api.ExecutionArn),
		Function:  handler.Name,
		Principal: pulumi.String("apigateway.amazonaws.com"),
	})
	if err != nil {
		return fmt.Errorf("Error creating lambda permission: %w", err)
	}

	return nil
}
