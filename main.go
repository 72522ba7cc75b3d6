package main

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

func main() {
	pulumi.Run(createInfra)
}

// createInfra declares the whole stack. Units are created in dependency order:
// storage, network, compute, routing, then the frontend.
func createInfra(ctx *pulumi.Context) error {
	cfg := loadConfig(ctx)

	table, err := NewOrdersTable(ctx, TableArgs{
		name: cfg.TableName,
	})
	if err != nil {
		return err
	}

	network, err := NewNetwork(ctx, NetworkArgs{
		maxAzs: cfg.MaxAzs,
	})
	if err != nil {
		return err
	}

	handler, err := NewLambdaHandler(ctx, LambdaHandlerArgs{
		table: table,
	})
	if err != nil {
		return err
	}

	api, err := NewApi(ctx, ApiArgs{
		handler: handler,
	})
	if err != nil {
		return err
	}

	build, err := NewEcrDockerBuild(ctx, EcrImageArgs{
		cpuArchitecture: cfg.CpuArchitecture,
	})
	if err != nil {
		return err
	}

	_, err = NewEcsService(ctx, EcsServiceArgs{
		image:           build,
		network:         network,
		api:             api,
		cpuArchitecture: cfg.CpuArchitecture,
	})
	if err != nil {
		return err
	}

	ctx.Log.Info("order-up stack declared", nil)

	return nil
}
