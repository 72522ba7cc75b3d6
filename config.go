package main

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"
)

type StackConfig struct {
	// TableName overrides the engine generated table name when set.
	TableName       string
	MaxAzs          int
	CpuArchitecture string
}

func loadConfig(ctx *pulumi.Context) StackConfig {
	cfg := config.New(ctx, "")
	sc := StackConfig{
		TableName:       cfg.Get("tableName"),
		MaxAzs:          cfg.GetInt("maxAzs"),
		CpuArchitecture: cfg.Get("cpuArchitecture"),
	}
	if sc.MaxAzs == 0 {
		sc.MaxAzs = 2
	}
	if sc.CpuArchitecture == "" {
		sc.CpuArchitecture = "ARM64"
	}
	return sc
}
