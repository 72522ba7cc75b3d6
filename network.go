package main

import (
	"fmt"

	ec2_classic "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi-awsx/sdk/v2/go/awsx/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

type NetworkArgs struct {
	maxAzs int
}

type Network struct {
	vpc *ec2.Vpc
}

func NewNetwork(ctx *pulumi.Context, args NetworkArgs) (*Network, error) {
	var err error
	network := &Network{}

	azs := args.maxAzs
	as := ec2.SubnetAllocationStrategyAuto
	network.vpc, err = ec2.NewVpc(ctx, "vpc", &ec2.VpcArgs{
		NumberOfAvailabilityZones: &azs,
		NatGateways:               &ec2.NatGatewayConfigurationArgs{Strategy: ec2.NatGatewayStrategyOnePerAz},
		SubnetStrategy:            &as,
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating vpc: %w", err)
	}

	return network, nil
}

func egressAll() ec2_classic.SecurityGroupEgressArray {
	return ec2_classic.SecurityGroupEgressArray{
		ec2_classic.SecurityGroupEgressArgs{
			CidrBlocks:  pulumi.ToStringArray([]string{"0.0.0.0/0"}),
			Description: pulumi.String("Egress all"),
			Protocol:    pulumi.String("-1"),
			FromPort:    pulumi.Int(0),
			ToPort:      pulumi.Int(0),
		},
	}
}

// ingress allows tcp on port from the given security groups.
func ingress(port int, sg ...*ec2_classic.SecurityGroup) ec2_classic.SecurityGroupIngressArray {
	sgs := pulumi.StringArray{}
	for i := range sg {
		sgs = append(sgs, sg[i].ID())
	}
	return ec2_classic.SecurityGroupIngressArray{
		ec2_classic.SecurityGroupIngressArgs{
			FromPort:       pulumi.Int(port),
			ToPort:         pulumi.Int(port),
			Protocol:       pulumi.String("tcp"),
			SecurityGroups: sgs,
		},
	}
}

func ingressCidr(port int, cidr string) ec2_classic.SecurityGroupIngressArray {
	return ec2_classic.SecurityGroupIngressArray{
		ec2_classic.SecurityGroupIngressArgs{
			FromPort:   pulumi.Int(port),
			ToPort:     pulumi.Int(port),
			Protocol:   pulumi.String("tcp"),
			CidrBlocks: pulumi.ToStringArray([]string{cidr}),
		},
	}
}
