package main

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/cloudwatch"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ecs"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/lb"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const (
	containerName = "web"
	containerPort = 3000
	listenerPort  = 80
)

type EcsServiceArgs struct {
	image           *EcrImage
	network         *Network
	api             *Api
	cpuArchitecture string
}

type EcsService struct {
	cluster      *ecs.Cluster
	taskdef      *ecs.TaskDefinition
	loadBalancer *lb.LoadBalancer
	service      *ecs.Service
	port         int
	sg           *ec2.SecurityGroup
}

// NewEcsService declares the frontend: a fargate service running the web image
// in the private subnets behind a public application load balancer. The api
// endpoint reaches the container as API_URL.
func NewEcsService(ctx *pulumi.Context, args EcsServiceArgs) (*EcsService, error) {
	ecsService := &EcsService{
		port: containerPort,
	}
	var err error

	ecsService.cluster, err = ecs.NewCluster(ctx, "cluster", &ecs.ClusterArgs{
		Settings: ecs.ClusterSettingArray{
			ecs.ClusterSettingArgs{
				Name:  pulumi.String("containerInsights"),
				Value: pulumi.String("enabled"),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating cluster: %w", err)
	}

	region, err := aws.GetRegion(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Error looking up region: %w", err)
	}
	logGroup, err := cloudwatch.NewLogGroup(ctx, "web-log-group", &cloudwatch.LogGroupArgs{
		RetentionInDays: pulumi.IntPtr(1),
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating log group: %w", err)
	}
	containerDef := pulumi.JSONMarshal([]interface{}{
		map[string]interface{}{
			"name":      containerName,
			"image":     args.image.image.RepoDigest,
			"essential": true,
			"portMappings": []map[string]interface{}{
				{
					"containerPort": containerPort,
					"protocol":      "tcp",
				},
			},
			"environment": []map[string]interface{}{
				{
					"name":  "API_URL",
					"value": args.api.Endpoint(),
				},
			},
			"logConfiguration": map[string]interface{}{
				"logDriver": "awslogs",
				"options": map[string]interface{}{
					"awslogs-group":         logGroup.Name,
					"awslogs-region":        region.Name,
					"awslogs-stream-prefix": containerName,
				},
			},
		},
	})

	execAssumeRolePolicy, err := iam.GetPolicyDocument(ctx, &iam.GetPolicyDocumentArgs{
		Statements: []iam.GetPolicyDocumentStatement{
			{
				Actions: []string{"sts:AssumeRole"},
				Principals: []iam.GetPolicyDocumentStatementPrincipal{
					{Type: "Service", Identifiers: []string{"ecs-tasks.amazonaws.com"}},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating execAssumeRolePolicy: %w", err)
	}
	executionRole, err := iam.NewRole(ctx, "execution-role", &iam.RoleArgs{
		AssumeRolePolicy:  pulumi.String(execAssumeRolePolicy.Json),
		ManagedPolicyArns: pulumi.ToStringArray([]string{string(iam.ManagedPolicyAmazonECSTaskExecutionRolePolicy)}),
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating execution role: %w", err)
	}
	// The web server only calls the public api, so the task role carries no policies.
	taskRole, err := iam.NewRole(ctx, "task-role", &iam.RoleArgs{
		AssumeRolePolicy: pulumi.String(execAssumeRolePolicy.Json),
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating task role: %w", err)
	}
	ecsService.taskdef, err = ecs.NewTaskDefinition(ctx, "taskdef", &ecs.TaskDefinitionArgs{
		ContainerDefinitions:    containerDef,
		Family:                  pulumi.String("order-up-web"),
		Cpu:                     pulumi.String("256"),
		ExecutionRoleArn:        executionRole.Arn,
		Memory:                  pulumi.String("512"),
		TaskRoleArn:             taskRole.Arn,
		RequiresCompatibilities: pulumi.ToStringArray([]string{"FARGATE"}),
		NetworkMode:             pulumi.String("awsvpc"),
		RuntimePlatform: ecs.TaskDefinitionRuntimePlatformArgs{
			CpuArchitecture:       pulumi.String(args.cpuArchitecture),
			OperatingSystemFamily: pulumi.String("LINUX"),
		},
	}, pulumi.DependsOn([]pulumi.Resource{args.image.image}))
	if err != nil {
		return nil, fmt.Errorf("Error creating taskdef: %w", err)
	}

	lbSg, err := ec2.NewSecurityGroup(ctx, "lb-sg", &ec2.SecurityGroupArgs{
		Egress:              egressAll(),
		VpcId:               args.network.vpc.VpcId,
		Ingress:             ingressCidr(listenerPort, "0.0.0.0/0"),
		RevokeRulesOnDelete: pulumi.BoolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating load balancer security group: %w", err)
	}
	ecsService.sg, err = ec2.NewSecurityGroup(ctx, "service-sg", &ec2.SecurityGroupArgs{
		Egress:              egressAll(),
		VpcId:               args.network.vpc.VpcId,
		Ingress:             ingress(containerPort, lbSg),
		RevokeRulesOnDelete: pulumi.BoolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating security group: %w", err)
	}

	ecsService.loadBalancer, err = lb.NewLoadBalancer(ctx, "web-lb", &lb.LoadBalancerArgs{
		Internal:         pulumi.BoolPtr(false),
		LoadBalancerType: pulumi.String("application"),
		SecurityGroups:   pulumi.StringArray{lbSg.ID()},
		Subnets:          args.network.vpc.PublicSubnetIds,
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating load balancer: %w", err)
	}
	targetGroup, err := lb.NewTargetGroup(ctx, "web-tg", &lb.TargetGroupArgs{
		Port:       pulumi.IntPtr(containerPort),
		Protocol:   pulumi.String("HTTP"),
		TargetType: pulumi.String("ip"),
		VpcId:      args.network.vpc.VpcId,
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating target group: %w", err)
	}
	listener, err := lb.NewListener(ctx, "web-listener", &lb.ListenerArgs{
		LoadBalancerArn: ecsService.loadBalancer.Arn,
		Port:            pulumi.IntPtr(listenerPort),
		Protocol:        pulumi.String("HTTP"),
		DefaultActions: lb.ListenerDefaultActionArray{
			lb.ListenerDefaultActionArgs{
				Type:           pulumi.String("forward"),
				TargetGroupArn: targetGroup.Arn,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating listener: %w", err)
	}

	ecsService.service, err = ecs.NewService(ctx, "service", &ecs.ServiceArgs{
		Cluster:      ecsService.cluster.Arn,
		DesiredCount: pulumi.IntPtr(1),
		LaunchType:   pulumi.String("FARGATE"),
		LoadBalancers: ecs.ServiceLoadBalancerArray{
			ecs.ServiceLoadBalancerArgs{
				ContainerName:  pulumi.String(containerName),
				ContainerPort:  pulumi.Int(containerPort),
				TargetGroupArn: targetGroup.Arn,
			},
		},
		NetworkConfiguration: ecs.ServiceNetworkConfigurationArgs{
			AssignPublicIp: pulumi.BoolPtr(false),
			SecurityGroups: pulumi.StringArray{ecsService.sg.ID()},
			Subnets:        args.network.vpc.PrivateSubnetIds,
		},
		TaskDefinition: ecsService.taskdef.Arn,
	}, pulumi.DependsOn([]pulumi.Resource{listener}))
	if err != nil {
		return nil, fmt.Errorf("Error creating service: %w", err)
	}

	ctx.Export("frontendUrl", pulumi.Sprintf("http://%s", ecsService.loadBalancer.DnsName))

	return ecsService, nil
}
