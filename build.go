package main

import (
	"fmt"
	"strings"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ecr"
	"github.com/pulumi/pulumi-docker/sdk/v4/go/docker"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// webserverSources are the directories baked into the frontend image.
var webserverSources = []string{"cmd/webserver", "internal/webui", "webserver"}

type EcrImageArgs struct {
	cpuArchitecture string
}

type EcrImage struct {
	image *docker.Image
	tag   string
}

func NewEcrDockerBuild(ctx *pulumi.Context, args EcrImageArgs) (*EcrImage, error) {
	ecrImage := &EcrImage{}

	digest, err := hashSources(webserverSources...)
	if err != nil {
		return nil, fmt.Errorf("Error hashing webserver sources: %w", err)
	}
	ecrImage.tag = digest[:12]

	repo, err := ecr.NewRepository(ctx, "registry", &ecr.RepositoryArgs{
		ForceDelete: pulumi.BoolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating repo: %w", err)
	}
	authToken := ecr.GetAuthorizationTokenOutput(ctx, ecr.GetAuthorizationTokenOutputArgs{
		RegistryId: repo.RegistryId,
	})
	ecrImage.image, err = docker.NewImage(ctx, "frontend-image", &docker.ImageArgs{
		Registry: docker.RegistryArgs{
			Server:   repo.RepositoryUrl,
			Username: authToken.UserName(),
			Password: pulumi.ToSecret(authToken.ApplyT(func(authToken ecr.GetAuthorizationTokenResult) (*string, error) {
				return &authToken.Password, nil
			})).(pulumi.StringPtrOutput),
		},
		Build: docker.DockerBuildArgs{
			Platform:   pulumi.String(dockerPlatform(args.cpuArchitecture)),
			Context:    pulumi.String("."),
			Dockerfile: pulumi.String("webserver/Dockerfile"),
		},
		ImageName: repo.RepositoryUrl.ApplyT(func(url string) string {
			return fmt.Sprintf("%s:%s", url, ecrImage.tag)
		}).(pulumi.StringOutput),
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating image: %w", err)
	}

	return ecrImage, nil
}

// dockerPlatform maps an ECS cpu architecture to a docker build platform.
func dockerPlatform(cpuArchitecture string) string {
	if strings.EqualFold(cpuArchitecture, "X86_64") {
		return "linux/amd64"
	}
	return "linux/arm64"
}
