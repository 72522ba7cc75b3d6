package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/pulumi/pulumi/sdk/v3/go/common/resource/asset"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mockRegion  = "us-east-1"
	mockAccount = "123456789012"
)

type declared struct {
	typ    string
	name   string
	inputs resource.PropertyMap
}

// stackMocks records every resource the program declares and fills in the
// outputs the program reads back.
type stackMocks struct {
	mu        sync.Mutex
	resources map[string]declared
}

func newStackMocks() *stackMocks {
	return &stackMocks{resources: map[string]declared{}}
}

func (m *stackMocks) NewResource(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error) {
	m.mu.Lock()
	m.resources[args.TypeToken+"::"+args.Name] = declared{typ: args.TypeToken, name: args.Name, inputs: args.Inputs}
	m.mu.Unlock()

	outputs := args.Inputs.Copy()
	setDefault := func(key, value string) {
		if _, ok := outputs[resource.PropertyKey(key)]; !ok {
			outputs[resource.PropertyKey(key)] = resource.NewStringProperty(value)
		}
	}
	setDefault("arn", fmt.Sprintf("arn:aws:mock:%s:%s:%s", mockRegion, mockAccount, args.Name))
	setDefault("name", args.Name+"-1a2b3c4")

	switch args.TypeToken {
	case "aws:apigatewayv2/api:Api":
		outputs["apiEndpoint"] = resource.NewStringProperty("https://" + args.Name + ".execute-api.us-east-1.amazonaws.com")
		outputs["executionArn"] = resource.NewStringProperty("arn:aws:execute-api:us-east-1:123456789012:" + args.Name)
	case "aws:ecr/repository:Repository":
		outputs["repositoryUrl"] = resource.NewStringProperty(mockAccount + ".dkr.ecr.us-east-1.amazonaws.com/" + args.Name)
		outputs["registryId"] = resource.NewStringProperty(mockAccount)
	case "docker:index/image:Image":
		outputs["repoDigest"] = resource.NewStringProperty("registry@sha256:0000")
	case "aws:lb/loadBalancer:LoadBalancer":
		outputs["dnsName"] = resource.NewStringProperty(args.Name + ".elb.amazonaws.com")
	case "awsx:ec2:Vpc":
		outputs["vpcId"] = resource.NewStringProperty("vpc-0123")
		outputs["publicSubnetIds"] = resource.NewPropertyValue([]interface{}{"subnet-pub-a", "subnet-pub-b"})
		outputs["privateSubnetIds"] = resource.NewPropertyValue([]interface{}{"subnet-priv-a", "subnet-priv-b"})
	}

	return args.Name + "_id", outputs, nil
}

func (m *stackMocks) Call(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
	switch args.Token {
	case "aws:index/getRegion:getRegion":
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"name": mockRegion,
			"id":   mockRegion,
		}), nil
	case "aws:index/getCallerIdentity:getCallerIdentity":
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"accountId": mockAccount,
			"arn":       "arn:aws:iam::" + mockAccount + ":user/test",
			"userId":    "test",
			"id":        mockAccount,
		}), nil
	case "aws:iam/getPolicyDocument:getPolicyDocument":
		// Echo the requested statements back as the rendered document.
		doc, err := json.Marshal(args.Args.Mappable())
		if err != nil {
			return nil, err
		}
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"json": string(doc),
		}), nil
	case "aws:ecr/getAuthorizationToken:getAuthorizationToken":
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"userName":           "AWS",
			"password":           "secret",
			"authorizationToken": "token",
			"proxyEndpoint":      "https://" + mockAccount + ".dkr.ecr.us-east-1.amazonaws.com",
			"registryId":         mockAccount,
			"id":                 mockAccount,
		}), nil
	}
	return resource.PropertyMap{}, nil
}

func (m *stackMocks) ofType(typ string) []declared {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []declared
	for _, d := range m.resources {
		if d.typ == typ {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (m *stackMocks) single(t *testing.T, typ string) declared {
	t.Helper()
	found := m.ofType(typ)
	require.Len(t, found, 1, "resources of type %s", typ)
	return found[0]
}

func runStack(t *testing.T) *stackMocks {
	t.Helper()
	m := newStackMocks()
	err := pulumi.RunErr(createInfra, pulumi.WithMocks("order-up", "test", m))
	require.NoError(t, err)
	return m
}

func str(pm resource.PropertyMap, key string) string {
	v, ok := pm[resource.PropertyKey(key)]
	if !ok {
		return ""
	}
	if v.IsSecret() {
		v = v.SecretValue().Element
	}
	if !v.IsString() {
		return ""
	}
	return v.StringValue()
}

func obj(pm resource.PropertyMap, key string) resource.PropertyMap {
	v := pm[resource.PropertyKey(key)]
	if !v.IsObject() {
		return nil
	}
	return v.ObjectValue()
}

func strs(pm resource.PropertyMap, key string) []string {
	v := pm[resource.PropertyKey(key)]
	if !v.IsArray() {
		return nil
	}
	var out []string
	for _, e := range v.ArrayValue() {
		out = append(out, e.StringValue())
	}
	return out
}

func TestDeclaresEveryUnit(t *testing.T) {
	m := runStack(t)

	for _, typ := range []string{
		"aws:dynamodb/table:Table",
		"awsx:ec2:Vpc",
		"aws:lambda/function:Function",
		"aws:apigatewayv2/api:Api",
		"aws:apigatewayv2/stage:Stage",
		"aws:ecr/repository:Repository",
		"docker:index/image:Image",
		"aws:ecs/cluster:Cluster",
		"aws:ecs/taskDefinition:TaskDefinition",
		"aws:ecs/service:Service",
		"aws:lb/loadBalancer:LoadBalancer",
		"aws:lb/listener:Listener",
		"aws:lb/targetGroup:TargetGroup",
	} {
		assert.NotEmpty(t, m.ofType(typ), typ)
	}
}

func TestTableKeySchema(t *testing.T) {
	m := runStack(t)
	table := m.single(t, "aws:dynamodb/table:Table")

	assert.Equal(t, "id", str(table.inputs, "hashKey"))
	assert.Empty(t, str(table.inputs, "rangeKey"))

	attrs := table.inputs["attributes"].ArrayValue()
	require.Len(t, attrs, 1)
	assert.Equal(t, "id", str(attrs[0].ObjectValue(), "name"))
	assert.Equal(t, "S", str(attrs[0].ObjectValue(), "type"))

	assert.False(t, table.inputs["deletionProtectionEnabled"].BoolValue())
	// Left to the engine to name unless configured.
	assert.Empty(t, str(table.inputs, "name"))
}

func TestFunctionPermissions(t *testing.T) {
	m := runStack(t)

	policy := m.single(t, "aws:iam/policy:Policy")
	assert.Equal(t, "AWSLambdaMicroserviceExecutionRole", str(policy.inputs, "name"))

	var doc struct {
		Statements []struct {
			Effect    string   `json:"effect"`
			Actions   []string `json:"actions"`
			Resources []string `json:"resources"`
		} `json:"statements"`
	}
	require.NoError(t, json.Unmarshal([]byte(str(policy.inputs, "policy")), &doc))
	require.Len(t, doc.Statements, 1)
	stmt := doc.Statements[0]
	assert.Equal(t, "Allow", stmt.Effect)
	assert.ElementsMatch(t, []string{
		"dynamodb:DeleteItem",
		"dynamodb:GetItem",
		"dynamodb:PutItem",
		"dynamodb:Scan",
		"dynamodb:UpdateItem",
	}, stmt.Actions)
	assert.Equal(t, []string{"arn:aws:dynamodb:us-east-1:123456789012:table/*"}, stmt.Resources)

	var role declared
	for _, r := range m.ofType("aws:iam/role:Role") {
		if r.name == "lambda-execution-role" {
			role = r
		}
	}
	require.NotNil(t, role.inputs)
	assert.ElementsMatch(t, []string{
		"arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole",
		"arn:aws:mock:us-east-1:123456789012:lambda-microservice-policy",
	}, strs(role.inputs, "managedPolicyArns"))
}

func TestFunctionReceivesTableName(t *testing.T) {
	m := runStack(t)
	fn := m.single(t, "aws:lambda/function:Function")

	assert.Equal(t, "provided.al2023", str(fn.inputs, "runtime"))
	assert.Equal(t, "bootstrap", str(fn.inputs, "handler"))
	assert.Equal(t, []string{"arm64"}, strs(fn.inputs, "architectures"))
	assert.Equal(t, "arn:aws:mock:us-east-1:123456789012:lambda-execution-role", str(fn.inputs, "role"))

	vars := obj(obj(fn.inputs, "environment"), "variables")
	assert.Equal(t, "orders-table-1a2b3c4", str(vars, "TABLE_NAME"))
}

func TestApiRoutes(t *testing.T) {
	m := runStack(t)

	api := m.single(t, "aws:apigatewayv2/api:Api")
	assert.Equal(t, "HTTP", str(api.inputs, "protocolType"))
	assert.Equal(t, "Orders Service", str(api.inputs, "name"))

	integration := m.single(t, "aws:apigatewayv2/integration:Integration")
	assert.Equal(t, "AWS_PROXY", str(integration.inputs, "integrationType"))
	assert.Equal(t, "arn:aws:mock:us-east-1:123456789012:orders-function", str(integration.inputs, "integrationUri"))

	routes := m.ofType("aws:apigatewayv2/route:Route")
	require.Len(t, routes, 4)
	var keys []string
	for _, r := range routes {
		keys = append(keys, str(r.inputs, "routeKey"))
		assert.Equal(t, "integrations/orders-integration_id", str(r.inputs, "target"), r.name)
	}
	assert.ElementsMatch(t, []string{
		"GET /orders",
		"PUT /orders",
		"GET /orders/{id}",
		"DELETE /orders/{id}",
	}, keys)

	perm := m.single(t, "aws:lambda/permission:Permission")
	assert.Equal(t, "apigateway.amazonaws.com", str(perm.inputs, "principal"))
	assert.Equal(t, "orders-function-1a2b3c4", str(perm.inputs, "function"))
}

func TestNetworkSpansTwoZones(t *testing.T) {
	m := runStack(t)
	vpc := m.single(t, "awsx:ec2:Vpc")

	assert.Equal(t, float64(2), vpc.inputs["numberOfAvailabilityZones"].NumberValue())
}

func TestFrontendContainer(t *testing.T) {
	m := runStack(t)
	taskdef := m.single(t, "aws:ecs/taskDefinition:TaskDefinition")

	platform := obj(taskdef.inputs, "runtimePlatform")
	assert.Equal(t, "ARM64", str(platform, "cpuArchitecture"))
	assert.Equal(t, "LINUX", str(platform, "operatingSystemFamily"))
	assert.Equal(t, []string{"FARGATE"}, strs(taskdef.inputs, "requiresCompatibilities"))

	var containers []struct {
		Name         string `json:"name"`
		Image        string `json:"image"`
		PortMappings []struct {
			ContainerPort int `json:"containerPort"`
		} `json:"portMappings"`
		Environment []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"environment"`
	}
	require.NoError(t, json.Unmarshal([]byte(str(taskdef.inputs, "containerDefinitions")), &containers))
	require.Len(t, containers, 1)
	c := containers[0]
	assert.Equal(t, "registry@sha256:0000", c.Image)
	require.Len(t, c.PortMappings, 1)
	assert.Equal(t, 3000, c.PortMappings[0].ContainerPort)
	require.Len(t, c.Environment, 1)
	assert.Equal(t, "API_URL", c.Environment[0].Name)
	assert.Equal(t, "https://orders-api.execute-api.us-east-1.amazonaws.com", c.Environment[0].Value)

	tg := m.single(t, "aws:lb/targetGroup:TargetGroup")
	assert.Equal(t, float64(3000), tg.inputs["port"].NumberValue())

	lb := m.single(t, "aws:lb/loadBalancer:LoadBalancer")
	assert.False(t, lb.inputs["internal"].BoolValue())
	assert.Equal(t, []string{"subnet-pub-a", "subnet-pub-b"}, strs(lb.inputs, "subnets"))

	svc := m.single(t, "aws:ecs/service:Service")
	lbs := svc.inputs["loadBalancers"].ArrayValue()
	require.Len(t, lbs, 1)
	assert.Equal(t, float64(3000), lbs[0].ObjectValue()["containerPort"].NumberValue())
	assert.Equal(t, []string{"subnet-priv-a", "subnet-priv-b"}, strs(obj(svc.inputs, "networkConfiguration"), "subnets"))
}

func TestFrontendServiceUsesDefaultRollout(t *testing.T) {
	m := runStack(t)
	svc := m.single(t, "aws:ecs/service:Service")

	for _, key := range []resource.PropertyKey{
		"deploymentCircuitBreaker",
		"deploymentMaximumPercent",
		"deploymentMinimumHealthyPercent",
		"deploymentController",
	} {
		assert.NotContains(t, svc.inputs, key)
	}
	assert.Equal(t, float64(1), svc.inputs["desiredCount"].NumberValue())
	assert.Equal(t, "FARGATE", str(svc.inputs, "launchType"))
}

func TestFrontendImageBuild(t *testing.T) {
	m := runStack(t)
	image := m.single(t, "docker:index/image:Image")

	build := obj(image.inputs, "build")
	assert.Equal(t, "linux/arm64", str(build, "platform"))
	assert.Equal(t, ".", str(build, "context"))
	assert.Equal(t, "webserver/Dockerfile", str(build, "dockerfile"))

	digest, err := hashSources(webserverSources...)
	require.NoError(t, err)
	assert.Equal(t, "123456789012.dkr.ecr.us-east-1.amazonaws.com/registry:"+digest[:12], str(image.inputs, "imageName"))
}

func TestStackConfig(t *testing.T) {
	t.Setenv("PULUMI_CONFIG", `{"order-up:tableName":"OrderUpDB","order-up:cpuArchitecture":"X86_64","order-up:maxAzs":"3"}`)
	m := runStack(t)

	assert.Equal(t, "OrderUpDB", str(m.single(t, "aws:dynamodb/table:Table").inputs, "name"))
	assert.Equal(t, float64(3), m.single(t, "awsx:ec2:Vpc").inputs["numberOfAvailabilityZones"].NumberValue())
	assert.Equal(t, "linux/amd64", str(obj(m.single(t, "docker:index/image:Image").inputs, "build"), "platform"))
	assert.Equal(t, "X86_64", str(obj(m.single(t, "aws:ecs/taskDefinition:TaskDefinition").inputs, "runtimePlatform"), "cpuArchitecture"))

	fn := m.single(t, "aws:lambda/function:Function")
	assert.Equal(t, "OrderUpDB", str(obj(obj(fn.inputs, "environment"), "variables"), "TABLE_NAME"))
}

// archivePaths identifies an archive by the files it points at. Archive
// equality hashes the files, and the function bundle only exists after a build.
func archivePaths(v resource.PropertyValue) map[string]string {
	paths := map[string]string{}
	for name, a := range v.ArchiveValue().Assets {
		if file, ok := a.(*asset.Asset); ok {
			paths[name] = file.Path
		}
	}
	return paths
}

func assertSameInputs(t *testing.T, key string, a, b resource.PropertyMap) {
	t.Helper()
	require.ElementsMatch(t, a.StableKeys(), b.StableKeys(), key)
	for _, k := range a.StableKeys() {
		av, bv := a[k], b[k]
		if av.IsArchive() {
			require.True(t, bv.IsArchive(), "%s.%s", key, k)
			assert.Equal(t, archivePaths(av), archivePaths(bv), "%s.%s", key, k)
			continue
		}
		assert.True(t, av.DeepEquals(bv), "%s.%s differs between runs", key, k)
	}
}

func TestFunctionCodeArchive(t *testing.T) {
	m := runStack(t)
	fn := m.single(t, "aws:lambda/function:Function")

	code := fn.inputs["code"]
	require.True(t, code.IsArchive())
	assert.Equal(t, map[string]string{"bootstrap": "./asset/bootstrap"}, archivePaths(code))
}

func TestDeclarationIsIdempotent(t *testing.T) {
	first := runStack(t)
	second := runStack(t)

	require.Equal(t, len(first.resources), len(second.resources))
	for key, a := range first.resources {
		b, ok := second.resources[key]
		require.True(t, ok, key)
		assertSameInputs(t, key, a.inputs, b.inputs)
	}
}
