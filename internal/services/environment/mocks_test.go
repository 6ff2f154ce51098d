package environment

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/fgeck/mysql-dr-dump/internal/apperr"
	"github.com/fgeck/mysql-dr-dump/internal/models"
	"github.com/rs/zerolog"
)

type mockLambda struct {
	getFunctionFunc    func(ctx context.Context, params *lambda.GetFunctionInput) (*lambda.GetFunctionOutput, error)
	createFunctionFunc func(ctx context.Context, params *lambda.CreateFunctionInput) (*lambda.CreateFunctionOutput, error)
	updateConfigFunc   func(ctx context.Context, params *lambda.UpdateFunctionConfigurationInput) (*lambda.UpdateFunctionConfigurationOutput, error)
	invokeFunc         func(ctx context.Context, params *lambda.InvokeInput) (*lambda.InvokeOutput, error)

	createCalls int
	updateCalls int
}

func (m *mockLambda) GetFunction(ctx context.Context, params *lambda.GetFunctionInput, _ ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error) {
	if m.getFunctionFunc != nil {
		return m.getFunctionFunc(ctx, params)
	}
	return &lambda.GetFunctionOutput{Configuration: &lambdatypes.FunctionConfiguration{
		State:            lambdatypes.StateActive,
		LastUpdateStatus: lambdatypes.LastUpdateStatusSuccessful,
	}}, nil
}

func (m *mockLambda) CreateFunction(ctx context.Context, params *lambda.CreateFunctionInput, _ ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error) {
	m.createCalls++
	if m.createFunctionFunc != nil {
		return m.createFunctionFunc(ctx, params)
	}
	return &lambda.CreateFunctionOutput{}, nil
}

func (m *mockLambda) UpdateFunctionConfiguration(ctx context.Context, params *lambda.UpdateFunctionConfigurationInput, _ ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error) {
	m.updateCalls++
	if m.updateConfigFunc != nil {
		return m.updateConfigFunc(ctx, params)
	}
	return &lambda.UpdateFunctionConfigurationOutput{}, nil
}

func (m *mockLambda) Invoke(ctx context.Context, params *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	if m.invokeFunc != nil {
		return m.invokeFunc(ctx, params)
	}
	return &lambda.InvokeOutput{Payload: []byte("[]")}, nil
}

type mockIAM struct {
	listRolesFunc func(ctx context.Context, params *iam.ListRolesInput) (*iam.ListRolesOutput, error)
	calls         int
}

func (m *mockIAM) ListRoles(ctx context.Context, params *iam.ListRolesInput, _ ...func(*iam.Options)) (*iam.ListRolesOutput, error) {
	m.calls++
	if m.listRolesFunc != nil {
		return m.listRolesFunc(ctx, params)
	}
	return &iam.ListRolesOutput{}, nil
}

type mockCFN struct {
	describeFunc func(ctx context.Context, params *cloudformation.DescribeStacksInput) (*cloudformation.DescribeStacksOutput, error)
	createFunc   func(ctx context.Context, params *cloudformation.CreateStackInput) (*cloudformation.CreateStackOutput, error)
	deleteFunc   func(ctx context.Context, params *cloudformation.DeleteStackInput) (*cloudformation.DeleteStackOutput, error)
	continueFunc func(ctx context.Context, params *cloudformation.ContinueUpdateRollbackInput) (*cloudformation.ContinueUpdateRollbackOutput, error)

	createCalls   int
	deleteCalls   int
	continueCalls int
}

func (m *mockCFN) DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, _ ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	if m.describeFunc != nil {
		return m.describeFunc(ctx, params)
	}
	return &cloudformation.DescribeStacksOutput{}, nil
}

func (m *mockCFN) CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	m.createCalls++
	if m.createFunc != nil {
		return m.createFunc(ctx, params)
	}
	return &cloudformation.CreateStackOutput{}, nil
}

func (m *mockCFN) DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error) {
	m.deleteCalls++
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, params)
	}
	return &cloudformation.DeleteStackOutput{}, nil
}

func (m *mockCFN) ContinueUpdateRollback(ctx context.Context, params *cloudformation.ContinueUpdateRollbackInput, _ ...func(*cloudformation.Options)) (*cloudformation.ContinueUpdateRollbackOutput, error) {
	m.continueCalls++
	if m.continueFunc != nil {
		return m.continueFunc(ctx, params)
	}
	return &cloudformation.ContinueUpdateRollbackOutput{}, nil
}

type mockStorage struct {
	objects map[string][]byte
	puts    map[string][]byte
	gets    int
}

func newMockStorage(objects map[string][]byte) *mockStorage {
	return &mockStorage{objects: objects, puts: map[string][]byte{}}
}

func (m *mockStorage) UploadFile(_ context.Context, bucket, key, filePath string) (int64, error) {
	return 0, fmt.Errorf("unexpected upload of %s", filePath)
}

func (m *mockStorage) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	m.gets++
	body, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, apperr.New(apperr.KindProvider, fmt.Sprintf("fetching s3://%s/%s", bucket, key), fmt.Errorf("NoSuchKey"))
	}
	return body, nil
}

func (m *mockStorage) PutObject(_ context.Context, bucket, key string, body []byte) error {
	m.puts[bucket+"/"+key] = body
	return nil
}

type mockParams map[string]string

func (m mockParams) GetParameter(_ context.Context, name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", apperr.New(apperr.KindConfiguration, "unable to find parameter "+name, nil)
	}
	return v, nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testEnvSettings() models.EnvironmentSettings {
	return models.EnvironmentSettings{
		StackName:        "dbdump-common-bucket",
		FunctionName:     "dbdump-mysql-get-databases",
		RolePrefix:       "dbdump-mysql-lambda",
		FunctionMemoryMB: 1024,
		FunctionTimeout:  10 * time.Minute,
		FunctionRuntime:  "provided.al2023",
		FunctionHandler:  "GetDatabases",
		PollInterval:     time.Millisecond,
		PollTimeout:      time.Second,
	}
}

func testStorageSettings() models.StorageSettings {
	return models.StorageSettings{
		BucketParameter:    "/dbdump/bucket",
		StackTemplateKey:   "cfn/dbdump-common-bucket.json",
		FunctionPackageKey: "lambda/dbdump-mysql.zip",
	}
}
