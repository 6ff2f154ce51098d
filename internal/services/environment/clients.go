// Package environment checks and provisions the resources a project's
// source account needs before databases can be listed remotely: the common
// storage stack, the listing function and its network attachment.
package environment

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/fgeck/mysql-dr-dump/internal/services/params"
	"github.com/fgeck/mysql-dr-dump/internal/services/storage"
	"github.com/rs/zerolog"
)

// LambdaAPI is the subset of the Lambda client used here.
type LambdaAPI interface {
	GetFunction(ctx context.Context, params *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
	CreateFunction(ctx context.Context, params *lambda.CreateFunctionInput, optFns ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error)
	UpdateFunctionConfiguration(ctx context.Context, params *lambda.UpdateFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error)
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// IAMAPI is the subset of the IAM client used here.
type IAMAPI interface {
	ListRoles(ctx context.Context, params *iam.ListRolesInput, optFns ...func(*iam.Options)) (*iam.ListRolesOutput, error)
}

// CloudFormationAPI is the subset of the CloudFormation client used here.
type CloudFormationAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
	ContinueUpdateRollback(ctx context.Context, params *cloudformation.ContinueUpdateRollbackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.ContinueUpdateRollbackOutput, error)
}

// Scope holds the storage and parameter services of one credential scope.
type Scope struct {
	Storage storage.Service
	Params  params.Service
}

// NewScope creates the services of the scope described by cfg.
func NewScope(logger zerolog.Logger, cfg aws.Config) Scope {
	return Scope{
		Storage: storage.New(logger, cfg),
		Params:  params.New(logger, cfg),
	}
}

// SourceClients holds every client of a project's source scope.
type SourceClients struct {
	Scope
	CloudFormation CloudFormationAPI
	IAM            IAMAPI
	Lambda         LambdaAPI
}

// NewSourceClients creates the source scope clients from cfg.
func NewSourceClients(logger zerolog.Logger, cfg aws.Config) SourceClients {
	return SourceClients{
		Scope:          NewScope(logger, cfg),
		CloudFormation: cloudformation.NewFromConfig(cfg),
		IAM:            iam.NewFromConfig(cfg),
		Lambda:         lambda.NewFromConfig(cfg),
	}
}
