package models

// Credential is the access material for a project's source account.
// When RoleARN is set the source scope assumes that role, using the static
// keys (if any) as base credentials.
type Credential struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken,omitempty"`
	RoleARN         string `json:"roleArn,omitempty"`
	ExternalID      string `json:"externalId,omitempty"`
}

// ProvisioningTarget identifies the source environment resources to check or create.
type ProvisioningTarget struct {
	Region       string
	ProjectID    string
	StackName    string
	FunctionName string
}

// NetworkAttachment is the full replacement network configuration of the listing function.
type NetworkAttachment struct {
	SubnetIDs        []string `json:"subnetIds"`
	SecurityGroupIDs []string `json:"securityGroupIds"`
}

// PrepareResult summarizes what a prepare call did.
type PrepareResult struct {
	StackCreated    bool
	FunctionCreated bool
	RoleARN         string
}
