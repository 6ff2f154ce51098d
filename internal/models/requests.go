package models

// CheckEnvironmentRequest is the payload of the CheckEnvironment entry point.
type CheckEnvironmentRequest struct {
	Region    string `json:"region"`
	ProjectID string `json:"projectId"`
}

// PrepareEnvironmentRequest is the payload of the PrepareEnvironment entry point.
type PrepareEnvironmentRequest struct {
	Region           string   `json:"region"`
	ProjectID        string   `json:"projectId"`
	SubnetIDs        []string `json:"subnetIds"`
	SecurityGroupIDs []string `json:"securityGroupIds"`
}

// CallGetDatabasesRequest is the payload of the CallGetDatabases entry point.
type CallGetDatabasesRequest struct {
	Region      string           `json:"region"`
	ProjectID   string           `json:"projectId"`
	DbID        string           `json:"dbId"`
	DbParameter DbConnectionSpec `json:"dbParameter"`
}
