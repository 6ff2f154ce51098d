package models

import (
	"net"
	"path/filepath"
	"strconv"
	"time"
)

// DbConnectionSpec describes a MySQL server and the databases to act on.
// PasswordID references a secret; the plaintext password never lives here.
type DbConnectionSpec struct {
	Host       string   `json:"host"`
	Port       int      `json:"port"`
	Username   string   `json:"username"`
	PasswordID string   `json:"passwordId"`
	Databases  []string `json:"databases"`
}

// Address returns host:port, bracketing IPv6 hosts.
func (s DbConnectionSpec) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ArtifactStage identifies which pipeline stage produced an artifact.
type ArtifactStage string

// Artifact stages.
const (
	ArtifactRawDump    ArtifactStage = "raw-dump"
	ArtifactCompressed ArtifactStage = "compressed"
)

// DumpArtifact is a file produced by one pipeline stage and consumed by the next.
type DumpArtifact struct {
	Path  string
	Stage ArtifactStage
}

// Name returns the artifact's file name.
func (a DumpArtifact) Name() string {
	return filepath.Base(a.Path)
}

// DumpResult holds the outcome of a dump pipeline run.
type DumpResult struct {
	RunID       string
	ArtifactKey string // object key of the uploaded artifact
	Artifact    DumpArtifact
	SizeBytes   int64
	Duration    time.Duration
	Stages      []StageTiming
}

// StageTiming records how long a pipeline stage ran.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}
