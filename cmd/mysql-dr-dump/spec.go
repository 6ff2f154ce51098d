package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fgeck/mysql-dr-dump/internal/models"
	"github.com/spf13/cobra"
)

// Environment variables read when the matching flag is not given.
const (
	envHost       = "host"
	envPort       = "port"
	envUsername   = "username"
	envPasswordID = "password_id"
	envDatabases  = "databases"
)

// specFlags binds the connection spec flags of one command.
type specFlags struct {
	host       string
	port       int
	username   string
	passwordID string
	databases  []string
}

func (f *specFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.host, "host", "", "MySQL host (env: host)")
	cmd.Flags().IntVar(&f.port, "port", 0, "MySQL port, 0 for 3306 (env: port)")
	cmd.Flags().StringVar(&f.username, "username", "", "MySQL user (env: username)")
	cmd.Flags().StringVar(&f.passwordID, "password-id", "", "secret id of the MySQL password (env: password_id)")
	cmd.Flags().StringSliceVar(&f.databases, "databases", nil, "databases to dump, comma separated (env: databases)")
}

// resolve builds the connection spec from the flags, falling back to the environment
// for every flag the caller did not set.
func (f *specFlags) resolve(cmd *cobra.Command, getenv func(string) string) (models.DbConnectionSpec, error) {
	spec := models.DbConnectionSpec{
		Host:       f.host,
		Port:       f.port,
		Username:   f.username,
		PasswordID: f.passwordID,
		Databases:  f.databases,
	}

	if !cmd.Flags().Changed("host") {
		spec.Host = getenv(envHost)
	}
	if !cmd.Flags().Changed("port") {
		if raw := strings.TrimSpace(getenv(envPort)); raw != "" {
			port, err := strconv.Atoi(raw)
			if err != nil {
				return models.DbConnectionSpec{}, fmt.Errorf("invalid %s %q: %w", envPort, raw, err)
			}
			spec.Port = port
		}
	}
	if !cmd.Flags().Changed("username") {
		spec.Username = getenv(envUsername)
	}
	if !cmd.Flags().Changed("password-id") {
		spec.PasswordID = getenv(envPasswordID)
	}
	if !cmd.Flags().Changed("databases") {
		spec.Databases = splitList(getenv(envDatabases))
	}

	return spec, nil
}

// splitList splits a comma separated list, dropping blank entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
