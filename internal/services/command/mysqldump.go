package command

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/fgeck/mysql-dr-dump/internal/apperr"
)

// DefaultMySQLPort is the port mysqldump uses when none is given.
const DefaultMySQLPort = 3306

// MySQLDumpBuilder accumulates mysqldump options. It is immutable: every
// method returns a new builder and leaves the receiver untouched.
type MySQLDumpBuilder struct {
	path      string
	opts      []string
	databases []string
	secret    string
	version   bool
	errs      []error
}

// MySQLDump starts a builder for the mysqldump binary at path.
func MySQLDump(path string) MySQLDumpBuilder {
	if path == "" {
		path = "mysqldump"
	}
	return MySQLDumpBuilder{path: path}
}

func (b MySQLDumpBuilder) with(opt string) MySQLDumpBuilder {
	b.opts = append(slices.Clone(b.opts), opt)
	return b
}

func (b MySQLDumpBuilder) fail(err error) MySQLDumpBuilder {
	b.errs = append(slices.Clone(b.errs), err)
	return b
}

// User sets --user.
func (b MySQLDumpBuilder) User(user string) MySQLDumpBuilder {
	return b.with("--user=" + user)
}

// Password sets --password. The value is masked when the command is logged.
func (b MySQLDumpBuilder) Password(password string) MySQLDumpBuilder {
	if password == "" {
		return b
	}
	b.secret = password
	return b.with("--password=" + password)
}

// Host sets --host.
func (b MySQLDumpBuilder) Host(host string) MySQLDumpBuilder {
	if host == "" {
		return b.fail(errors.New("host must not be empty"))
	}
	return b.with("--host=" + host)
}

// Port sets --port.
func (b MySQLDumpBuilder) Port(port int) MySQLDumpBuilder {
	if port < 0 || port > 65535 {
		return b.fail(fmt.Errorf("invalid port %d", port))
	}
	return b.with("--port=" + strconv.Itoa(port))
}

// DefaultPort sets --port to 3306.
func (b MySQLDumpBuilder) DefaultPort() MySQLDumpBuilder {
	return b.Port(DefaultMySQLPort)
}

// Databases sets the databases to dump, in the order given.
func (b MySQLDumpBuilder) Databases(databases ...string) MySQLDumpBuilder {
	b.databases = slices.Clone(databases)
	return b
}

// ResultFile sets --result-file.
func (b MySQLDumpBuilder) ResultFile(path string) MySQLDumpBuilder {
	if path == "" {
		return b.fail(errors.New("result file must not be empty"))
	}
	return b.with("--result-file=" + path)
}

// SingleTransaction dumps InnoDB tables from one consistent snapshot.
func (b MySQLDumpBuilder) SingleTransaction() MySQLDumpBuilder {
	return b.with("--single-transaction")
}

// Events includes scheduler events.
func (b MySQLDumpBuilder) Events() MySQLDumpBuilder {
	return b.with("--events")
}

// Routines includes stored procedures and functions.
func (b MySQLDumpBuilder) Routines() MySQLDumpBuilder {
	return b.with("--routines")
}

// Triggers includes triggers.
func (b MySQLDumpBuilder) Triggers() MySQLDumpBuilder {
	return b.with("--triggers")
}

// Compress compresses traffic between client and server.
func (b MySQLDumpBuilder) Compress() MySQLDumpBuilder {
	return b.with("--compress")
}

// OrderByPrimary sorts each table's rows by primary key.
func (b MySQLDumpBuilder) OrderByPrimary() MySQLDumpBuilder {
	return b.with("--order-by-primary")
}

// Version turns the builder into the version check form.
func (b MySQLDumpBuilder) Version() MySQLDumpBuilder {
	b.version = true
	return b
}

// Build validates the accumulated options and returns the command. The
// database list is always placed last, after --databases.
func (b MySQLDumpBuilder) Build() (Command, error) {
	if b.version {
		return Command{Name: b.path, Args: []string{"--version"}}, nil
	}

	errs := slices.Clone(b.errs)
	if len(b.databases) == 0 {
		errs = append(errs, errors.New("at least one database is required"))
	}
	for _, db := range b.databases {
		if db == "" {
			errs = append(errs, errors.New("database name must not be empty"))
			break
		}
	}
	if len(errs) > 0 {
		return Command{}, apperr.New(apperr.KindValidation, "invalid mysqldump command", errors.Join(errs...))
	}

	args := slices.Clone(b.opts)
	args = append(args, "--databases")
	args = append(args, b.databases...)

	return Command{Name: b.path, Args: args, secret: b.secret}, nil
}
