package command

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/fgeck/mysql-dr-dump/internal/apperr"
)

// TarBuilder builds tar invocations. It is immutable like MySQLDumpBuilder.
type TarBuilder struct {
	path   string
	target string
	source string
	errs   []error
}

// Tar starts a builder for the tar binary at path.
func Tar(path string) TarBuilder {
	if path == "" {
		path = "tar"
	}
	return TarBuilder{path: path}
}

// CompressFile gzips the single file source into the archive target. The
// archive stores only the file's base name.
func (b TarBuilder) CompressFile(target, source string) TarBuilder {
	b.errs = slices.Clone(b.errs)
	if target == "" {
		b.errs = append(b.errs, errors.New("archive target must not be empty"))
	}
	if source == "" {
		b.errs = append(b.errs, errors.New("archive source must not be empty"))
	}
	b.target = target
	b.source = source
	return b
}

// Build validates the builder and returns the command.
func (b TarBuilder) Build() (Command, error) {
	errs := slices.Clone(b.errs)
	if b.target == "" && b.source == "" && len(errs) == 0 {
		errs = append(errs, errors.New("no file to compress"))
	}
	if len(errs) > 0 {
		return Command{}, apperr.New(apperr.KindValidation, "invalid tar command", errors.Join(errs...))
	}

	return Command{
		Name: b.path,
		Args: []string{"-czf", b.target, "-C", filepath.Dir(b.source), filepath.Base(b.source)},
	}, nil
}

// DiskUsageBuilder builds df invocations.
type DiskUsageBuilder struct {
	path     string
	portable bool
	target   string
}

// DiskUsage starts a builder for the df binary at path.
func DiskUsage(path string) DiskUsageBuilder {
	if path == "" {
		path = "df"
	}
	return DiskUsageBuilder{path: path}
}

// Portable requests POSIX output in 1024-byte blocks, which ParseAvailableKB understands.
func (b DiskUsageBuilder) Portable() DiskUsageBuilder {
	b.portable = true
	return b
}

// Target restricts the report to the filesystem holding dir.
func (b DiskUsageBuilder) Target(dir string) DiskUsageBuilder {
	b.target = dir
	return b
}

// Build returns the command.
func (b DiskUsageBuilder) Build() Command {
	args := []string{"-h"}
	if b.portable {
		args = []string{"-P", "-k"}
	}
	if b.target != "" {
		args = append(args, b.target)
	}
	return Command{Name: b.path, Args: args}
}

// ParseAvailableKB extracts the available kilobytes from `df -P -k` output
// for a single filesystem.
func ParseAvailableKB(output string) (int64, error) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("unexpected df output: %q", output)
	}

	fields := strings.Fields(lines[len(lines)-1])
	if len(fields) < 6 {
		return 0, fmt.Errorf("unexpected df line: %q", lines[len(lines)-1])
	}

	// Filesystem 1024-blocks Used Available Capacity Mounted-on
	available, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing available blocks %q: %w", fields[3], err)
	}
	return available, nil
}
