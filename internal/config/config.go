// Package config holds the run configuration shared by the CLI commands
// and its lint-style validation. Validation returns a list of issues
// instead of a single error so the operator sees every problem at once;
// commands fail fast when any issue has error severity, before touching
// the database.
package config

import (
	"fmt"
	"os"

	"pimdb/internal/dataset"
	"pimdb/internal/pipeline"
)

// Config is the full run configuration, populated from CLI flags.
type Config struct {
	// Database is the connection string: a postgres:// URL or a SQLite
	// file path.
	Database string

	// DatasetFolder holds the downloaded dataset files.
	DatasetFolder string

	// BatchSize is the bulk insert batch size. Zero selects the default.
	BatchSize int

	// Drop recreates staging tables instead of truncating them.
	Drop bool

	// Force re-downloads dataset files even when unchanged upstream.
	Force bool

	// Datasets are the selected dataset names; "all" or an empty list
	// selects every dataset.
	Datasets []string
}

// DatasetIDs resolves the selected dataset names. Unknown names fail.
func (c Config) DatasetIDs() ([]dataset.ID, error) {
	if len(c.Datasets) == 0 {
		return dataset.All(), nil
	}
	var ids []dataset.ID
	for _, name := range c.Datasets {
		if name == "all" {
			return dataset.All(), nil
		}
		id := dataset.ID(name)
		if !dataset.IsValid(id) {
			return nil, fmt.Errorf("unknown dataset %q, expected one of %v or \"all\"", name, dataset.All())
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Mode selects which command's preconditions Lint checks.
type Mode int

const (
	ModeDownload Mode = iota
	ModeTransfer
	ModeBuild
	ModeQuery
)

// Severity ranks a configuration issue.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Issue is one problem found by Lint.
type Issue struct {
	Severity Severity
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Severity, i.Message)
}

// HasErrors reports whether any issue is of error severity.
func HasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Lint validates the configuration for a command mode. Transfer
// additionally requires the dataset folder and every selected dataset file
// to exist, so a half-configured run never mutates any table.
func (c Config) Lint(mode Mode) []Issue {
	var issues []Issue
	errorf := func(format string, args ...any) {
		issues = append(issues, Issue{Severity: SeverityError, Message: fmt.Sprintf(format, args...)})
	}
	warnf := func(format string, args ...any) {
		issues = append(issues, Issue{Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)})
	}

	if c.Database == "" && mode != ModeDownload {
		errorf("database connection string must not be empty")
	}
	if c.BatchSize < 0 {
		errorf("batch size must be positive, got %d", c.BatchSize)
	}

	ids, err := c.DatasetIDs()
	if err != nil {
		errorf("%v", err)
	}

	switch mode {
	case ModeDownload, ModeTransfer:
		if c.DatasetFolder == "" {
			errorf("dataset folder must not be empty")
			break
		}
		info, err := os.Stat(c.DatasetFolder)
		switch {
		case mode == ModeDownload && os.IsNotExist(err):
			warnf("dataset folder %q does not exist yet and will be created", c.DatasetFolder)
		case err != nil:
			errorf("cannot access dataset folder %q: %v", c.DatasetFolder, err)
		case !info.IsDir():
			errorf("dataset folder %q is not a directory", c.DatasetFolder)
		case mode == ModeTransfer:
			for _, id := range ids {
				if _, err := pipeline.DatasetPath(c.DatasetFolder, id); err != nil {
					errorf("%v", err)
				}
			}
		}
	}
	return issues
}
