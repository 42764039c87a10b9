package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoSeedURL is returned when no URL to mirror is given.
	ErrNoSeedURL = errors.New("no URL specified: provide the site URL to mirror")

	// ErrInvalidSeedURL is returned when the seed is not an absolute http(s) URL.
	ErrInvalidSeedURL = errors.New("invalid URL: must be an absolute http or https URL")

	// ErrNoDestination is returned when no mirror directory is given.
	ErrNoDestination = errors.New("no destination directory specified")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrConflictingTransport is returned when --direct and --embedded-tor are combined.
	ErrConflictingTransport = errors.New("conflicting transport: --direct and --embedded-tor cannot be used together")

	// ErrInvalidReportFormat is returned for an unknown report format.
	ErrInvalidReportFormat = errors.New("invalid report format: must be one of text, markdown, json, none")

	// ErrConflictingVerbosity is returned when --verbose and --quiet are combined.
	ErrConflictingVerbosity = errors.New("conflicting log level: --verbose and --quiet cannot be used together")
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")
