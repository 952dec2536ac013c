package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "riven.api_key")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all
// validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if c.Riven.APIKey == "" {
		errs = append(errs, ValidationError{
			Field:   "riven.api_key",
			Value:   "",
			Message: "required: set RIVEN_API_KEY",
		})
	}
	if c.Debrid.APIKey == "" {
		errs = append(errs, ValidationError{
			Field:   "debrid.api_key",
			Value:   "",
			Message: "required: set RD_API_KEY",
		})
	}

	if _, err := url.ParseRequestURI(c.Riven.URL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "riven.url",
			Value:   c.Riven.URL,
			Message: "must be a valid URL",
		})
	}
	if _, err := url.ParseRequestURI(c.Debrid.URL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "debrid.url",
			Value:   c.Debrid.URL,
			Message: "must be a valid URL",
		})
	}

	if c.Monitor.CheckIntervalHours <= 0 {
		errs = append(errs, ValidationError{
			Field:   "monitor.check_interval_hours",
			Value:   c.Monitor.CheckIntervalHours,
			Message: "must be positive",
		})
	}
	if c.Monitor.RetryIntervalMinutes <= 0 {
		errs = append(errs, ValidationError{
			Field:   "monitor.retry_interval_minutes",
			Value:   c.Monitor.RetryIntervalMinutes,
			Message: "must be positive",
		})
	}
	if c.Monitor.MaxRetries < 0 {
		errs = append(errs, ValidationError{
			Field:   "monitor.max_retries",
			Value:   c.Monitor.MaxRetries,
			Message: "must not be negative",
		})
	}

	if c.Debrid.PollIntervalMinutes <= 0 {
		errs = append(errs, ValidationError{
			Field:   "debrid.poll_interval_minutes",
			Value:   c.Debrid.PollIntervalMinutes,
			Message: "must be positive",
		})
	}
	if c.Debrid.MaxWaitHours <= 0 {
		errs = append(errs, ValidationError{
			Field:   "debrid.max_wait_hours",
			Value:   c.Debrid.MaxWaitHours,
			Message: "must be positive",
		})
	}
	if c.Debrid.MaxTorrents <= 0 {
		errs = append(errs, ValidationError{
			Field:   "debrid.max_torrents",
			Value:   c.Debrid.MaxTorrents,
			Message: "must be positive",
		})
	}
	if c.Debrid.MaxActiveDownloads <= 0 {
		errs = append(errs, ValidationError{
			Field:   "debrid.max_active_downloads",
			Value:   c.Debrid.MaxActiveDownloads,
			Message: "must be positive",
		})
	}
	if c.Debrid.AddDelaySeconds < 0 {
		errs = append(errs, ValidationError{
			Field:   "debrid.add_delay_seconds",
			Value:   c.Debrid.AddDelaySeconds,
			Message: "must not be negative",
		})
	}

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errs
}
