package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/merges/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "defaults.strategy")
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

// branchNameRegex rejects the characters git refuses in ref names.
var branchNameRegex = regexp.MustCompile(`^[^\s~^:?*\[\\]+$`)

// ValidLogLevels returns the levels the logger accepts, lower-cased as they
// are written in config files.
func ValidLogLevels() []string {
	levels := logging.ValidLevels()
	for i, l := range levels {
		levels[i] = strings.ToLower(l)
	}
	return levels
}

// ValidStrategies returns the list of valid rebase/PR strategies
func ValidStrategies() []string {
	return []string{StrategyStacked, StrategyIndependent}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateDefaults()...)
	errors = append(errors, c.validatePR()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateDefaults() []ValidationError {
	var errors []ValidationError

	base := c.Defaults.BaseBranch
	if base == "" {
		errors = append(errors, ValidationError{
			Field:   "defaults.base_branch",
			Value:   base,
			Message: "must not be empty",
		})
	} else if !branchNameRegex.MatchString(base) || strings.Contains(base, "..") {
		errors = append(errors, ValidationError{
			Field:   "defaults.base_branch",
			Value:   base,
			Message: "is not a valid branch name",
		})
	}

	if !slices.Contains(ValidStrategies(), c.Defaults.Strategy) {
		errors = append(errors, ValidationError{
			Field:   "defaults.strategy",
			Value:   c.Defaults.Strategy,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStrategies(), ", ")),
		})
	}

	return errors
}

func (c *Config) validatePR() []ValidationError {
	var errors []ValidationError

	for pattern, reviewers := range c.PR.Reviewers.ByPath {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errors = append(errors, ValidationError{
				Field:   "pr.reviewers.by_path",
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
		if len(reviewers) == 0 {
			errors = append(errors, ValidationError{
				Field:   "pr.reviewers.by_path",
				Value:   pattern,
				Message: "must list at least one reviewer",
			})
		}
	}

	for _, label := range c.PR.Labels {
		if strings.TrimSpace(label) == "" {
			errors = append(errors, ValidationError{
				Field:   "pr.labels",
				Value:   label,
				Message: "labels must not be blank",
			})
			break
		}
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
