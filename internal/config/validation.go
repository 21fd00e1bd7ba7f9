package config

import (
	"fmt"
	"path/filepath"
	"strings"

	previewerrors "github.com/conneroisu/sfcpreview/internal/errors"
	"github.com/conneroisu/sfcpreview/internal/logging"
	"github.com/conneroisu/sfcpreview/internal/validation"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}
	write("Validation errors", vr.Errors)
	write("Validation warnings", vr.Warnings)

	return builder.String()
}

// Validate returns a config error describing the first invalid setting.
func Validate(config *Config) error {
	result := ValidateWithDetails(config)
	if !result.HasErrors() {
		return nil
	}
	first := result.Errors[0]
	return previewerrors.NewConfigError(previewerrors.ErrCodeConfigInvalid, first.Error()).
		WithContext("field", first.Field).
		WithContext("value", first.Value)
}

// ValidateWithDetails checks every section and collects errors and warnings.
func ValidateWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{}

	validateServer(&config.Server, result)
	validateComponents(&config.Components, result)
	validatePreview(&config.Preview, result)
	validateDevelopment(&config.Development, result)
	validateLog(&config.Log, result)

	return result
}

func validateServer(config *ServerConfig, result *ValidationResult) {
	if config.Port < 0 || config.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.port",
			Value:   config.Port,
			Message: fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			Suggestions: []string{
				"Common development ports: 3000, 5173, 8080",
				"Port 0 lets the system assign an available port",
			},
		})
	} else if config.Port > 0 && config.Port < 1024 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "server.port",
			Value:   config.Port,
			Message: "port below 1024 requires elevated privileges",
		})
	}

	if strings.ContainsAny(config.Host, ";&|$`()<>\"'\\ ") {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "server.host",
			Value:       config.Host,
			Message:     "host contains invalid characters",
			Suggestions: []string{"Use 'localhost' for local development", "Use '0.0.0.0' to bind to all interfaces"},
		})
	}

	for _, origin := range config.AllowedOrigins {
		if err := validation.ValidateOriginFormat(origin); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:       "server.allowed_origins",
				Value:       origin,
				Message:     err.Error(),
				Suggestions: []string{"Origins look like 'http://localhost:5173'"},
			})
		}
	}

	switch config.Environment {
	case "", "development", "production", "testing":
	default:
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "server.environment",
			Value:   config.Environment,
			Message: "unknown environment type",
		})
	}
}

func validateComponents(config *ComponentsConfig, result *ValidationResult) {
	if config.Root == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "components.root",
			Value:       config.Root,
			Message:     "component root cannot be empty",
			Suggestions: []string{"Use '.' for the current directory"},
		})
	}

	if !strings.HasPrefix(config.Extension, ".") || len(config.Extension) < 2 {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "components.extension",
			Value:       config.Extension,
			Message:     "extension must start with a dot",
			Suggestions: []string{"Use '.vue' for single-file components"},
		})
	}

	if config.CompanionSuffix == "" || strings.ContainsAny(config.CompanionSuffix, `/\`) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "components.companion_suffix",
			Value:   config.CompanionSuffix,
			Message: "companion suffix must be a non-empty file name suffix",
		})
	}

	for _, pattern := range config.ExcludePatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "components.exclude_patterns",
				Value:   pattern,
				Message: fmt.Sprintf("invalid pattern '%s': %v", pattern, err),
			})
		}
	}
}

func validatePreview(config *PreviewConfig, result *ValidationResult) {
	if config.CacheSize <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "preview.cache_size",
			Value:   config.CacheSize,
			Message: "cache size must be positive",
		})
	}

	if config.AnalysisTimeout <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "preview.analysis_timeout",
			Value:       config.AnalysisTimeout,
			Message:     "analysis timeout must be positive",
			Suggestions: []string{"Use a duration such as '2s'"},
		})
	}

	if config.ScanWorkers <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "preview.scan_workers",
			Value:   config.ScanWorkers,
			Message: "scan workers must be positive",
		})
	}

	if len(config.SetupFiles) == 0 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "preview.setup_files",
			Message: "no setup files configured, the default Vue app factory is always used",
		})
	}
	for _, name := range config.SetupFiles {
		if name == "" || filepath.IsAbs(name) || strings.Contains(filepath.Clean(name), "..") {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "preview.setup_files",
				Value:   name,
				Message: "setup files must be relative to the component root",
			})
		}
	}

	if config.DefaultDevice == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "preview.default_device",
			Message: "default device cannot be empty",
		})
	}
}

func validateDevelopment(config *DevelopmentConfig, result *ValidationResult) {
	if config.Debounce < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "development.debounce",
			Value:   config.Debounce,
			Message: "debounce cannot be negative",
		})
	}
}

func validateLog(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "log.level",
			Value:       config.Level,
			Message:     err.Error(),
			Suggestions: []string{"Use one of debug, info, warn, error"},
		})
	}

	switch config.Format {
	case "text", "json":
	default:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "log.format",
			Value:   config.Format,
			Message: "log format must be 'text' or 'json'",
		})
	}
}
