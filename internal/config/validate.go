package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/joss/mplan/internal/logging"
)

// Formats lists the accepted plan output formats.
var Formats = []string{"text", "json", "yaml"}

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every invalid setting.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:", len(e))
	for _, err := range e {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if strings.TrimSpace(c.Graph.URI) == "" {
		add("graph.uri", c.Graph.URI, "must not be empty")
	}
	if c.Graph.Retries < 1 {
		add("graph.retries", c.Graph.Retries, "must be at least 1")
	}
	if c.Graph.CacheSize < 1 {
		add("graph.cache_size", c.Graph.CacheSize, "must be at least 1")
	}
	if c.Graph.CacheTTLSeconds < 0 {
		add("graph.cache_ttl_seconds", c.Graph.CacheTTLSeconds, "must not be negative")
	}
	if c.Plan.MinClusterWeight < 0 {
		add("plan.min_cluster_weight", c.Plan.MinClusterWeight, "must not be negative")
	}
	if !slices.Contains(Formats, c.Plan.Format) {
		add("plan.format", c.Plan.Format, "must be one of "+strings.Join(Formats, ", "))
	}
	if c.Server.Addr == "" {
		add("server.addr", c.Server.Addr, "must not be empty")
	}
	if c.History.Path == "" {
		add("history.path", c.History.Path, "must not be empty")
	}
	if c.History.Limit < 0 {
		add("history.limit", c.History.Limit, "must not be negative")
	}
	if !logging.ValidLevel(c.Logging.Level) {
		add("logging.level", c.Logging.Level, "must be one of debug, info, warn, error")
	}
	return errs
}
