package config

import (
	"fmt"
	"slices"
	"strings"
)

// problems collects validation failures so they are reported together.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		p.addf(format, args...)
	}
}

// Validate checks the configuration and reports every failure at once.
func (c *Config) Validate() error {
	var p problems

	c.Database.validate(&p)
	c.Server.validate(&p)
	c.Import.validate(&p)
	c.Progress.validate(&p)
	c.Rate.validate(&p)
	c.Security.validate(&p)
	p.check(len(c.Notify.KafkaBrokers) == 0 || c.Notify.KafkaTopic != "",
		"NOTIFY_KAFKA_TOPIC must be set when NOTIFY_KAFKA_BROKERS is configured")
	c.Logging.validate(&p)

	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
}

func (d *DatabaseConfig) validate(p *problems) {
	p.check(d.URL != "", "DATABASE_URL is required")
	p.check(d.MaxConns > 0, "DB_MAX_CONNS must be positive")
	p.check(d.MinConns >= 0, "DB_MIN_CONNS must be non-negative")
	p.check(d.MaxConns >= d.MinConns,
		"DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", d.MaxConns, d.MinConns)
}

func (s *ServerConfig) validate(p *problems) {
	p.check(s.Port > 0 && s.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", s.Port)
	p.check(s.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.check(s.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")
}

func (i *ImportConfig) validate(p *problems) {
	p.check(i.PerStep > 0, "IMPORT_PER_STEP must be positive")
	p.check(i.UploadDir != "", "IMPORT_UPLOAD_DIR must not be empty")
	p.check(i.MaxFileSize > 0, "IMPORT_MAX_FILE_SIZE must be positive")
	p.check(i.MaxConcurrent > 0, "IMPORT_MAX_CONCURRENT must be positive")
	p.check(i.MaxWaitTime > 0, "IMPORT_MAX_WAIT_TIME must be positive")
	p.check(i.StepTimeout > 0, "IMPORT_STEP_TIMEOUT must be positive")
}

var progressBackends = []string{"postgres", "memory", "sqlite", "mysql"}

func (pc *ProgressConfig) validate(p *problems) {
	backend := strings.ToLower(pc.Backend)
	if !slices.Contains(progressBackends, backend) {
		p.addf("PROGRESS_BACKEND (%q) must be one of: %s", pc.Backend, strings.Join(progressBackends, ", "))
		return
	}
	if backend == "sqlite" || backend == "mysql" {
		p.check(pc.DSN != "", "PROGRESS_DSN is required for PROGRESS_BACKEND=%s", pc.Backend)
	}
}

func (r *RateLimitConfig) validate(p *problems) {
	if !r.Enabled {
		return
	}
	p.check(r.RequestsPerMinute > 0, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	p.check(r.UploadLimit > 0, "RATE_LIMIT_UPLOAD must be positive when rate limiting is enabled")
}

func (s *SecurityConfig) validate(p *problems) {
	p.check(!s.RequireAPIKey || len(s.APIKeys) > 0,
		"REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	for _, entry := range s.APIKeys {
		if name, key, ok := strings.Cut(entry, ":"); !ok || name == "" || key == "" {
			p.addf("API_KEYS entries must use the name:key format")
			break
		}
	}
}

func (l *LoggingConfig) validate(p *problems) {
	level := strings.ToLower(l.Level)
	p.check(slices.Contains([]string{"debug", "info", "warn", "error"}, level),
		"LOG_LEVEL (%q) must be one of: debug, info, warn, error", l.Level)
	format := strings.ToLower(l.Format)
	p.check(format == "text" || format == "json",
		"LOG_FORMAT (%q) must be one of: text, json", l.Format)
}

// KeyPrincipals maps each well-formed name:key entry of API_KEYS from key to
// principal name.
func (s *SecurityConfig) KeyPrincipals() map[string]string {
	keys := make(map[string]string, len(s.APIKeys))
	for _, entry := range s.APIKeys {
		name, key, ok := strings.Cut(entry, ":")
		if !ok || name == "" || key == "" {
			continue
		}
		keys[key] = name
	}
	return keys
}

// String renders the configuration for logs with connection strings and
// keys masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Server: {Host: %q, Port: %d}, "+
		"Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, "+
		"Import: {PerStep: %d, MaxFileSize: %d, MaxConcurrent: %d}, "+
		"Progress: {Backend: %q, DSN: [MASKED]}, "+
		"Rate: {Enabled: %v, RequestsPerMinute: %d}, "+
		"Security: {RequireAPIKey: %v, APIKeys: %d}, "+
		"Logging: {Level: %q, Format: %q}}",
		c.Server.Host, c.Server.Port,
		c.Database.MaxConns, c.Database.MinConns,
		c.Import.PerStep, c.Import.MaxFileSize, c.Import.MaxConcurrent,
		c.Progress.Backend,
		c.Rate.Enabled, c.Rate.RequestsPerMinute,
		c.Security.RequireAPIKey, len(c.Security.APIKeys),
		c.Logging.Level, c.Logging.Format)
}
