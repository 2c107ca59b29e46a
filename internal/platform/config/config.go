package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects logging verbosity. It is the only environment-sensitive input
// to the fault and audit core.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// Server captures process level configuration.
type Server struct {
	Mode      Mode            `yaml:"mode"`
	Addr      string          `yaml:"addr"`
	Errors    ErrorLogConfig  `yaml:"errors"`
	Audit     AuditLogConfig  `yaml:"audit"`
	Forwarder ForwarderConfig `yaml:"forwarder"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
}

// ErrorLogConfig sizes the in-memory error log and its cleanup.
type ErrorLogConfig struct {
	Capacity        int           `yaml:"capacity"`
	Retention       time.Duration `yaml:"retention"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	RetryHintDelay  time.Duration `yaml:"retry_hint_delay"`
}

// AuditLogConfig sizes the security audit log and tunes the suspicious
// activity heuristic.
type AuditLogConfig struct {
	Capacity            int           `yaml:"capacity"`
	Retention           time.Duration `yaml:"retention"`
	CleanupInterval     time.Duration `yaml:"cleanup_interval"`
	SuspiciousWindow    int           `yaml:"suspicious_window"`
	SuspiciousThreshold int           `yaml:"suspicious_threshold"`
	DetectorRole        string        `yaml:"detector_role"`
}

// ForwarderConfig controls how audit events are shipped to durable sinks.
type ForwarderConfig struct {
	BufferSize int           `yaml:"buffer_size"`
	BatchSize  int           `yaml:"batch_size"`
	Interval   time.Duration `yaml:"interval"`
}

// RedisConfig configures the alert publisher connection. An empty URL
// disables Redis alerting.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig configures the audit event sink. An empty URL disables it.
type PostgresConfig struct {
	URL          string        `yaml:"url"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	ConnMaxIdle  time.Duration `yaml:"conn_max_idle"`
}

// KafkaConfig configures the audit event topic. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Server {
	return Server{
		Mode: ModeDevelopment,
		Addr: ":8080",
		Errors: ErrorLogConfig{
			Capacity:        5000,
			Retention:       168 * time.Hour,
			CleanupInterval: time.Hour,
			RetryHintDelay:  2 * time.Second,
		},
		Audit: AuditLogConfig{
			Capacity:            10000,
			Retention:           30 * 24 * time.Hour,
			CleanupInterval:     6 * time.Hour,
			SuspiciousWindow:    10,
			SuspiciousThreshold: 5,
			DetectorRole:        "system",
		},
		Forwarder: ForwarderConfig{
			BufferSize: 10000,
			BatchSize:  100,
			Interval:   time.Second,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Postgres: PostgresConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			ConnMaxIdle:  5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Topic: "security-events",
		},
	}
}

// FromEnv builds the Server config: defaults, then the YAML file named by
// COURTSIDE_CONFIG (if any), then individual environment variables.
func FromEnv() (Server, error) {
	cfg := Default()
	if path := os.Getenv("COURTSIDE_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Server{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Server{}, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the core cannot run with.
func (s Server) Validate() error {
	var errs []error
	if s.Mode != ModeDevelopment && s.Mode != ModeProduction {
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModeDevelopment, ModeProduction, s.Mode))
	}
	if s.Errors.Retention <= 0 {
		errs = append(errs, errors.New("error retention must be positive"))
	}
	if s.Audit.Retention <= 0 {
		errs = append(errs, errors.New("audit retention must be positive"))
	}
	if s.Audit.SuspiciousThreshold <= 0 || s.Audit.SuspiciousThreshold > s.Audit.SuspiciousWindow {
		errs = append(errs, fmt.Errorf("suspicious threshold %d must be within window %d", s.Audit.SuspiciousThreshold, s.Audit.SuspiciousWindow))
	}
	return errors.Join(errs...)
}

func (s *Server) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), s); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (s *Server) applyEnv(lookup lookupFunc) error {
	p := envParser{lookup: lookup}

	if v, ok := p.str("COURTSIDE_ENV"); ok {
		s.Mode = Mode(strings.ToLower(v))
	}
	p.setString("COURTSIDE_ADDR", &s.Addr)

	p.setInt("ERROR_LOG_CAPACITY", &s.Errors.Capacity)
	p.setDuration("ERROR_RETENTION", &s.Errors.Retention)
	p.setDuration("ERROR_CLEANUP_INTERVAL", &s.Errors.CleanupInterval)
	p.setDuration("RETRY_HINT_DELAY", &s.Errors.RetryHintDelay)

	p.setInt("AUDIT_LOG_CAPACITY", &s.Audit.Capacity)
	p.setDuration("AUDIT_RETENTION", &s.Audit.Retention)
	p.setDuration("AUDIT_CLEANUP_INTERVAL", &s.Audit.CleanupInterval)
	p.setInt("SUSPICIOUS_WINDOW", &s.Audit.SuspiciousWindow)
	p.setInt("SUSPICIOUS_THRESHOLD", &s.Audit.SuspiciousThreshold)
	p.setString("DETECTOR_ROLE", &s.Audit.DetectorRole)

	p.setInt("FORWARD_BUFFER", &s.Forwarder.BufferSize)
	p.setInt("FORWARD_BATCH", &s.Forwarder.BatchSize)
	p.setDuration("FORWARD_INTERVAL", &s.Forwarder.Interval)

	p.setString("REDIS_URL", &s.Redis.URL)
	p.setString("DATABASE_URL", &s.Postgres.URL)
	if v, ok := p.str("KAFKA_BROKERS"); ok {
		s.Kafka.Brokers = splitList(v)
	}
	p.setString("KAFKA_TOPIC", &s.Kafka.Topic)

	return errors.Join(p.errs...)
}

type envParser struct {
	lookup lookupFunc
	errs   []error
}

func (p *envParser) str(key string) (string, bool) {
	v, ok := p.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p *envParser) setString(key string, dst *string) {
	if v, ok := p.str(key); ok {
		*dst = v
	}
}

func (p *envParser) setInt(key string, dst *int) {
	v, ok := p.str(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func (p *envParser) setDuration(key string, dst *time.Duration) {
	v, ok := p.str(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}

func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
