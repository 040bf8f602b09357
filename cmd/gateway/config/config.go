// Package config reads gateway settings from the environment.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// GatewayConfig holds the public HTTP listener settings.
type GatewayConfig struct {
	Addr              string
	RateLimitInterval time.Duration
	RateLimitBurst    int
}

// CollaboratorsConfig holds the base URLs of the five downstream
// services. All five are set or none are; a partial set is a
// deployment mistake, not a mode.
type CollaboratorsConfig struct {
	AuthURL      string
	CustomerURL  string
	InventoryURL string
	PaymentURL   string
	OrderURL     string
}

// BreakerConfig holds circuit breaker settings for downstream calls.
type BreakerConfig struct {
	MaxFailures  int
	ResetTimeout time.Duration
}

// ObservabilityConfig holds the HTTP address for the metrics endpoint.
type ObservabilityConfig struct {
	Addr string
}

// RedisConfig holds Redis connection and event stream settings.
type RedisConfig struct {
	URL                string
	Stream             string
	DialTimeout        *time.Duration
	ReadTimeout        *time.Duration
	WriteTimeout       *time.Duration
	PoolSize           *int
	MinIdleConns       *int
	MaxRetries         *int
	HealthcheckTimeout time.Duration
	EventTTL           time.Duration
	StreamMaxLen       int64
	EnableOTel         bool
	TLSConfig          *tls.Config
}

// LoadGateway reads the listener settings. GATEWAY_ADDR defaults to
// :9080; rate limiting is off unless both knobs are set.
func LoadGateway() (GatewayConfig, error) {
	cfg := GatewayConfig{Addr: strings.TrimSpace(os.Getenv("GATEWAY_ADDR"))}
	if cfg.Addr == "" {
		cfg.Addr = ":9080"
	}

	interval, err := optionalDuration("RATE_LIMIT_INTERVAL")
	if err != nil {
		return cfg, err
	}
	burst, err := optionalInt("RATE_LIMIT_BURST")
	if err != nil {
		return cfg, err
	}
	if (interval == nil) != (burst == nil) {
		return cfg, errors.New("RATE_LIMIT_INTERVAL and RATE_LIMIT_BURST must be set together")
	}
	if interval != nil {
		cfg.RateLimitInterval = *interval
		cfg.RateLimitBurst = *burst
	}

	return cfg, nil
}

// LoadCollaborators reads the downstream service URLs. The second
// return is false when no URLs are configured at all, which selects
// the in-memory collaborators.
func LoadCollaborators() (CollaboratorsConfig, bool, error) {
	names := []string{
		"AUTH_SERVICE_URL",
		"CUSTOMER_SERVICE_URL",
		"INVENTORY_SERVICE_URL",
		"PAYMENT_SERVICE_URL",
		"ORDER_SERVICE_URL",
	}

	values := make(map[string]string, len(names))
	set := 0
	for _, name := range names {
		val := strings.TrimSpace(os.Getenv(name))
		values[name] = val
		if val != "" {
			set++
		}
	}

	if set == 0 {
		return CollaboratorsConfig{}, false, nil
	}
	if set != len(names) {
		var missing []string
		for _, name := range names {
			if values[name] == "" {
				missing = append(missing, name)
			}
		}
		return CollaboratorsConfig{}, false, fmt.Errorf("collaborator URLs must be set together; missing %s", strings.Join(missing, ", "))
	}

	return CollaboratorsConfig{
		AuthURL:      values["AUTH_SERVICE_URL"],
		CustomerURL:  values["CUSTOMER_SERVICE_URL"],
		InventoryURL: values["INVENTORY_SERVICE_URL"],
		PaymentURL:   values["PAYMENT_SERVICE_URL"],
		OrderURL:     values["ORDER_SERVICE_URL"],
	}, true, nil
}

// LoadBreaker reads circuit breaker settings. The second return is
// false when the breaker is not configured.
func LoadBreaker() (BreakerConfig, bool, error) {
	maxFailures, err := optionalInt("CB_MAX_FAILURES")
	if err != nil {
		return BreakerConfig{}, false, err
	}
	resetTimeout, err := optionalDuration("CB_RESET_TIMEOUT")
	if err != nil {
		return BreakerConfig{}, false, err
	}
	if (maxFailures == nil) != (resetTimeout == nil) {
		return BreakerConfig{}, false, errors.New("CB_MAX_FAILURES and CB_RESET_TIMEOUT must be set together")
	}
	if maxFailures == nil {
		return BreakerConfig{}, false, nil
	}
	return BreakerConfig{
		MaxFailures:  *maxFailures,
		ResetTimeout: *resetTimeout,
	}, true, nil
}

// LoadObservability reads the metrics HTTP address. An empty OBS_ADDR
// disables the metrics server.
func LoadObservability() ObservabilityConfig {
	return ObservabilityConfig{Addr: strings.TrimSpace(os.Getenv("OBS_ADDR"))}
}

// LoadRedis reads Redis settings. The second return is false when
// REDIS_URL is unset and the event store is disabled.
func LoadRedis() (RedisConfig, bool, error) {
	cfg := RedisConfig{
		URL:    strings.TrimSpace(os.Getenv("REDIS_URL")),
		Stream: strings.TrimSpace(os.Getenv("REDIS_STREAM")),
	}
	if cfg.URL == "" {
		return cfg, false, nil
	}

	var err error
	if cfg.DialTimeout, err = optionalDuration("REDIS_DIAL_TIMEOUT"); err != nil {
		return cfg, false, err
	}
	if cfg.ReadTimeout, err = optionalDuration("REDIS_READ_TIMEOUT"); err != nil {
		return cfg, false, err
	}
	if cfg.WriteTimeout, err = optionalDuration("REDIS_WRITE_TIMEOUT"); err != nil {
		return cfg, false, err
	}
	if cfg.PoolSize, err = optionalInt("REDIS_POOL_SIZE"); err != nil {
		return cfg, false, err
	}
	if cfg.MinIdleConns, err = optionalInt("REDIS_MIN_IDLE_CONNS"); err != nil {
		return cfg, false, err
	}
	if cfg.MaxRetries, err = optionalInt("REDIS_MAX_RETRIES"); err != nil {
		return cfg, false, err
	}

	healthcheck, err := optionalDuration("REDIS_HEALTHCHECK_TIMEOUT")
	if err != nil {
		return cfg, false, err
	}
	if healthcheck != nil {
		cfg.HealthcheckTimeout = *healthcheck
	}

	ttl, err := optionalDuration("REDIS_EVENT_TTL")
	if err != nil {
		return cfg, false, err
	}
	if ttl != nil {
		cfg.EventTTL = *ttl
	}

	maxLen, err := optionalInt64("REDIS_STREAM_MAXLEN")
	if err != nil {
		return cfg, false, err
	}
	if maxLen != nil {
		cfg.StreamMaxLen = *maxLen
	}

	if cfg.EnableOTel, err = optionalBool("REDIS_OTEL"); err != nil {
		return cfg, false, err
	}

	if cfg.TLSConfig, err = loadRedisTLSFromEnv(); err != nil {
		return cfg, false, err
	}

	return cfg, true, nil
}

func loadRedisTLSFromEnv() (*tls.Config, error) {
	caFile := strings.TrimSpace(os.Getenv("REDIS_TLS_CA_FILE"))
	certFile := strings.TrimSpace(os.Getenv("REDIS_TLS_CERT_FILE"))
	keyFile := strings.TrimSpace(os.Getenv("REDIS_TLS_KEY_FILE"))
	serverName := strings.TrimSpace(os.Getenv("REDIS_TLS_SERVER_NAME"))
	insecureStr := strings.TrimSpace(os.Getenv("REDIS_TLS_INSECURE_SKIP_VERIFY"))

	if caFile == "" && certFile == "" && keyFile == "" && serverName == "" && insecureStr == "" {
		return nil, nil
	}
	if (certFile == "") != (keyFile == "") {
		return nil, errors.New("REDIS_TLS_CERT_FILE and REDIS_TLS_KEY_FILE must be set together")
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: serverName,
	}

	if insecureStr != "" {
		insecure, err := strconv.ParseBool(insecureStr)
		if err != nil {
			return nil, fmt.Errorf("REDIS_TLS_INSECURE_SKIP_VERIFY: %w", err)
		}
		tlsConfig.InsecureSkipVerify = insecure
	}

	if caFile != "" {
		pemData, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read REDIS_TLS_CA_FILE: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, errors.New("REDIS_TLS_CA_FILE contains no valid certificates")
		}
		tlsConfig.RootCAs = pool
	}

	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load redis TLS keypair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func optionalDuration(name string) (*time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalInt(name string) (*int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalInt64(name string) (*int64, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalBool(name string) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return val, nil
}
