package configloader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"deploy_networks/internal/app/port"
	"deploy_networks/internal/domain/entity"
	networkdefinition "deploy_networks/internal/infrastructure/network/definition"
	"deploy_networks/internal/infrastructure/networksdir"
	"deploy_networks/internal/infrastructure/secretscan"
	"deploy_networks/internal/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "DEPLOY_NETWORKS_"

const builtinSource = "built-in"

var (
	validName   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
	validEnvVar = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

var supportedProtocols = map[string]struct{}{
	"http":  {},
	"https": {},
	"ws":    {},
	"wss":   {},
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// ServerConfig holds configuration of the read-only HTTP API.
type ServerConfig struct {
	Port                string `yaml:"port"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	IdleTimeoutSeconds  int    `yaml:"idle_timeout_seconds"`
}

// PerformanceConfig holds transport and concurrency settings.
type PerformanceConfig struct {
	MaxConcurrentRoutines int     `yaml:"max_concurrent_routines"`
	RPCCallTimeoutSeconds int     `yaml:"rpc_call_timeout_seconds"`
	DialTimeoutSeconds    int     `yaml:"dial_timeout_seconds"`
	DialRatePerSecond     float64 `yaml:"dial_rate_per_second"`
	DialBurst             int     `yaml:"dial_burst"`
	TransportTTLMinutes   int     `yaml:"transport_ttl_minutes"`
	VerifyChainID         bool    `yaml:"verify_chain_id"`
}

// Config is the top-level configuration structure. It is built once by Load
// and treated as immutable afterwards.
type Config struct {
	Networks    map[string]entity.NetworkProfile `yaml:"networks"`
	TestRunner  map[string]any                   `yaml:"test_runner"` // Passed through to the test harness untouched
	NetworksDir string                           `yaml:"networks_dir"`
	Logging     LoggingConfig                    `yaml:"logging"`
	Server      ServerConfig                     `yaml:"server"`
	Performance PerformanceConfig                `yaml:"performance"`
}

// Options select the configuration sources. Pointer fields override the
// file and environment when non-nil.
type Options struct {
	ConfigFile  string
	NetworksDir *string
	LogLevel    *string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
	// Logger defaults to a no-op logger.
	Logger port.Logger
}

// snapshot is the version-controllable part of Config.
type snapshot struct {
	Networks   map[string]entity.NetworkProfile `yaml:"networks"`
	TestRunner map[string]any                   `yaml:"test_runner"`
}

// Load builds the configuration with precedence:
// built-in defaults < YAML file < networks directory < environment < Options overrides.
// All validation problems are returned together.
func Load(opts Options) (*Config, error) {
	lookupEnv := opts.LookupEnv
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	cfg := defaultConfig()
	sources := make(map[string]string, len(cfg.Networks))
	for name := range cfg.Networks {
		sources[name] = builtinSource
	}

	if opts.ConfigFile != "" {
		if err := applyFile(cfg, sources, opts.ConfigFile); err != nil {
			return nil, err
		}
	}

	if v, ok := lookupEnv(EnvPrefix + "NETWORKS_DIR"); ok && strings.TrimSpace(v) != "" {
		cfg.NetworksDir = strings.TrimSpace(v)
	}
	if v, ok := lookupEnv(EnvPrefix + "LOG_LEVEL"); ok && strings.TrimSpace(v) != "" {
		cfg.Logging.Level = strings.TrimSpace(v)
	}
	if opts.NetworksDir != nil {
		cfg.NetworksDir = *opts.NetworksDir
	}
	if opts.LogLevel != nil && *opts.LogLevel != "" {
		cfg.Logging.Level = *opts.LogLevel
	}

	if cfg.NetworksDir != "" {
		if err := applyNetworksDir(cfg, sources, log); err != nil {
			return nil, err
		}
	}

	envErr := applyEnvConfig(cfg, lookupEnv)
	normalize(cfg)
	applyDefaults(cfg)

	if err := errors.Join(envErr, validateConfig(cfg)); err != nil {
		return nil, err
	}
	// Decoded values can carry a key the raw-text scan could not see.
	if _, err := cfg.Snapshot(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultConfig returns a Config holding the built-in networks.
func defaultConfig() *Config {
	return &Config{
		Networks:   networkdefinition.DefaultProfiles(),
		TestRunner: map[string]any{},
	}
}

// applyFile merges a YAML file. A file network replaces the built-in network of the same name.
func applyFile(cfg *Config, sources map[string]string, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if findings := secretscan.ScanBytes(data); len(findings) > 0 {
		return &entity.InvalidCredentialError{
			Reason: fmt.Sprintf("%s:%d contains a private key literal; reference it with signer.credential_env instead", path, findings[0].Line),
		}
	}

	var fileCfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	for name, profile := range fileCfg.Networks {
		cfg.Networks[name] = profile
		sources[name] = path
	}
	if fileCfg.TestRunner != nil {
		cfg.TestRunner = fileCfg.TestRunner
	}
	cfg.NetworksDir = fileCfg.NetworksDir
	if cfg.NetworksDir != "" && !filepath.IsAbs(cfg.NetworksDir) {
		cfg.NetworksDir = filepath.Join(filepath.Dir(path), cfg.NetworksDir)
	}
	cfg.Logging = fileCfg.Logging
	cfg.Server = fileCfg.Server
	cfg.Performance = fileCfg.Performance
	return nil
}

// applyNetworksDir adds networks from per-network JSON files. They may only introduce new names.
func applyNetworksDir(cfg *Config, sources map[string]string, log port.Logger) error {
	loaded, err := networksdir.Load(cfg.NetworksDir, log)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(loaded))
	for name := range loaded {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		src := loaded[name]
		if prev, exists := sources[name]; exists {
			return &entity.DuplicateProfileError{Name: name, Sources: []string{prev, src.Path}}
		}
		cfg.Networks[name] = src.Profile
		sources[name] = src.Path
	}
	return nil
}

// applyEnvConfig applies per-network environment overrides such as DEPLOY_NETWORKS_QUAITESTNET_HOST.
func applyEnvConfig(cfg *Config, lookupEnv func(string) (string, bool)) error {
	var errs []error
	for _, name := range sortedNames(cfg.Networks) {
		profile := cfg.Networks[name]
		prefix := EnvPrefix + EnvName(name) + "_"

		if v, ok := lookupEnv(prefix + "HOST"); ok && strings.TrimSpace(v) != "" {
			profile.Host = strings.TrimSpace(v)
		}
		if v, ok := lookupEnv(prefix + "PROTOCOL"); ok && strings.TrimSpace(v) != "" {
			profile.Protocol = strings.TrimSpace(v)
		}
		if v, ok := lookupEnv(prefix + "FROM"); ok && strings.TrimSpace(v) != "" {
			profile.From = strings.TrimSpace(v)
		}
		if v, ok := lookupEnv(prefix + "PORT"); ok && strings.TrimSpace(v) != "" {
			portNum, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, &entity.InvalidFieldError{Profile: name, Field: "port", Value: v, Reason: "environment value " + prefix + "PORT is not an integer"})
			} else {
				profile.Port = portNum
			}
		}
		if v, ok := lookupEnv(prefix + "NETWORK_ID"); ok && strings.TrimSpace(v) != "" {
			id, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
			if err != nil {
				errs = append(errs, &entity.InvalidFieldError{Profile: name, Field: "network_id", Value: v, Reason: "environment value " + prefix + "NETWORK_ID is not a positive integer"})
			} else {
				profile.NetworkID = id
			}
		}
		if v, ok := lookupEnv(prefix + "GAS"); ok && strings.TrimSpace(v) != "" {
			gas, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
			if err != nil {
				errs = append(errs, &entity.InvalidFieldError{Profile: name, Field: "gas", Value: v, Reason: "environment value " + prefix + "GAS is not a positive integer"})
			} else {
				profile.Gas = gas
			}
		}
		if v, ok := lookupEnv(prefix + "WEBSOCKET"); ok && strings.TrimSpace(v) != "" {
			ws, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, &entity.InvalidFieldError{Profile: name, Field: "websocket", Value: v, Reason: "environment value " + prefix + "WEBSOCKET is not a boolean"})
			} else {
				profile.WebSocket = ws
			}
		}

		cfg.Networks[name] = profile
	}
	return errors.Join(errs...)
}

// normalize fills derived profile values: name, default protocol, checksummed sender.
func normalize(cfg *Config) {
	for name, profile := range cfg.Networks {
		profile.Name = name
		profile.Protocol = strings.ToLower(profile.Protocol)
		if profile.Protocol == "" {
			profile.Protocol = entity.DefaultProtocol
		}
		if common.IsHexAddress(profile.From) {
			profile.From = common.HexToAddress(profile.From).Hex()
		}
		cfg.Networks[name] = profile
	}
	if cfg.TestRunner == nil {
		cfg.TestRunner = map[string]any{}
	}
}

// applyDefaults fills unset operational settings.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.ReadTimeoutSeconds <= 0 {
		cfg.Server.ReadTimeoutSeconds = 5
	}
	if cfg.Server.WriteTimeoutSeconds <= 0 {
		cfg.Server.WriteTimeoutSeconds = 10
	}
	if cfg.Server.IdleTimeoutSeconds <= 0 {
		cfg.Server.IdleTimeoutSeconds = 60
	}
	if cfg.Performance.MaxConcurrentRoutines <= 0 {
		cfg.Performance.MaxConcurrentRoutines = 4
	}
	if cfg.Performance.RPCCallTimeoutSeconds <= 0 {
		cfg.Performance.RPCCallTimeoutSeconds = 10
	}
	if cfg.Performance.DialTimeoutSeconds <= 0 {
		cfg.Performance.DialTimeoutSeconds = 10
	}
	if cfg.Performance.DialRatePerSecond <= 0 {
		cfg.Performance.DialRatePerSecond = 5
	}
	if cfg.Performance.DialBurst <= 0 {
		cfg.Performance.DialBurst = 1
	}
	if cfg.Performance.TransportTTLMinutes <= 0 {
		cfg.Performance.TransportTTLMinutes = 30
	}
}

// validateConfig checks every profile and reports all problems in name order.
func validateConfig(cfg *Config) error {
	var errs []error
	byEnvName := make(map[string][]string, len(cfg.Networks))
	for _, name := range sortedNames(cfg.Networks) {
		errs = append(errs, ValidateProfile(cfg.Networks[name])...)
		byEnvName[EnvName(name)] = append(byEnvName[EnvName(name)], name)
	}
	segments := make([]string, 0, len(byEnvName))
	for segment := range byEnvName {
		segments = append(segments, segment)
	}
	sort.Strings(segments)
	for _, segment := range segments {
		if names := byEnvName[segment]; len(names) > 1 {
			errs = append(errs, &entity.EnvNameCollisionError{Prefix: EnvPrefix + segment + "_", Profiles: names})
		}
	}
	return errors.Join(errs...)
}

// ValidateProfile returns every problem with a single profile.
func ValidateProfile(p entity.NetworkProfile) []error {
	var errs []error
	if !validName.MatchString(p.Name) {
		errs = append(errs, &entity.InvalidFieldError{Profile: p.Name, Field: "name", Value: p.Name, Reason: "must start with a letter or digit and contain only letters, digits, '-' and '_'"})
	}
	if strings.TrimSpace(p.Host) == "" {
		errs = append(errs, &entity.MissingFieldError{Profile: p.Name, Field: "host"})
	}
	switch {
	case p.Port == 0:
		errs = append(errs, &entity.MissingFieldError{Profile: p.Name, Field: "port"})
	case p.Port < 0 || p.Port > 65535:
		errs = append(errs, &entity.InvalidFieldError{Profile: p.Name, Field: "port", Value: strconv.Itoa(p.Port), Reason: "must be between 1 and 65535"})
	}
	if p.NetworkID == 0 {
		errs = append(errs, &entity.MissingFieldError{Profile: p.Name, Field: "network_id"})
	}
	if _, ok := supportedProtocols[p.Protocol]; !ok {
		errs = append(errs, &entity.InvalidFieldError{Profile: p.Name, Field: "protocol", Value: p.Protocol, Reason: "must be one of http, https, ws, wss"})
	}
	if p.From != "" && !common.IsHexAddress(p.From) {
		errs = append(errs, &entity.InvalidFieldError{Profile: p.Name, Field: "from", Value: p.From, Reason: "must be a 20-byte hex address"})
	}
	if p.Signer != nil && p.Signer.CredentialEnv != "" && !validEnvVar.MatchString(p.Signer.CredentialEnv) {
		errs = append(errs, &entity.InvalidFieldError{Profile: p.Name, Field: "signer.credential_env", Value: p.Signer.CredentialEnv, Reason: "must be an environment variable name"})
	}
	return errs
}

// Snapshot serializes the networks and test runner options deterministically.
// It refuses to produce output holding a private key literal.
func (c *Config) Snapshot() ([]byte, error) {
	out, err := yaml.Marshal(snapshot{Networks: c.Networks, TestRunner: c.TestRunner})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal configuration snapshot: %w", err)
	}
	if findings := secretscan.ScanBytes(out); len(findings) > 0 {
		return nil, &entity.InvalidCredentialError{
			Reason: fmt.Sprintf("configuration snapshot line %d holds a private key literal; reference it with signer.credential_env instead", findings[0].Line),
		}
	}
	return out, nil
}

// EnvName converts a network name into its environment variable segment, e.g. "zone-1" -> "ZONE_1".
func EnvName(network string) string {
	return strings.ToUpper(strings.ReplaceAll(network, "-", "_"))
}

func sortedNames(networks map[string]entity.NetworkProfile) []string {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
