// Package config loads the cqldata server configuration from YAML or JSONC files and
// environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/magiccloud/cqldata"
	"github.com/magiccloud/cqldata/cassandra"
	"github.com/magiccloud/cqldata/logging"
	"github.com/magiccloud/cqldata/mixed"
	"github.com/magiccloud/cqldata/redis"
	"github.com/magiccloud/cqldata/s3"
	"github.com/magiccloud/cqldata/slots"
)

// Backend names of the cache and file content stores.
const (
	BackendCQL   = "cql"
	BackendRedis = "redis"
	BackendS3    = "s3"
)

// Duration reads "1m30s" style strings from both YAML and JSON.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config represents the complete configuration of a cqldata server.
type Config struct {
	Cassandra CassandraConfig `yaml:"cassandra" json:"cassandra"`
	Redis     RedisConfig     `yaml:"redis" json:"redis"`
	S3        S3Config        `yaml:"s3" json:"s3"`
	Tenant    TenantConfig    `yaml:"tenant" json:"tenant"`
	Local     LocalConfig     `yaml:"local" json:"local"`
	Routes    RoutesConfig    `yaml:"routes" json:"routes"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Files     FilesConfig     `yaml:"files" json:"files"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	HTTP      HTTPConfig      `yaml:"http" json:"http"`
}

// CassandraConfig holds the cluster connection settings.
type CassandraConfig struct {
	Hosts             []string `yaml:"hosts" json:"hosts"`
	Username          string   `yaml:"username" json:"username"`
	Password          string   `yaml:"password" json:"password"`
	Consistency       string   `yaml:"consistency" json:"consistency"`
	ConnectionTimeout Duration `yaml:"connection_timeout" json:"connection_timeout"`
	Replication       string   `yaml:"replication" json:"replication"`
	SkipSchema        bool     `yaml:"skip_schema" json:"skip_schema"`
	Keyspaces         struct {
		Files   string `yaml:"files" json:"files"`
		Cache   string `yaml:"cache" json:"cache"`
		Log     string `yaml:"log" json:"log"`
		Generic string `yaml:"generic" json:"generic"`
	} `yaml:"keyspaces" json:"keyspaces"`
	// Clusters are additional named clusters cql.connect can address, by contact points.
	Clusters map[string][]string `yaml:"clusters" json:"clusters"`
}

// RedisConfig holds the redis cache backend settings.
type RedisConfig struct {
	Address   string `yaml:"address" json:"address"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// S3Config holds the S3 (or MinIO) file content backend settings.
type S3Config struct {
	Endpoint     string `yaml:"endpoint" json:"endpoint"`
	Region       string `yaml:"region" json:"region"`
	Username     string `yaml:"username" json:"username"`
	Password     string `yaml:"password" json:"password"`
	Bucket       string `yaml:"bucket" json:"bucket"`
	UsePathStyle bool   `yaml:"use_path_style" json:"use_path_style"`
}

// TenantConfig is the root folder the tenant and cloudlet are derived from.
type TenantConfig struct {
	RootFolder   string `yaml:"root_folder" json:"root_folder"`
	DynamicFiles string `yaml:"dynamic_files" json:"dynamic_files"`
}

// LocalConfig is the directory the local disk backend stores files in.
type LocalConfig struct {
	BaseDir string `yaml:"base_dir" json:"base_dir"`
}

// RoutesConfig is the namespace dispatch table of the mixed services.
type RoutesConfig struct {
	Fallback string        `yaml:"fallback" json:"fallback"`
	Table    []mixed.Route `yaml:"table" json:"table"`
}

type CacheConfig struct {
	Backend string `yaml:"backend" json:"backend"`
}

type FilesConfig struct {
	Backend string `yaml:"backend" json:"backend"`
}

// LoggingConfig holds the process log level and the tenant log settings.
type LoggingConfig struct {
	// Process is the slog level of the diagnostic log (debug, info, warn, error).
	Process string          `yaml:"process" json:"process"`
	Tenant  logging.Options `yaml:"tenant" json:"tenant"`
}

// HTTPConfig holds the REST surface settings. Okta verification is off when Issuer is empty,
// and so are the slot endpoints.
type HTTPConfig struct {
	Address         string   `yaml:"address" json:"address"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	// TenantHeader names the request header selecting the tenant root folder when tokens
	// are not verified. Empty serves the configured tenant only.
	TenantHeader string `yaml:"tenant_header" json:"tenant_header"`
	Okta         struct {
		Issuer   string `yaml:"issuer" json:"issuer"`
		Audience string `yaml:"audience" json:"audience"`
		ClientID string `yaml:"client_id" json:"client_id"`
		// TenantClaim names the access token claim holding the tenant root folder.
		TenantClaim string `yaml:"tenant_claim" json:"tenant_claim"`
	} `yaml:"okta" json:"okta"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	setDefaults(&c)
	return c
}

// Load reads path (.yaml, .yml, .json or .jsonc), applies defaults and environment
// overrides, then validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	c, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Config{}, err
	}
	setDefaults(&c)
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Parse decodes data in the format given by its file extension.
func Parse(data []byte, ext string) (Config, error) {
	var c Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, cqldata.Error{Code: cqldata.ConfigurationError, Err: fmt.Errorf("failed to parse config file: %w", err)}
		}
	case ".json", ".jsonc":
		standardized, err := hujson.Standardize(data)
		if err != nil {
			return Config{}, cqldata.Error{Code: cqldata.ConfigurationError, Err: fmt.Errorf("invalid JSONC: %w", err)}
		}
		if err := json.Unmarshal(standardized, &c); err != nil {
			return Config{}, cqldata.Error{Code: cqldata.ConfigurationError, Err: fmt.Errorf("invalid JSON: %w", err)}
		}
	default:
		return Config{}, cqldata.Errorf(cqldata.ConfigurationError, "unsupported config file extension '%s'", ext)
	}
	return c, nil
}

func setDefaults(c *Config) {
	if len(c.Cassandra.Hosts) == 0 {
		c.Cassandra.Hosts = []string{"127.0.0.1"}
	}
	if c.Cassandra.ConnectionTimeout == 0 {
		c.Cassandra.ConnectionTimeout = Duration(10 * time.Second)
	}
	ks := cassandra.DefaultKeyspaces()
	if c.Cassandra.Keyspaces.Files == "" {
		c.Cassandra.Keyspaces.Files = ks.Files
	}
	if c.Cassandra.Keyspaces.Cache == "" {
		c.Cassandra.Keyspaces.Cache = ks.Cache
	}
	if c.Cassandra.Keyspaces.Log == "" {
		c.Cassandra.Keyspaces.Log = ks.Log
	}
	if c.Cassandra.Keyspaces.Generic == "" {
		c.Cassandra.Keyspaces.Generic = ks.Generic
	}
	if c.Redis.Address == "" {
		c.Redis.Address = redis.DefaultOptions().Address
	}
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
	if c.Tenant.RootFolder == "" {
		c.Tenant.RootFolder = "/magic/default/"
	}
	if c.Local.BaseDir == "" {
		c.Local.BaseDir = "./data"
	}
	if c.Routes.Fallback == "" {
		c.Routes.Fallback = mixed.CQL
	}
	if c.Routes.Table == nil {
		c.Routes.Table = mixed.DefaultRoutes()
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = BackendCQL
	}
	if c.Files.Backend == "" {
		c.Files.Backend = BackendCQL
	}
	if c.Logging.Process == "" {
		c.Logging.Process = "info"
	}
	if c.Logging.Tenant.Level == "" {
		c.Logging.Tenant.Level = logging.Debug
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = Duration(30 * time.Second)
	}
}

// ApplyEnv overrides settings from the environment, read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("MAGIC_CQL_CONSISTENCY"); ok && v != "" {
		c.Cassandra.Consistency = v
	}
	if v, ok := lookup("MAGIC_CQL_HOST"); ok && v != "" {
		c.Cassandra.Hosts = splitList(v)
	}
	if v, ok := lookup("MAGIC_LOGGING_LEVEL"); ok && v != "" {
		c.Logging.Tenant.Level = v
	}
	if v, ok := lookup("MAGIC_REDIS_ADDRESS"); ok && v != "" {
		c.Redis.Address = v
	}
	if v, ok := lookup("MAGIC_ROOT_FOLDER"); ok && v != "" {
		c.Tenant.RootFolder = v
	}
	if v, ok := lookup("CQLDATA_HTTP_ADDRESS"); ok && v != "" {
		c.HTTP.Address = v
	}
	if v, ok := lookup("CQLDATA_SKIP_SCHEMA"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cqldata.Errorf(cqldata.ConfigurationError, "CQLDATA_SKIP_SCHEMA '%s' is not a bool", v)
		}
		c.Cassandra.SkipSchema = b
	}
	return nil
}

func splitList(s string) []string {
	var r []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			r = append(r, p)
		}
	}
	return r
}

// Validate checks the settings that would otherwise fail late, at first use.
func (c *Config) Validate() error {
	if _, err := cqldata.ResolveScope(c.Tenant.RootFolder); err != nil {
		return err
	}
	if _, err := c.consistency(); err != nil {
		return err
	}
	switch c.Cache.Backend {
	case BackendCQL, BackendRedis:
	default:
		return cqldata.Errorf(cqldata.ConfigurationError, "unknown cache backend '%s'", c.Cache.Backend)
	}
	switch c.Files.Backend {
	case BackendCQL:
	case BackendS3:
		if c.S3.Bucket == "" {
			return cqldata.Errorf(cqldata.ConfigurationError, "the s3 files backend needs a bucket")
		}
	default:
		return cqldata.Errorf(cqldata.ConfigurationError, "unknown files backend '%s'", c.Files.Backend)
	}
	for _, r := range c.Routes.Table {
		if r.Backend != mixed.Local && r.Backend != mixed.CQL {
			return cqldata.Errorf(cqldata.ConfigurationError, "route '%s' has unknown backend '%s'", r.Namespace, r.Backend)
		}
	}
	if _, ok := cqldata.ParseSlogLevel(c.Logging.Process); !ok {
		return cqldata.Errorf(cqldata.ConfigurationError, "unknown process log level '%s'", c.Logging.Process)
	}
	if _, err := logging.ParseLevel(c.Logging.Tenant.Level); err != nil {
		return err
	}
	if _, ok := c.Cassandra.Clusters[slots.Generic]; ok {
		return cqldata.Errorf(cqldata.ConfigurationError, "cluster name '%s' is reserved", slots.Generic)
	}
	return nil
}

func (c *Config) consistency() (gocql.Consistency, error) {
	if c.Cassandra.Consistency == "" {
		return gocql.Quorum, nil
	}
	v, err := gocql.ParseConsistencyWrapper(c.Cassandra.Consistency)
	if err != nil {
		return 0, cqldata.Error{Code: cqldata.ConfigurationError, Err: err}
	}
	return v, nil
}

// CassandraConfig returns the connection settings of the main cluster.
func (c *Config) CassandraConfig() cassandra.Config {
	consistency, _ := c.consistency()
	cfg := cassandra.Config{
		ClusterHosts:      c.Cassandra.Hosts,
		Consistency:       consistency,
		ConnectionTimeout: time.Duration(c.Cassandra.ConnectionTimeout),
		ReplicationClause: c.Cassandra.Replication,
		SkipSchema:        c.Cassandra.SkipSchema,
		Keyspaces: cassandra.Keyspaces{
			Files:   c.Cassandra.Keyspaces.Files,
			Cache:   c.Cassandra.Keyspaces.Cache,
			Log:     c.Cassandra.Keyspaces.Log,
			Generic: c.Cassandra.Keyspaces.Generic,
		},
	}
	if c.Cassandra.Username != "" {
		cfg.Authenticator = gocql.PasswordAuthenticator{
			Username: c.Cassandra.Username,
			Password: c.Cassandra.Password,
		}
	}
	return cfg
}

// Clusters returns the connection settings cql.connect resolves names against. The main
// cluster is "generic", the extra clusters share its credentials. None of them create the
// managed tables.
func (c *Config) Clusters() map[string]cassandra.Config {
	main := c.CassandraConfig()
	r := map[string]cassandra.Config{slots.Generic: main}
	for name, hosts := range c.Cassandra.Clusters {
		cfg := main
		cfg.ClusterHosts = hosts
		cfg.SkipSchema = true
		r[name] = cfg
	}
	g := r[slots.Generic]
	g.SkipSchema = true
	r[slots.Generic] = g
	return r
}

func (c *Config) RedisOptions() redis.Options {
	o := redis.DefaultOptions()
	o.Address = c.Redis.Address
	o.Password = c.Redis.Password
	o.DB = c.Redis.DB
	if c.Redis.KeyPrefix != "" {
		o.KeyPrefix = c.Redis.KeyPrefix
	}
	return o
}

func (c *Config) S3Config() s3.Config {
	return s3.Config{
		HostEndpointUrl: c.S3.Endpoint,
		Region:          c.S3.Region,
		Username:        c.S3.Username,
		Password:        c.S3.Password,
		Bucket:          c.S3.Bucket,
		UsePathStyle:    c.S3.UsePathStyle,
	}
}

// RootResolver returns the resolver of the configured tenant root folder.
func (c *Config) RootResolver() cqldata.RootResolver {
	return cqldata.NewRootResolver(c.Tenant.RootFolder, c.Tenant.DynamicFiles)
}
