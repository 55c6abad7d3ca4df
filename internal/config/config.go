// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"errors"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sigil-dev/imgsearch/internal/embed"
	"github.com/sigil-dev/imgsearch/internal/gallery"
	"github.com/sigil-dev/imgsearch/internal/progress"
	"github.com/sigil-dev/imgsearch/internal/secrets"
	"github.com/sigil-dev/imgsearch/internal/server"
	"github.com/sigil-dev/imgsearch/internal/store"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// IMGSEARCH_VECTOR_BACKEND for vector.backend.
const EnvPrefix = "IMGSEARCH"

// Config is the top-level imgsearch configuration.
type Config struct {
	DataDir   string          `mapstructure:"data_dir" yaml:"data_dir"`
	LogLevel  string          `mapstructure:"log_level" yaml:"log_level"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Vector    VectorConfig    `mapstructure:"vector" yaml:"vector"`
	Metadata  MetadataConfig  `mapstructure:"metadata" yaml:"metadata"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	Search    SearchConfig    `mapstructure:"search" yaml:"search"`
	Upload    UploadConfig    `mapstructure:"upload" yaml:"upload"`
	Load      LoadConfig      `mapstructure:"load" yaml:"load"`
	Progress  ProgressConfig  `mapstructure:"progress" yaml:"progress"`
	Media     MediaConfig     `mapstructure:"media" yaml:"media"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen       string          `mapstructure:"listen" yaml:"listen"`
	CORSOrigins  []string        `mapstructure:"cors_origins" yaml:"cors_origins"`
	ReadTimeout  time.Duration   `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration   `mapstructure:"write_timeout" yaml:"write_timeout"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig sets the per-IP token bucket. Zero requests per second
// disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// VectorConfig selects the vector index backend and the collection schema.
type VectorConfig struct {
	Backend string       `mapstructure:"backend" yaml:"backend"`
	Metric  string       `mapstructure:"metric" yaml:"metric"`
	SQLite  SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
	Qdrant  QdrantConfig `mapstructure:"qdrant" yaml:"qdrant"`
	Index   IndexConfig  `mapstructure:"index" yaml:"index"`
}

// SQLiteConfig points a backend at a database file.
type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// QdrantConfig addresses a Qdrant server.
type QdrantConfig struct {
	Host    string        `mapstructure:"host" yaml:"host"`
	Port    int           `mapstructure:"port" yaml:"port"`
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	HTTPS   bool          `mapstructure:"https" yaml:"https"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// IndexConfig describes the ANN index built for new tables.
type IndexConfig struct {
	Type        string `mapstructure:"type" yaml:"type"`
	NList       int    `mapstructure:"nlist" yaml:"nlist"`
	NProbe      int    `mapstructure:"nprobe" yaml:"nprobe"`
	M           int    `mapstructure:"m" yaml:"m"`
	EfConstruct int    `mapstructure:"ef_construct" yaml:"ef_construct"`
}

// MetadataConfig selects the metadata store backend.
type MetadataConfig struct {
	Backend string       `mapstructure:"backend" yaml:"backend"`
	SQLite  SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
	MySQL   MySQLConfig  `mapstructure:"mysql" yaml:"mysql"`
}

// MySQLConfig holds MySQL connection settings.
type MySQLConfig struct {
	Host     string        `mapstructure:"host" yaml:"host"`
	Port     int           `mapstructure:"port" yaml:"port"`
	User     string        `mapstructure:"user" yaml:"user"`
	Password string        `mapstructure:"password" yaml:"password"`
	Database string        `mapstructure:"database" yaml:"database"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// EmbeddingConfig selects the feature extractor.
type EmbeddingConfig struct {
	Provider  string       `mapstructure:"provider" yaml:"provider"`
	Dimension int          `mapstructure:"dimension" yaml:"dimension"`
	OpenAI    OpenAIConfig `mapstructure:"openai" yaml:"openai"`
}

// OpenAIConfig configures an OpenAI-compatible embeddings endpoint.
type OpenAIConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	Model   string        `mapstructure:"model" yaml:"model"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SearchConfig tunes search requests.
type SearchConfig struct {
	TopK int `mapstructure:"top_k" yaml:"top_k"`
}

// UploadConfig controls where uploads land and how large they may be.
type UploadConfig struct {
	Dir          string        `mapstructure:"dir" yaml:"dir"`
	MaxBytes     int64         `mapstructure:"max_bytes" yaml:"max_bytes"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
}

// LoadConfig tunes bulk loads.
type LoadConfig struct {
	BatchSize int  `mapstructure:"batch_size" yaml:"batch_size"`
	Recursive bool `mapstructure:"recursive" yaml:"recursive"`
}

// ProgressConfig selects where load progress is kept.
type ProgressConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

// MediaConfig restricts the files GET /data may serve.
type MediaConfig struct {
	Roots []string `mapstructure:"roots" yaml:"roots"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.listen", "0.0.0.0:5000")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.rate_limit.requests_per_second", 0)
	v.SetDefault("server.rate_limit.burst", 20)

	v.SetDefault("vector.backend", "sqlite")
	v.SetDefault("vector.metric", string(store.MetricL2))
	v.SetDefault("vector.sqlite.path", "")
	v.SetDefault("vector.qdrant.host", "localhost")
	v.SetDefault("vector.qdrant.port", 6333)
	v.SetDefault("vector.qdrant.api_key", "")
	v.SetDefault("vector.qdrant.https", false)
	v.SetDefault("vector.qdrant.timeout", 30*time.Second)
	v.SetDefault("vector.index.type", "IVF_FLAT")
	v.SetDefault("vector.index.nlist", 2048)
	v.SetDefault("vector.index.nprobe", 16)
	v.SetDefault("vector.index.m", 16)
	v.SetDefault("vector.index.ef_construct", 200)

	v.SetDefault("metadata.backend", "sqlite")
	v.SetDefault("metadata.sqlite.path", "")
	v.SetDefault("metadata.mysql.host", "localhost")
	v.SetDefault("metadata.mysql.port", 3306)
	v.SetDefault("metadata.mysql.user", "root")
	v.SetDefault("metadata.mysql.password", "")
	v.SetDefault("metadata.mysql.database", "imgsearch")
	v.SetDefault("metadata.mysql.timeout", 10*time.Second)

	v.SetDefault("embedding.provider", "thumbnail")
	v.SetDefault("embedding.dimension", 768)
	v.SetDefault("embedding.openai.base_url", "")
	v.SetDefault("embedding.openai.api_key", "")
	v.SetDefault("embedding.openai.model", "")
	v.SetDefault("embedding.openai.timeout", 60*time.Second)

	v.SetDefault("search.top_k", 10)

	v.SetDefault("upload.dir", "/tmp/search-images")
	v.SetDefault("upload.max_bytes", int64(32<<20))
	v.SetDefault("upload.fetch_timeout", 30*time.Second)

	v.SetDefault("load.batch_size", 64)
	v.SetDefault("load.recursive", false)

	v.SetDefault("progress.backend", "memory")
	v.SetDefault("progress.dir", "")

	v.SetDefault("media.roots", []string{})
}

// SetupEnv binds IMGSEARCH_* environment variables to their keys.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix IMGSEARCH_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, imgerr.Errorf(imgerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes, completes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, imgerr.Errorf(imgerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}
	cfg.resolvePaths()

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, imgerr.Errorf(imgerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// resolvePaths fills the file locations that default to data_dir.
func (c *Config) resolvePaths() {
	if c.Vector.SQLite.Path == "" {
		c.Vector.SQLite.Path = filepath.Join(c.DataDir, "vectors.db")
	}
	if c.Metadata.SQLite.Path == "" {
		c.Metadata.SQLite.Path = filepath.Join(c.DataDir, "metadata.db")
	}
	if c.Progress.Dir == "" {
		c.Progress.Dir = filepath.Join(c.DataDir, "progress")
	}
}

func (c *Config) credentials() map[string]*string {
	return map[string]*string{
		"metadata.mysql.password":  &c.Metadata.MySQL.Password,
		"vector.qdrant.api_key":    &c.Vector.Qdrant.APIKey,
		"embedding.openai.api_key": &c.Embedding.OpenAI.APIKey,
	}
}

// HasSecrets reports whether the configuration carries credentials in
// clear. keyring:// references do not count.
func (c *Config) HasSecrets() bool {
	for _, v := range c.credentials() {
		if *v != "" && !secrets.IsRef(*v) {
			return true
		}
	}
	return false
}

// ResolveSecrets replaces keyring:// references in the credential fields
// with the values held by store. Every failing key is reported.
func (c *Config) ResolveSecrets(store secrets.Store) error {
	var errs []error
	for key, v := range c.credentials() {
		resolved, err := secrets.Resolve(store, *v)
		if err != nil {
			errs = append(errs, imgerr.Wrapf(err, imgerr.CodeSecretResolveFailure, "config key %s", key))
			continue
		}
		*v = resolved
	}
	return imgerr.Join(imgerr.CodeSecretResolveFailure, errs...)
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateGeneral()...)
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateVector()...)
	errs = append(errs, c.validateMetadata()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateLimits()...)

	return errs
}

func invalid(format string, args ...any) error {
	return imgerr.Errorf(imgerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func oneOf(key, got string, allowed ...string) error {
	for _, a := range allowed {
		if got == a {
			return nil
		}
	}
	return invalid("%s must be one of [%s], got %q", key, strings.Join(allowed, ", "), got)
}

func (c *Config) validateGeneral() []error {
	var errs []error

	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, invalid("data_dir must not be empty"))
	}
	if err := oneOf("log_level", strings.ToLower(c.LogLevel), "debug", "info", "warn", "error"); err != nil {
		errs = append(errs, err)
	}

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if err := validateListen(c.Server.Listen); err != nil {
		errs = append(errs, err)
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, invalid("server.read_timeout must not be negative, got %s", c.Server.ReadTimeout))
	}
	if c.Server.WriteTimeout < 0 {
		errs = append(errs, invalid("server.write_timeout must not be negative, got %s", c.Server.WriteTimeout))
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, invalid("server.rate_limit.requests_per_second must not be negative, got %g",
			c.Server.RateLimit.RequestsPerSecond))
	}
	if c.Server.RateLimit.RequestsPerSecond > 0 && c.Server.RateLimit.Burst <= 0 {
		errs = append(errs, invalid("server.rate_limit.burst must be greater than 0 when a rate is set, got %d",
			c.Server.RateLimit.Burst))
	}

	return errs
}

func validateListen(listen string) error {
	if listen == "" {
		return invalid("server.listen must not be empty")
	}
	// Host may be empty (":5000").
	_, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return invalid("server.listen must be a valid host:port address, got %q: %w", listen, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return invalid("server.listen port must be a number, got %q", portStr)
	}
	if port < 1 || port > 65535 {
		return invalid("server.listen port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func (c *Config) validateVector() []error {
	var errs []error

	if err := oneOf("vector.backend", c.Vector.Backend, "sqlite", "qdrant"); err != nil {
		errs = append(errs, err)
	}
	if !store.Metric(c.Vector.Metric).Valid() {
		errs = append(errs, invalid("vector.metric must be one of [L2, cosine], got %q", c.Vector.Metric))
	}
	if c.Vector.Backend == "qdrant" {
		if c.Vector.Qdrant.Host == "" {
			errs = append(errs, invalid("vector.qdrant.host must not be empty"))
		}
		if c.Vector.Qdrant.Port < 1 || c.Vector.Qdrant.Port > 65535 {
			errs = append(errs, invalid("vector.qdrant.port must be between 1 and 65535, got %d", c.Vector.Qdrant.Port))
		}
	}
	if c.Vector.Index.NList < 0 || c.Vector.Index.NProbe < 0 || c.Vector.Index.M < 0 || c.Vector.Index.EfConstruct < 0 {
		errs = append(errs, invalid("vector.index parameters must not be negative"))
	}

	return errs
}

func (c *Config) validateMetadata() []error {
	var errs []error

	if err := oneOf("metadata.backend", c.Metadata.Backend, "sqlite", "mysql"); err != nil {
		errs = append(errs, err)
	}
	if c.Metadata.Backend == "mysql" {
		if c.Metadata.MySQL.Host == "" {
			errs = append(errs, invalid("metadata.mysql.host must not be empty"))
		}
		if c.Metadata.MySQL.Database == "" {
			errs = append(errs, invalid("metadata.mysql.database must not be empty"))
		}
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error

	if err := oneOf("embedding.provider", c.Embedding.Provider, "thumbnail", "openai"); err != nil {
		errs = append(errs, err)
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, invalid("embedding.dimension must be greater than 0, got %d", c.Embedding.Dimension))
	}
	if c.Embedding.Provider == "openai" && c.Embedding.OpenAI.Model == "" {
		errs = append(errs, invalid("embedding.openai.model must not be empty when provider is openai"))
	}

	return errs
}

func (c *Config) validateLimits() []error {
	var errs []error

	if c.Search.TopK <= 0 {
		errs = append(errs, invalid("search.top_k must be greater than 0, got %d", c.Search.TopK))
	}
	if c.Load.BatchSize <= 0 {
		errs = append(errs, invalid("load.batch_size must be greater than 0, got %d", c.Load.BatchSize))
	}
	if strings.TrimSpace(c.Upload.Dir) == "" {
		errs = append(errs, invalid("upload.dir must not be empty"))
	}
	if c.Upload.MaxBytes < 0 {
		errs = append(errs, invalid("upload.max_bytes must not be negative, got %d", c.Upload.MaxBytes))
	}
	if err := oneOf("progress.backend", c.Progress.Backend, "memory", "badger"); err != nil {
		errs = append(errs, err)
	}

	return errs
}

// VectorStore returns the vector backend settings.
func (c *Config) VectorStore() store.VectorConfig {
	return store.VectorConfig{
		Backend:    c.Vector.Backend,
		SQLitePath: c.Vector.SQLite.Path,
		Qdrant: store.QdrantConfig{
			Host:    c.Vector.Qdrant.Host,
			Port:    c.Vector.Qdrant.Port,
			APIKey:  c.Vector.Qdrant.APIKey,
			HTTPS:   c.Vector.Qdrant.HTTPS,
			Timeout: c.Vector.Qdrant.Timeout,
		},
	}
}

// MetadataStore returns the metadata backend settings.
func (c *Config) MetadataStore() store.MetadataConfig {
	return store.MetadataConfig{
		Backend:    c.Metadata.Backend,
		SQLitePath: c.Metadata.SQLite.Path,
		MySQL: store.MySQLConfig{
			Host:     c.Metadata.MySQL.Host,
			Port:     c.Metadata.MySQL.Port,
			User:     c.Metadata.MySQL.User,
			Password: c.Metadata.MySQL.Password,
			Database: c.Metadata.MySQL.Database,
			Timeout:  c.Metadata.MySQL.Timeout,
		},
	}
}

// Embedder returns the embedding provider settings.
func (c *Config) Embedder() embed.Config {
	return embed.Config{
		Provider:  c.Embedding.Provider,
		Dimension: c.Embedding.Dimension,
		OpenAI: embed.OpenAIConfig{
			BaseURL: c.Embedding.OpenAI.BaseURL,
			APIKey:  c.Embedding.OpenAI.APIKey,
			Model:   c.Embedding.OpenAI.Model,
			Timeout: c.Embedding.OpenAI.Timeout,
		},
	}
}

// ProgressTracker returns the progress backend settings.
func (c *Config) ProgressTracker() progress.Config {
	return progress.Config{Backend: c.Progress.Backend, Dir: c.Progress.Dir}
}

// HTTPServer returns the listener settings.
func (c *Config) HTTPServer() server.Config {
	return server.Config{
		ListenAddr:   c.Server.Listen,
		CORSOrigins:  c.Server.CORSOrigins,
		ReadTimeout:  c.Server.ReadTimeout,
		WriteTimeout: c.Server.WriteTimeout,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: c.Server.RateLimit.RequestsPerSecond,
			Burst:             c.Server.RateLimit.Burst,
		},
		MaxUploadBytes: c.Upload.MaxBytes,
	}
}

// Gallery returns the orchestration settings. The index dimension is
// filled in from the embedder by the gallery itself.
func (c *Config) Gallery() gallery.Config {
	return gallery.Config{
		TopK:      c.Search.TopK,
		BatchSize: c.Load.BatchSize,
		Recursive: c.Load.Recursive,
		UploadDir: c.Upload.Dir,
		Index: store.IndexParams{
			Metric:      store.Metric(c.Vector.Metric),
			Type:        c.Vector.Index.Type,
			NList:       c.Vector.Index.NList,
			NProbe:      c.Vector.Index.NProbe,
			M:           c.Vector.Index.M,
			EfConstruct: c.Vector.Index.EfConstruct,
		},
	}
}
