// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tracking.
//
// go-tracking is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package cli holds the configuration, command implementations and output
// formatting behind the folo command.
package cli

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-tracking/pkg/factory"
)

// Config holds the CLI configuration settings.
type Config struct {
	// Ledger store
	StoreBackend string
	StorePath    string

	CassandraHosts       []string
	CassandraPort        int
	CassandraUser        string
	CassandraPassword    string
	CassandraKeyspace    string
	CassandraReplicas    int
	CassandraConsistency string
	CassandraTimeout     time.Duration

	// Admin server
	ServerHost      string
	ServerPort      int
	ServerMode      string
	ServerRateLimit float64

	// Tracking behavior
	TrackGroupContent   bool
	DeletionGuardCheck  bool
	CleanupEmptyFolders bool
	ContentBaseURL      string
	BaseDir             string

	// Collaborators
	ContentURL      string
	PromoteURL      string
	StorageURL      string
	MaintenanceURL  string
	ServicesTimeout time.Duration

	CleanupWorkers   int
	CleanupQueueSize int

	// Export sinks
	ExportS3Region    string
	ExportS3Endpoint  string
	ExportS3AccessKey string
	ExportS3SecretKey string

	LogLevel   string
	LogFormat  string
	LogBackend string

	AuditEnabled bool
	AuditFormat  string

	MetricsEnabled bool

	OutputFormat string
}

// InitConfig initializes the configuration using Viper.
// Configuration priority: flags > env vars > config file > defaults.
func InitConfig(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".folo")
		v.SetConfigType("yaml")
	}

	// FOLO_STORE_BACKEND, FOLO_TRACKING_CONTENT_BASE_URL, ...
	v.SetEnvPrefix("FOLO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.path", "")

	v.SetDefault("cassandra.hosts", []string{"localhost"})
	v.SetDefault("cassandra.port", 9042)
	v.SetDefault("cassandra.keyspace", "folo")
	v.SetDefault("cassandra.replicas", 1)
	v.SetDefault("cassandra.consistency", "QUORUM")
	v.SetDefault("cassandra.timeout", 10*time.Second)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.rate-limit", 0)

	v.SetDefault("tracking.track-group-content", false)
	v.SetDefault("tracking.deletion-guard-check", true)
	v.SetDefault("tracking.cleanup-empty-folders", true)
	v.SetDefault("tracking.content-base-url", "")
	v.SetDefault("tracking.base-dir", ".")

	v.SetDefault("services.timeout", 30*time.Second)

	v.SetDefault("cleanup.workers", 4)
	v.SetDefault("cleanup.queue-size", 100)

	v.SetDefault("export.s3-region", "us-east-1")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.backend", "slog")

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.format", "json")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("output-format", "text")
}

// GetConfig extracts the configuration from Viper into a Config struct.
func GetConfig(v *viper.Viper) *Config {
	return &Config{
		StoreBackend: v.GetString("store.backend"),
		StorePath:    v.GetString("store.path"),

		CassandraHosts:       hostList(v.GetStringSlice("cassandra.hosts")),
		CassandraPort:        v.GetInt("cassandra.port"),
		CassandraUser:        v.GetString("cassandra.user"),
		CassandraPassword:    v.GetString("cassandra.password"),
		CassandraKeyspace:    v.GetString("cassandra.keyspace"),
		CassandraReplicas:    v.GetInt("cassandra.replicas"),
		CassandraConsistency: v.GetString("cassandra.consistency"),
		CassandraTimeout:     v.GetDuration("cassandra.timeout"),

		ServerHost:      v.GetString("server.host"),
		ServerPort:      v.GetInt("server.port"),
		ServerMode:      v.GetString("server.mode"),
		ServerRateLimit: v.GetFloat64("server.rate-limit"),

		TrackGroupContent:   v.GetBool("tracking.track-group-content"),
		DeletionGuardCheck:  v.GetBool("tracking.deletion-guard-check"),
		CleanupEmptyFolders: v.GetBool("tracking.cleanup-empty-folders"),
		ContentBaseURL:      v.GetString("tracking.content-base-url"),
		BaseDir:             v.GetString("tracking.base-dir"),

		ContentURL:      v.GetString("services.content-url"),
		PromoteURL:      v.GetString("services.promote-url"),
		StorageURL:      v.GetString("services.storage-url"),
		MaintenanceURL:  v.GetString("services.maintenance-url"),
		ServicesTimeout: v.GetDuration("services.timeout"),

		CleanupWorkers:   v.GetInt("cleanup.workers"),
		CleanupQueueSize: v.GetInt("cleanup.queue-size"),

		ExportS3Region:    v.GetString("export.s3-region"),
		ExportS3Endpoint:  v.GetString("export.s3-endpoint"),
		ExportS3AccessKey: v.GetString("export.s3-access-key"),
		ExportS3SecretKey: v.GetString("export.s3-secret-key"),

		LogLevel:   v.GetString("log.level"),
		LogFormat:  v.GetString("log.format"),
		LogBackend: v.GetString("log.backend"),

		AuditEnabled: v.GetBool("audit.enabled"),
		AuditFormat:  v.GetString("audit.format"),

		MetricsEnabled: v.GetBool("metrics.enabled"),

		OutputFormat: v.GetString("output-format"),
	}
}

// hostList accepts both list values and a single comma separated string,
// the form environment variables arrive in.
func hostList(in []string) []string {
	var hosts []string
	for _, item := range in {
		for _, h := range strings.Split(item, ",") {
			if h = strings.TrimSpace(h); h != "" {
				hosts = append(hosts, h)
			}
		}
	}
	return hosts
}

// ValidateConfig checks the settings the chosen backend needs.
func ValidateConfig(cfg *Config) error {
	if !slices.Contains(factory.Backends(), cfg.StoreBackend) {
		return fmt.Errorf("%w: %s (available: %s)", ErrUnsupportedBackend, cfg.StoreBackend, strings.Join(factory.Backends(), ", "))
	}

	switch cfg.StoreBackend {
	case "sqlite":
		if cfg.StorePath == "" {
			return ErrStorePathRequired
		}
	case "cassandra":
		if len(cfg.CassandraHosts) == 0 {
			return ErrCassandraHostsRequired
		}
	}

	if cfg.ServerPort < 1 || cfg.ServerPort > 65535 {
		return ErrInvalidPort
	}

	switch OutputFormat(cfg.OutputFormat) {
	case FormatText, FormatJSON, FormatYAML, FormatTable:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedOutputFormat, cfg.OutputFormat)
	}
	return nil
}

// StoreSettings converts Config to the settings map of the ledger backend.
func (c *Config) StoreSettings() map[string]string {
	settings := make(map[string]string)

	switch c.StoreBackend {
	case "sqlite":
		settings["path"] = c.StorePath
	case "cassandra":
		settings["hosts"] = strings.Join(c.CassandraHosts, ",")
		if c.CassandraPort > 0 {
			settings["port"] = strconv.Itoa(c.CassandraPort)
		}
		if c.CassandraUser != "" {
			settings["user"] = c.CassandraUser
			settings["password"] = c.CassandraPassword
		}
		if c.CassandraKeyspace != "" {
			settings["keyspace"] = c.CassandraKeyspace
		}
		if c.CassandraReplicas > 0 {
			settings["replicas"] = strconv.Itoa(c.CassandraReplicas)
		}
		if c.CassandraConsistency != "" {
			settings["consistency"] = c.CassandraConsistency
		}
		if c.CassandraTimeout > 0 {
			settings["timeout"] = c.CassandraTimeout.String()
		}
	}

	return settings
}

// DisplayConfig formats and displays the current configuration.
func DisplayConfig(cfg *Config, format OutputFormat) string {
	rows := configRows(cfg)
	switch format {
	case FormatJSON, FormatYAML:
		m := make(map[string]string, len(rows))
		for _, r := range rows {
			m[r[0]] = r[1]
		}
		return formatStructured(m, format)
	case FormatTable:
		return formatTable([]string{"Setting", "Value"}, rows)
	default:
		var b strings.Builder
		for _, r := range rows {
			fmt.Fprintf(&b, "%s: %s\n", r[0], r[1])
		}
		return b.String()
	}
}

func configRows(cfg *Config) [][]string {
	rows := [][]string{{"store.backend", cfg.StoreBackend}}
	switch cfg.StoreBackend {
	case "sqlite":
		rows = append(rows, []string{"store.path", cfg.StorePath})
	case "cassandra":
		rows = append(rows,
			[]string{"cassandra.hosts", strings.Join(cfg.CassandraHosts, ",")},
			[]string{"cassandra.port", strconv.Itoa(cfg.CassandraPort)},
			[]string{"cassandra.keyspace", cfg.CassandraKeyspace},
			[]string{"cassandra.consistency", cfg.CassandraConsistency},
		)
		if cfg.CassandraUser != "" {
			rows = append(rows,
				[]string{"cassandra.user", cfg.CassandraUser},
				[]string{"cassandra.password", maskSecret(cfg.CassandraPassword)},
			)
		}
	}
	rows = append(rows,
		[]string{"server.address", fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)},
		[]string{"tracking.track-group-content", strconv.FormatBool(cfg.TrackGroupContent)},
		[]string{"tracking.deletion-guard-check", strconv.FormatBool(cfg.DeletionGuardCheck)},
		[]string{"tracking.cleanup-empty-folders", strconv.FormatBool(cfg.CleanupEmptyFolders)},
	)
	for _, svc := range [][]string{
		{"tracking.content-base-url", cfg.ContentBaseURL},
		{"services.content-url", cfg.ContentURL},
		{"services.promote-url", cfg.PromoteURL},
		{"services.storage-url", cfg.StorageURL},
		{"services.maintenance-url", cfg.MaintenanceURL},
	} {
		if svc[1] != "" {
			rows = append(rows, svc)
		}
	}
	return append(rows, []string{"output-format", cfg.OutputFormat})
}

// maskSecret masks a secret string for display.
func maskSecret(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}
