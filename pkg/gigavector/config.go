// Package gigavector is the top-level facade: it wires a
// namespace.Manager, a vacuum worker per namespace, and config loading
// into a single client type, mirroring pkg/core/memory.go's
// NewClient + LoadConfigFromEnv flow.
package gigavector

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/tailscale/hujson"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/distance"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gverrors"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/ivfflat"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/pq"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/namespace"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/vacuum"
)

// Config is the top-level client configuration.
type Config struct {
	// BasePath is the on-disk directory each namespace persists under.
	// Empty disables SaveAll/LoadAll.
	BasePath string `json:"base_path"`

	// SnowflakeNodeID identifies this process for id generation.
	SnowflakeNodeID int64 `json:"snowflake_node_id"`

	// Vacuum holds the background-compaction settings applied to every
	// namespace; there is no per-namespace override.
	Vacuum vacuum.Config `json:"vacuum"`

	// Namespaces describes the namespaces to open at startup, keyed by
	// name, when loaded from a bootstrap file.
	Namespaces map[string]NamespaceConfig `json:"namespaces,omitempty"`
}

// NamespaceConfig is the JSON-facing description of one namespace,
// translated into namespace.Config by toNamespaceConfig.
type NamespaceConfig struct {
	Dim            int    `json:"dim"`
	Variant        string `json:"variant"`
	Metric         string `json:"metric"`
	MaxVectors     uint64 `json:"max_vectors,omitempty"`
	MaxMemoryBytes uint64 `json:"max_memory_bytes,omitempty"`

	IVFFlat *ivfflat.Config `json:"ivfflat,omitempty"`
	PQ      *pq.Config      `json:"pq,omitempty"`

	EnableSparse bool   `json:"enable_sparse,omitempty"`
	SparseDim    uint32 `json:"sparse_dim,omitempty"`
}

func parseVariant(s string) (index.Variant, error) {
	switch index.Variant(s) {
	case index.VariantFlat, index.VariantKDTree, index.VariantIVFFlat, index.VariantPQ:
		return index.Variant(s), nil
	default:
		return "", gverrors.New("parseVariant", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument, "unsupported index variant %q", s)
	}
}

func parseMetric(s string) (distance.Metric, error) {
	switch s {
	case "", "euclidean":
		return distance.Euclidean, nil
	case "cosine":
		return distance.Cosine, nil
	case "dot":
		return distance.Dot, nil
	case "manhattan":
		return distance.Manhattan, nil
	default:
		return 0, gverrors.New("parseMetric", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument, "unsupported metric %q", s)
	}
}

func (c NamespaceConfig) toNamespaceConfig(name string) (namespace.Config, error) {
	variant, err := parseVariant(c.Variant)
	if err != nil {
		return namespace.Config{}, err
	}
	metric, err := parseMetric(c.Metric)
	if err != nil {
		return namespace.Config{}, err
	}
	cfg := namespace.Config{
		Name:           name,
		Dim:            c.Dim,
		Variant:        variant,
		Metric:         metric,
		MaxVectors:     c.MaxVectors,
		MaxMemoryBytes: c.MaxMemoryBytes,
		EnableSparse:   c.EnableSparse,
		SparseDim:      c.SparseDim,
	}
	if c.IVFFlat != nil {
		cfg.IVFFlat = *c.IVFFlat
	}
	if c.PQ != nil {
		cfg.PQ = *c.PQ
	}
	return cfg, nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// LoadConfigFromEnv loads defaults from a .env file (searched upward
// from the working directory, mirroring pkg/core/config.go's
// FindEnvFile), falling back to process env vars and hardcoded
// defaults for anything unset.
func LoadConfigFromEnv() (*Config, error) {
	if envPath, found := findEnvFile(); found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	nodeID, _ := strconv.ParseInt(getEnvOrDefault("GIGAVECTOR_SNOWFLAKE_NODE_ID", "1"), 10, 64)
	intervalSec, _ := strconv.Atoi(getEnvOrDefault("GIGAVECTOR_VACUUM_INTERVAL_SEC", "300"))
	batchSize, _ := strconv.Atoi(getEnvOrDefault("GIGAVECTOR_VACUUM_BATCH_SIZE", "1000"))
	minDeleted, _ := strconv.ParseUint(getEnvOrDefault("GIGAVECTOR_VACUUM_MIN_DELETED", "1000"), 10, 64)
	minFrag, _ := strconv.ParseFloat(getEnvOrDefault("GIGAVECTOR_VACUUM_MIN_FRAGMENTATION", "0.3"), 64)

	return &Config{
		BasePath:        getEnvOrDefault("GIGAVECTOR_BASE_PATH", "./gigavector-data"),
		SnowflakeNodeID: nodeID,
		Vacuum: vacuum.Config{
			MinDeletedCount:       minDeleted,
			MinFragmentationRatio: minFrag,
			IntervalSec:           intervalSec,
			BatchSize:             batchSize,
		},
	}, nil
}

func findEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

// LoadBootstrap reads a JSON-with-comments bootstrap file (e.g.
// "gigavector.jsonc") describing which namespaces to open, so ops can
// comment out a namespace block without breaking the parser. Missing
// files are not an error — an empty namespace set is returned.
func LoadBootstrap(path string) (map[string]NamespaceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]NamespaceConfig{}, nil
		}
		return nil, gverrors.Wrap("LoadBootstrap", gverrors.KindIO, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, gverrors.New("LoadBootstrap", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument, "invalid JSONC: %v", err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return nil, gverrors.New("LoadBootstrap", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument, "invalid JSON: %v", err)
	}
	if cfg.Namespaces == nil {
		cfg.Namespaces = map[string]NamespaceConfig{}
	}
	return cfg.Namespaces, nil
}
