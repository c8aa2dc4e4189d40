package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig  `json:"server"`
	PRPC    PRPCConfig    `json:"prpc"`
	Probe   ProbeConfig   `json:"probe"`
	Collect CollectConfig `json:"collect"`
	Cache   CacheConfig   `json:"cache"`
	GeoIP   GeoIPConfig   `json:"geoip"`
	MongoDB MongoDBConfig `json:"mongodb"`
	Discord DiscordConfig `json:"discord"`
}

type ServerConfig struct {
	Port           int      `json:"port"`
	Host           string   `json:"host"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type PRPCConfig struct {
	// Base endpoint answering getClusterNodes; per-node calls go to
	// each node's own advertised RPC address.
	Endpoint  string `json:"endpoint"`
	TimeoutMs int    `json:"timeout_ms"`
}

type ProbeConfig struct {
	Enabled     bool `json:"enabled"`
	Concurrency int  `json:"concurrency"`
	TimeoutMs   int  `json:"timeout_ms"`
}

type CollectConfig struct {
	Concurrency     int `json:"concurrency"`
	TimeoutMs       int `json:"timeout_ms"`
	MaxNodes        int `json:"max_nodes"`
	IntervalSeconds int `json:"interval_seconds"` // 0 disables the loop
}

type CacheConfig struct {
	SnapshotTTL  int `json:"snapshot_ttl_seconds"`
	NodeTTL      int `json:"node_ttl_seconds"`
	LiveStatsTTL int `json:"live_stats_ttl_seconds"`
}

type GeoIPConfig struct {
	DBPath string `json:"db_path"`
}

type MongoDBConfig struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
	Enabled  bool   `json:"enabled"`
}

type DiscordConfig struct {
	BotToken  string `json:"bot_token"`
	ChannelID string `json:"channel_id"`
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           8080,
			Host:           "0.0.0.0",
			AllowedOrigins: []string{"*"},
		},
		PRPC: PRPCConfig{
			Endpoint:  "https://apis.devnet.xandeum.com:8899",
			TimeoutMs: 10000,
		},
		Probe: ProbeConfig{
			Enabled:     true,
			Concurrency: 10,
			TimeoutMs:   5000,
		},
		Collect: CollectConfig{
			Concurrency:     20,
			TimeoutMs:       7000,
			MaxNodes:        0, // unlimited
			IntervalSeconds: 0, // loop disabled, trigger via API
		},
		Cache: CacheConfig{
			SnapshotTTL:  30,
			NodeTTL:      60,
			LiveStatsTTL: 15,
		},
		GeoIP: GeoIPConfig{
			DBPath: "",
		},
		MongoDB: MongoDBConfig{
			URI:      "mongodb://localhost:27017",
			Database: "pnodewatch",
			Enabled:  false,
		},
		Discord: DiscordConfig{},
	}

	// Load from config file if exists
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config/config.json"
	}

	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err == nil {
			defer file.Close()
			decoder := json.NewDecoder(file)
			if err := decoder.Decode(cfg); err != nil {
				fmt.Printf("Warning: Failed to decode config file: %v\n", err)
			}
		}
	}

	// Environment variables override the config file
	loadEnv(cfg)

	// Command-line flags override everything
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	var serverPort int
	var serverHost string
	var rpcEndpoint string

	fs.IntVar(&serverPort, "port", 0, "Server port")
	fs.StringVar(&serverHost, "host", "", "Server host")
	fs.StringVar(&rpcEndpoint, "endpoint", "", "pRPC gossip endpoint URL")

	_ = fs.Parse(os.Args[1:])

	if isFlagPassed(fs, "port") {
		cfg.Server.Port = serverPort
	}
	if isFlagPassed(fs, "host") {
		cfg.Server.Host = serverHost
	}
	if isFlagPassed(fs, "endpoint") {
		cfg.PRPC.Endpoint = rpcEndpoint
	}

	if cfg.PRPC.Endpoint == "" {
		return nil, fmt.Errorf("prpc endpoint must not be empty")
	}

	return cfg, nil
}

func isFlagPassed(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func loadEnv(cfg *Config) {
	// Server
	if val := os.Getenv("SERVER_PORT"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = p
		}
	}
	if val := os.Getenv("SERVER_HOST"); val != "" {
		cfg.Server.Host = val
	}
	if val := os.Getenv("ALLOWED_ORIGINS"); val != "" {
		parts := strings.Split(val, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.Server.AllowedOrigins = parts
	}

	// PRPC
	if val := os.Getenv("PRPC_ENDPOINT"); val != "" {
		cfg.PRPC.Endpoint = val
	}
	if val := os.Getenv("PRPC_TIMEOUT_MS"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.PRPC.TimeoutMs = p
		}
	}

	// Probe
	if val := os.Getenv("PROBE_ENABLED"); val != "" {
		cfg.Probe.Enabled = val == "true" || val == "1"
	}
	if val := os.Getenv("PROBE_CONCURRENCY"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Probe.Concurrency = p
		}
	}
	if val := os.Getenv("PROBE_TIMEOUT_MS"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Probe.TimeoutMs = p
		}
	}

	// Collection
	if val := os.Getenv("COLLECT_CONCURRENCY"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Collect.Concurrency = p
		}
	}
	if val := os.Getenv("COLLECT_TIMEOUT_MS"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Collect.TimeoutMs = p
		}
	}
	if val := os.Getenv("COLLECT_MAX_NODES"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Collect.MaxNodes = p
		}
	}
	if val := os.Getenv("COLLECT_INTERVAL"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Collect.IntervalSeconds = p
		}
	}

	// Cache
	if val := os.Getenv("SNAPSHOT_CACHE_TTL"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Cache.SnapshotTTL = p
		}
	}
	if val := os.Getenv("NODE_CACHE_TTL"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Cache.NodeTTL = p
		}
	}
	if val := os.Getenv("LIVE_STATS_CACHE_TTL"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Cache.LiveStatsTTL = p
		}
	}

	// GeoIP
	if val := os.Getenv("GEOIP_DB_PATH"); val != "" {
		cfg.GeoIP.DBPath = val
	}

	// MongoDB
	if val := os.Getenv("MONGODB_URI"); val != "" {
		cfg.MongoDB.URI = val
		cfg.MongoDB.Enabled = true
	}
	if val := os.Getenv("MONGODB_DATABASE"); val != "" {
		cfg.MongoDB.Database = val
	}
	if val := os.Getenv("MONGODB_ENABLED"); val != "" {
		cfg.MongoDB.Enabled = val == "true" || val == "1"
	}

	// Discord
	if val := os.Getenv("DISCORD_BOT_TOKEN"); val != "" {
		cfg.Discord.BotToken = val
	}
	if val := os.Getenv("DISCORD_CHANNEL_ID"); val != "" {
		cfg.Discord.ChannelID = val
	}
}

// Helper methods for duration conversion
func (c *Config) PRPCTimeout() time.Duration {
	return time.Duration(c.PRPC.TimeoutMs) * time.Millisecond
}

func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutMs) * time.Millisecond
}

func (c *Config) CollectTimeout() time.Duration {
	return time.Duration(c.Collect.TimeoutMs) * time.Millisecond
}

func (c *Config) CollectInterval() time.Duration {
	return time.Duration(c.Collect.IntervalSeconds) * time.Second
}

func (c *Config) SnapshotCacheTTL() time.Duration {
	return time.Duration(c.Cache.SnapshotTTL) * time.Second
}

func (c *Config) NodeCacheTTL() time.Duration {
	return time.Duration(c.Cache.NodeTTL) * time.Second
}

func (c *Config) LiveStatsCacheTTL() time.Duration {
	return time.Duration(c.Cache.LiveStatsTTL) * time.Second
}
