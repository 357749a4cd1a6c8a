package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MySQLShard addresses one MySQL storage shard (DB<i>_HOST, DB<i>_PORT, ...).
type MySQLShard struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// Config is the runtime configuration of the counter service.
type Config struct {
	HTTPAddr     string
	ShardCount   int
	ShardMapName string

	StorageDriver    string
	StorageShards    int
	SQLiteDir        string
	MySQLShards      []MySQLShard
	DBConnectRetries int
	MigrateRetries   int

	RedisAddr string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	ActorTimeout  time.Duration
	MailboxSize   int
	CacheTTL      time.Duration
	CacheCapacity int

	LogLevel string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("shard_count", 4)
	v.SetDefault("shard_map_name", "shardmap")
	v.SetDefault("storage_driver", "sqlite3")
	v.SetDefault("storage_shards", 1)
	v.SetDefault("sqlite_dir", "./data")
	v.SetDefault("db_connect_retries", 10)
	v.SetDefault("migrate_retries", 3)
	v.SetDefault("redis_addr", "")
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", "counter-topic")
	v.SetDefault("kafka_group_id", "counter-watch-group")
	v.SetDefault("actor_timeout", 5*time.Second)
	v.SetDefault("mailbox_size", 64)
	v.SetDefault("cache_ttl", 10*time.Minute)
	v.SetDefault("cache_capacity", 10000)
	v.SetDefault("log_level", "info")
}

// Load reads configuration from the environment and, when configFile is
// set, from that file. Environment variables win over the file.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		HTTPAddr:         v.GetString("http_addr"),
		ShardCount:       v.GetInt("shard_count"),
		ShardMapName:     v.GetString("shard_map_name"),
		StorageDriver:    v.GetString("storage_driver"),
		StorageShards:    v.GetInt("storage_shards"),
		SQLiteDir:        v.GetString("sqlite_dir"),
		DBConnectRetries: v.GetInt("db_connect_retries"),
		MigrateRetries:   v.GetInt("migrate_retries"),
		RedisAddr:        v.GetString("redis_addr"),
		KafkaBrokers:     splitList(v.GetString("kafka_brokers")),
		KafkaTopic:       v.GetString("kafka_topic"),
		KafkaGroupID:     v.GetString("kafka_group_id"),
		ActorTimeout:     v.GetDuration("actor_timeout"),
		MailboxSize:      v.GetInt("mailbox_size"),
		CacheTTL:         v.GetDuration("cache_ttl"),
		CacheCapacity:    v.GetInt("cache_capacity"),
		LogLevel:         v.GetString("log_level"),
	}

	if cfg.StorageDriver == "mysql" {
		for i := 1; i <= cfg.StorageShards; i++ {
			cfg.MySQLShards = append(cfg.MySQLShards, MySQLShard{
				Host: v.GetString(fmt.Sprintf("db%d_host", i)),
				Port: v.GetString(fmt.Sprintf("db%d_port", i)),
				User: v.GetString(fmt.Sprintf("db%d_user", i)),
				Pass: v.GetString(fmt.Sprintf("db%d_pass", i)),
				Name: v.GetString(fmt.Sprintf("db%d_name", i)),
			})
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.ShardCount <= 0 {
		errs = append(errs, fmt.Errorf("shard_count must be positive, got %d", c.ShardCount))
	}
	if c.ShardMapName == "" {
		errs = append(errs, errors.New("shard_map_name must not be empty"))
	}
	if c.StorageShards <= 0 {
		errs = append(errs, fmt.Errorf("storage_shards must be positive, got %d", c.StorageShards))
	}
	switch c.StorageDriver {
	case "sqlite3":
	case "mysql":
		for i, shard := range c.MySQLShards {
			if shard.Host == "" || shard.Name == "" {
				errs = append(errs, fmt.Errorf("mysql shard %d needs DB%d_HOST and DB%d_NAME", i+1, i+1, i+1))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage_driver %q", c.StorageDriver))
	}
	if c.ActorTimeout < 0 {
		errs = append(errs, fmt.Errorf("actor_timeout must not be negative, got %s", c.ActorTimeout))
	}
	if c.CacheCapacity < 0 {
		errs = append(errs, fmt.Errorf("cache_capacity must not be negative, got %d", c.CacheCapacity))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
