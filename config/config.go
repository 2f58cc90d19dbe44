package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Blockade BlockadeConfig `mapstructure:"blockade"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type DatabaseConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Driver   string         `mapstructure:"driver"` // "gorm" or "sql"
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type OpenAIConfig struct {
	APIKey       string  `mapstructure:"api_key"`
	Organization string  `mapstructure:"organization"`
	Model        string  `mapstructure:"model"`
	Temperature  float64 `mapstructure:"temperature"`
	MaxTokens    int64   `mapstructure:"max_tokens"`
}

type BlockadeConfig struct {
	APIKey        string `mapstructure:"api_key"`
	PusherKey     string `mapstructure:"pusher_key"`
	PusherCluster string `mapstructure:"pusher_cluster"`
}

type GameConfig struct {
	DebounceMS    int `mapstructure:"debounce_ms"`
	JoinTimeoutMS int `mapstructure:"join_timeout_ms"`
}

// Debounce is the delay applied before republishing the last result after
// a join or leave, so rapid roster churn is batched into one publish.
func (g GameConfig) Debounce() time.Duration {
	if g.DebounceMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(g.DebounceMS) * time.Millisecond
}

// JoinTimeout bounds the Phoenix channel join handshake.
func (g GameConfig) JoinTimeout() time.Duration {
	if g.JoinTimeoutMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(g.JoinTimeoutMS) * time.Millisecond
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":3000")
	viper.SetDefault("server.rpc_address", ":3001")
	viper.SetDefault("server.metrics_address", ":9100")
	viper.SetDefault("database.driver", "gorm")
	viper.SetDefault("openai.model", "gpt-3.5-turbo")
	viper.SetDefault("openai.temperature", 0.6)
	viper.SetDefault("openai.max_tokens", 500)
	viper.SetDefault("blockade.pusher_cluster", "mt1")
	viper.SetDefault("game.debounce_ms", 2000)
	viper.SetDefault("game.join_timeout_ms", 10000)

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
