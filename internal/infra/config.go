package infra

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config - корневая структура конфигурации сервиса.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// TrustedProxies - CIDR балансировщиков, чьим X-Forwarded-For/X-Real-IP верим.
	// Пусто - клиентом считается TCP-пир.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// Addr возвращает адрес для net/http
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ParseTrustedProxies разбирает TrustedProxies. Одиночный адрес трактуется как /32 (/128).
func (c ServerConfig) ParseTrustedProxies() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("config: server.trusted_proxies: %w", err)
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("config: server.trusted_proxies: %w", err)
		}
		out = append(out, p.Masked())
	}
	return out, nil
}

// GRPCConfig - адрес gRPC-листенера (пустой - gRPC выключен).
type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

// MetricsConfig - отдельный листенер для Prometheus.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL          string        `mapstructure:"url"`
	MaxConns     int32         `mapstructure:"max_conns"`
	MinConns     int32         `mapstructure:"min_conns"`
	PingAttempts uint          `mapstructure:"ping_attempts"`
	PingDelay    time.Duration `mapstructure:"ping_delay"`
}

// RedisConfig описывает подключение к Redis (кэш личностей для Request Gate).
// Пустой Addr отключает кэш.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	IdentityTTL time.Duration `mapstructure:"identity_ttl"`
}

// AuthConfig содержит настройки подписи JWT и хэширования паролей.
// Сам секрет в конфиг-файл не кладем: он приходит из ENV или из файла по пути.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	JWTSecretPath string        `mapstructure:"jwt_secret_path"`
	Issuer        string        `mapstructure:"issuer"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	BcryptCost    int           `mapstructure:"bcrypt_cost"`
	LoginRPS      float64       `mapstructure:"login_rps"`
	LoginBurst    int           `mapstructure:"login_burst"`
	SigningSecret []byte
}

// AuditConfig - параметры буфера журнала аутентификации.
type AuditConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	return loadFrom(v)
}

func loadFrom(v *viper.Viper) (*Config, error) {
	// 2. ENV перекрывает файл: AUTH_TOKEN_TTL=1h перекроет auth.token_ttl
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Дефолты. Ключ должен быть известен viper, иначе Unmarshal не увидит ENV.
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет - работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Секрет подписи: сначала ENV (Docker/K8s secret), потом файл
	secret, err := loadSecretResource(cfg.Auth.JWTSecretPath, cfg.Auth.JWTSecret)
	if err != nil {
		return nil, err
	}
	cfg.Auth.SigningSecret = secret

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("grpc.addr", "")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.ping_attempts", 5)
	v.SetDefault("database.ping_delay", 500*time.Millisecond)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.identity_ttl", 30*time.Second)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_secret_path", "")
	v.SetDefault("auth.issuer", "taskmanager")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.login_rps", 1.0)
	v.SetDefault("auth.login_burst", 5)
	v.SetDefault("audit.buffer_size", 10000)
	v.SetDefault("audit.batch_size", 100)
	v.SetDefault("audit.flush_interval", 500*time.Millisecond)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// Validate проверяет то, без чего сервис стартовать не должен.
// Вызывается в main до создания компонентов: падаем сразу, а не на первом запросе.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("config: database.url is required")
	}
	if len(c.Auth.SigningSecret) == 0 {
		return errors.New("config: signing secret is required (AUTH_JWT_SECRET or auth.jwt_secret_path)")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("config: auth.token_ttl must be positive, got %s", c.Auth.TokenTTL)
	}
	if c.Auth.LoginRPS <= 0 || c.Auth.LoginBurst <= 0 {
		return errors.New("config: auth.login_rps and auth.login_burst must be positive")
	}
	if _, err := c.Server.ParseTrustedProxies(); err != nil {
		return err
	}
	if c.Audit.BufferSize <= 0 || c.Audit.BatchSize <= 0 {
		return errors.New("config: audit.buffer_size and audit.batch_size must be positive")
	}
	return nil
}

// loadSecretResource - секрет из значения (ENV) или из файла по пути.
// Пробелы и перевод строки по краям отрезаем: файлы секретов обычно заканчиваются \n.
// Указанный, но нечитаемый файл - ошибка: иначе старт упадет с невнятным "secret is required".
func loadSecretResource(path string, data string) ([]byte, error) {
	if data = strings.TrimSpace(data); data != "" {
		return []byte(data), nil
	}
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read auth.jwt_secret_path: %w", err)
	}
	return []byte(strings.TrimSpace(string(raw))), nil
}
