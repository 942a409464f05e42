// Package config はスコアボードサービスの設定を管理する。
//
// YAMLファイルを読み込んだ後に環境変数で上書きする。ファイルが存在しない場合は
// デフォルト値と環境変数のみで構成する。
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/scoreboard/pkg/database"
	"gopkg.in/yaml.v3"
)

// AuthPolicy は/scoresルートに認証を要求するかどうかの方針。
// 一部のルートだけを保護する構成は表現できない。
type AuthPolicy string

const (
	// AuthPolicyRequired はすべての/scoresルートでBearerトークンを要求する。
	AuthPolicyRequired AuthPolicy = "required"
	// AuthPolicyDisabled はすべての/scoresルートを認証なしで公開する。
	AuthPolicyDisabled AuthPolicy = "disabled"
)

// Config はサービス全体の設定。
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig はHTTPサーバーの設定。
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// TrustedProxies はX-Forwarded-For等を信頼するプロキシのIPまたはCIDR。
	// 空の場合はどのプロキシも信頼せず、接続元アドレスをクライアントIPとする。
	TrustedProxies  []string      `yaml:"trusted_proxies"`
}

// DatabaseConfig はデータベース接続の設定。
// DSNが空の場合、PostgreSQLではHost等の個別項目から接続文字列を組み立てる。
type DatabaseConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Name         string `yaml:"name"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	SSLMode      string `yaml:"sslmode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// AuthConfig はBearerトークン検証の設定。
type AuthConfig struct {
	Policy AuthPolicy `yaml:"policy"`
	Secret string     `yaml:"secret"`
}

// LeaderboardConfig は一覧取得の件数に関する設定。
type LeaderboardConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// RateLimitConfig はスコア登録のレート制限。SubmitPerSecondが0の場合は無効。
type RateLimitConfig struct {
	SubmitPerSecond float64 `yaml:"submit_per_second"`
	Burst           int     `yaml:"burst"`
}

// LoggingConfig はログ出力の設定。
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default はデフォルト値で埋めた設定を返す。
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "3000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       database.DriverPostgres,
			Host:         "localhost",
			Port:         5432,
			SSLMode:      "disable",
			MaxOpenConns: 10,
		},
		Auth: AuthConfig{
			Policy: AuthPolicyRequired,
		},
		Leaderboard: LeaderboardConfig{
			DefaultLimit: 10,
			MaxLimit:     1000,
		},
		RateLimit: RateLimitConfig{
			Burst: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load は設定ファイルと環境変数から設定を読み込み、検証する。
// ファイルが存在しない場合はデフォルト値と環境変数のみを使用する。
func Load(filename string) (*Config, error) {
	return load(filename, os.Getenv)
}

// load はLoadの本体。テストのために環境変数の取得関数を差し替えられる。
func load(filename string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// 環境変数のみで構成する
		case err != nil:
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("設定ファイルのパースに失敗: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv は環境変数が設定されている項目を上書きする。
func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	if v := getenv("TRUSTED_PROXIES"); v != "" {
		c.Server.TrustedProxies = splitList(v)
	}

	if v := getenv("DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DB_PORTが不正です: %w", err)
		}
		c.Database.Port = port
	}
	if v := getenv("DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}

	// SECRET_KEYは既存の発行元との互換用。JWT_SECRETが優先される。
	if v := getenv("SECRET_KEY"); v != "" {
		c.Auth.Secret = v
	}
	if v := getenv("JWT_SECRET"); v != "" {
		c.Auth.Secret = v
	}
	if v := getenv("AUTH_POLICY"); v != "" {
		c.Auth.Policy = AuthPolicy(strings.ToLower(v))
	}

	if v := getenv("SUBMIT_RATE_LIMIT"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SUBMIT_RATE_LIMITが不正です: %w", err)
		}
		c.RateLimit.SubmitPerSecond = r
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	return nil
}

// Validate は設定値の整合性を検証する。
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.portが未設定です"))
	}
	for _, p := range c.Server.TrustedProxies {
		if !isIPOrCIDR(p) {
			errs = append(errs, fmt.Errorf("server.trusted_proxiesの値が不正です: %q", p))
		}
	}

	switch c.Database.Driver {
	case database.DriverPostgres:
		if c.Database.DSN == "" && c.Database.Name == "" {
			errs = append(errs, errors.New("database.dsnまたはdatabase.nameを設定してください"))
		}
	case database.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("database.driverが不正です: %q", c.Database.Driver))
	}

	switch c.Auth.Policy {
	case AuthPolicyRequired:
		if c.Auth.Secret == "" {
			errs = append(errs, errors.New("auth.policyがrequiredの場合はauth.secretが必要です"))
		}
	case AuthPolicyDisabled:
	default:
		errs = append(errs, fmt.Errorf("auth.policyが不正です: %q", c.Auth.Policy))
	}

	if c.Leaderboard.DefaultLimit <= 0 {
		errs = append(errs, errors.New("leaderboard.default_limitは正の整数である必要があります"))
	}
	if c.Leaderboard.MaxLimit < c.Leaderboard.DefaultLimit {
		errs = append(errs, errors.New("leaderboard.max_limitはdefault_limit以上である必要があります"))
	}

	if c.RateLimit.SubmitPerSecond < 0 {
		errs = append(errs, errors.New("rate_limit.submit_per_secondは0以上である必要があります"))
	}
	if c.RateLimit.SubmitPerSecond > 0 && c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("rate_limit.burstは正の整数である必要があります"))
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.formatが不正です: %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// DataSource はドライバに渡す接続文字列を返す。
func (d DatabaseConfig) DataSource() string {
	if d.DSN != "" {
		return d.DSN
	}
	if d.Driver == database.DriverSQLite {
		return "file:scoreboard.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	if d.User != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{d.SSLMode}}.Encode()
	}
	return u.String()
}

// splitList はカンマ区切りの文字列を空要素を除いて分割する。
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// isIPOrCIDR はsがIPアドレスまたはCIDR表記かどうかを返す。
func isIPOrCIDR(s string) bool {
	if net.ParseIP(s) != nil {
		return true
	}
	_, _, err := net.ParseCIDR(s)
	return err == nil
}
