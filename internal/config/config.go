// Package config assembles the server configuration. Values are layered:
// built-in defaults, then an optional TOML file, then environment
// variables, then command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Port    int           `toml:"port"`
	Env     string        `toml:"env"`
	DB      DBConfig      `toml:"db"`
	SMTP    SMTPConfig    `toml:"smtp"`
	JWT     JWTConfig     `toml:"jwt"`
	Limiter LimiterConfig `toml:"limiter"`
	CORS    CORSConfig    `toml:"cors"`
}

type DBConfig struct {
	DSN          string        `toml:"dsn"`
	MaxOpenConns int           `toml:"max_open_conns"`
	MaxIdleConns int           `toml:"max_idle_conns"`
	MaxIdleTime  time.Duration `toml:"max_idle_time"`
}

type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Sender   string `toml:"sender"`
}

// Enabled reports whether notification emails should be sent.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

type JWTConfig struct {
	Secret string        `toml:"secret"`
	TTL    time.Duration `toml:"ttl"`
}

type LimiterConfig struct {
	Enabled bool    `toml:"enabled"`
	RPS     float64 `toml:"rps"`
	Burst   int     `toml:"burst"`
}

type CORSConfig struct {
	TrustedOrigins []string `toml:"trusted_origins"`
}

func Default() Config {
	return Config{
		Port: 4000,
		Env:  "development",
		DB: DBConfig{
			DSN:          "sqlite://nearhelp.db",
			MaxOpenConns: 25,
			MaxIdleConns: 25,
			MaxIdleTime:  15 * time.Minute,
		},
		SMTP: SMTPConfig{
			Port:   25,
			Sender: "NearHelp <no-reply@nearhelp.local>",
		},
		JWT: JWTConfig{TTL: 24 * time.Hour},
		Limiter: LimiterConfig{
			Enabled: true,
			RPS:     2,
			Burst:   4,
		},
	}
}

// setting is one configurable value reachable from the environment and the
// command line.
type setting struct {
	flag   string
	env    string
	usage  string
	isBool bool
	set    func(c *Config, v string) error
}

var settings = []setting{
	{flag: "port", env: "PORT", usage: "Server port", set: intVar(func(c *Config) *int { return &c.Port })},
	{flag: "env", env: "NEARHELP_ENV", usage: "Environment [development|staging|production]", set: stringVar(func(c *Config) *string { return &c.Env })},

	{flag: "db-dsn", env: "DB_DSN", usage: "Database DSN (postgres://... or sqlite://path)", set: stringVar(func(c *Config) *string { return &c.DB.DSN })},
	{flag: "db-max-open-conns", env: "DB_MAX_OPEN_CONNS", usage: "PostgreSQL max open connections", set: intVar(func(c *Config) *int { return &c.DB.MaxOpenConns })},
	{flag: "db-max-idle-conns", env: "DB_MAX_IDLE_CONNS", usage: "PostgreSQL max idle connections", set: intVar(func(c *Config) *int { return &c.DB.MaxIdleConns })},
	{flag: "db-max-idle-time", env: "DB_MAX_IDLE_TIME", usage: "PostgreSQL max connection idle time", set: durationVar(func(c *Config) *time.Duration { return &c.DB.MaxIdleTime })},

	{flag: "smtp-host", env: "SMTP_HOST", usage: "SMTP host, empty disables email", set: stringVar(func(c *Config) *string { return &c.SMTP.Host })},
	{flag: "smtp-port", env: "SMTP_PORT", usage: "SMTP port", set: intVar(func(c *Config) *int { return &c.SMTP.Port })},
	{flag: "smtp-username", env: "SMTP_USERNAME", usage: "SMTP username", set: stringVar(func(c *Config) *string { return &c.SMTP.Username })},
	{flag: "smtp-password", env: "SMTP_PASSWORD", usage: "SMTP password", set: stringVar(func(c *Config) *string { return &c.SMTP.Password })},
	{flag: "smtp-sender", env: "SMTP_SENDER", usage: "SMTP sender", set: stringVar(func(c *Config) *string { return &c.SMTP.Sender })},

	{flag: "jwt-secret", env: "JWT_SECRET", usage: "JWT secret, random per process when empty", set: stringVar(func(c *Config) *string { return &c.JWT.Secret })},
	{flag: "jwt-ttl", env: "JWT_TTL", usage: "Lifetime of issued tokens", set: durationVar(func(c *Config) *time.Duration { return &c.JWT.TTL })},

	{flag: "limiter-enabled", env: "LIMITER_ENABLED", usage: "Enable the per-client rate limiter", isBool: true, set: boolVar(func(c *Config) *bool { return &c.Limiter.Enabled })},
	{flag: "limiter-rps", env: "LIMITER_RPS", usage: "Rate limiter requests per second", set: floatVar(func(c *Config) *float64 { return &c.Limiter.RPS })},
	{flag: "limiter-burst", env: "LIMITER_BURST", usage: "Rate limiter burst", set: intVar(func(c *Config) *int { return &c.Limiter.Burst })},

	{flag: "cors-trusted-origins", env: "CORS_TRUSTED_ORIGINS", usage: "Trusted CORS origins (space separated)", set: func(c *Config, v string) error {
		c.CORS.TrustedOrigins = strings.Fields(v)
		return nil
	}},
}

// Load builds the configuration from args (without the program name) and
// the environment read through getenv.
func Load(args []string, getenv func(string) string) (Config, error) {
	cfg := Default()

	type assignment struct {
		s setting
		v string
	}
	var fromFlags []assignment

	fs := flag.NewFlagSet("nearhelp", flag.ContinueOnError)
	configPath := fs.String("config", getenv("NEARHELP_CONFIG"), "Path to a TOML config file")
	for _, s := range settings {
		record := func(v string) error {
			fromFlags = append(fromFlags, assignment{s: s, v: v})
			return nil
		}
		if s.isBool {
			fs.BoolFunc(s.flag, s.usage, record)
		} else {
			fs.Func(s.flag, s.usage, record)
		}
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *configPath != "" {
		if err := loadFile(&cfg, *configPath); err != nil {
			return Config{}, err
		}
	}

	for _, s := range settings {
		v := getenv(s.env)
		if v == "" {
			continue
		}
		if err := s.set(&cfg, v); err != nil {
			return Config{}, fmt.Errorf("config: environment %s: %w", s.env, err)
		}
	}

	for _, a := range fromFlags {
		if err := a.s.set(&cfg, a.v); err != nil {
			return Config{}, fmt.Errorf("config: flag -%s: %w", a.s.flag, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	md, err := toml.Decode(string(raw), cfg)
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config: unknown keys in %s: %v", path, undecoded)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.Env {
	case "development", "staging", "production":
	default:
		errs = append(errs, fmt.Errorf("unknown environment %q", c.Env))
	}
	if c.DB.DSN == "" {
		errs = append(errs, errors.New("database DSN must be provided"))
	}
	if c.DB.MaxOpenConns < 1 {
		errs = append(errs, errors.New("db max open connections must be positive"))
	}
	if c.SMTP.Enabled() {
		if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
			errs = append(errs, fmt.Errorf("smtp port %d out of range", c.SMTP.Port))
		}
		if c.SMTP.Sender == "" {
			errs = append(errs, errors.New("smtp sender must be provided"))
		}
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("jwt ttl must be positive"))
	}
	if c.Limiter.Enabled && (c.Limiter.RPS <= 0 || c.Limiter.Burst < 1) {
		errs = append(errs, errors.New("limiter rps and burst must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func stringVar(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func intVar(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func floatVar(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

func boolVar(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func durationVar(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}
