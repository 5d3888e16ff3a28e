package buildCFG

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"

	"eventhub/internal/blob"
	"eventhub/internal/mailer"
	"eventhub/internal/service"
)

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

func BuildServerConfig(cfg *config.Config, log *zerolog.Logger) ServerConfig {
	port := cfg.GetString("server.port")
	if port == "" {
		port = "8080"
		log.Warn().Msg("server.port not set, using 8080")
	}
	timeout := cfg.GetDuration("server.shutdown_timeout")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return ServerConfig{
		Port:            port,
		ShutdownTimeout: timeout,
		MaxUploadBytes:  int64(cfg.GetInt("server.max_upload_mb")) << 20,
	}
}

type StoreConfig struct {
	// Driver is "postgres" or "memory".
	Driver         string
	MigrationsPath string
	// RollbackOnShutdown drops the schema on exit, for throwaway environments.
	RollbackOnShutdown bool
}

func BuildStoreConfig(cfg *config.Config, log *zerolog.Logger) (StoreConfig, error) {
	sc := StoreConfig{
		Driver:             strings.ToLower(cfg.GetString("store.driver")),
		MigrationsPath:     cfg.GetString("store.migrations"),
		RollbackOnShutdown: cfg.GetBool("store.rollback_on_shutdown"),
	}
	if sc.Driver == "" {
		sc.Driver = "postgres"
	}
	if sc.MigrationsPath == "" {
		sc.MigrationsPath = "migrations/postgres"
	}
	if sc.Driver != "postgres" && sc.Driver != "memory" {
		return StoreConfig{}, fmt.Errorf("unknown store driver %q", sc.Driver)
	}
	if sc.Driver == "memory" {
		log.Warn().Msg("using in-memory store, data is lost on restart")
	}
	return sc, nil
}

func BuildDBConfig(cfg *config.Config, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	master := cfg.GetString("db.master_dsn")
	if master == "" {
		return "", nil, nil, errors.New("db.master_dsn is required")
	}
	slaves := cfg.GetStringSlice("db.slave_dsns")

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.GetInt("db.max_open_conns"),
		MaxIdleConns:    cfg.GetInt("db.max_idle_conns"),
		ConnMaxLifetime: cfg.GetDuration("db.conn_max_lifetime"),
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = 30 * time.Minute
	}
	log.Info().Int("slaves", len(slaves)).Int("max_open", opts.MaxOpenConns).Msg("db config loaded")
	return master, slaves, opts, nil
}

type RabbitConfig struct {
	Enabled  bool
	Url      string
	Exchange string
	Queue    string
}

func BuildRabbitConfig(cfg *config.Config, log *zerolog.Logger) (RabbitConfig, error) {
	rc := RabbitConfig{
		Enabled:  cfg.GetBool("rabbit.enabled"),
		Url:      cfg.GetString("rabbit.url"),
		Exchange: cfg.GetString("rabbit.exchange"),
		Queue:    cfg.GetString("rabbit.queue"),
	}
	if !rc.Enabled {
		log.Info().Msg("rabbit disabled, emails are sent inline")
		return rc, nil
	}
	if rc.Url == "" {
		return RabbitConfig{}, errors.New("rabbit.url is required when rabbit is enabled")
	}
	if rc.Exchange == "" {
		rc.Exchange = "eventhub.delayed"
	}
	if rc.Queue == "" {
		rc.Queue = "eventhub.mail"
	}
	return rc, nil
}

// BuildMailConfig returns ok=false when no SMTP host is set; mail is then
// only logged.
func BuildMailConfig(cfg *config.Config, log *zerolog.Logger) (mailer.Config, bool) {
	mc := mailer.Config{
		Host:     cfg.GetString("smtp.host"),
		Port:     cfg.GetInt("smtp.port"),
		Username: cfg.GetString("smtp.username"),
		Password: cfg.GetString("smtp.password"),
		From:     cfg.GetString("smtp.from"),
		Timeout:  cfg.GetDuration("smtp.timeout"),
	}
	if mc.Host == "" {
		log.Warn().Msg("smtp.host not set, emails will only be logged")
		return mc, false
	}
	if mc.Port == 0 {
		mc.Port = 587
	}
	if mc.From == "" {
		mc.From = mc.Username
	}
	return mc, true
}

type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

func BuildAuthConfig(cfg *config.Config, log *zerolog.Logger) (AuthConfig, error) {
	ac := AuthConfig{
		JWTSecret:  cfg.GetString("auth.jwt_secret"),
		TokenTTL:   cfg.GetDuration("auth.token_ttl"),
		BcryptCost: cfg.GetInt("auth.bcrypt_cost"),
	}
	if ac.JWTSecret == "" {
		return AuthConfig{}, errors.New("auth.jwt_secret is required")
	}
	if len(ac.JWTSecret) < 32 {
		log.Warn().Msg("auth.jwt_secret is shorter than 32 bytes")
	}
	if ac.TokenTTL <= 0 {
		ac.TokenTTL = 24 * time.Hour
	}
	return ac, nil
}

func BuildServiceConfig(cfg *config.Config) service.Config {
	return service.Config{
		AppURL:   cfg.GetString("app.url"),
		OTPTTL:   cfg.GetDuration("auth.otp_ttl"),
		Currency: strings.ToLower(cfg.GetString("app.currency")),
	}
}

// BuildStripeKey returns an empty key when online payments are off.
func BuildStripeKey(cfg *config.Config, log *zerolog.Logger) string {
	key := cfg.GetString("stripe.secret_key")
	if key == "" {
		log.Info().Msg("stripe.secret_key not set, online payments disabled")
	}
	return key
}

type BlobConfig struct {
	// Driver is "s3" or "memory".
	Driver string
	S3     blob.S3Config
}

func BuildBlobConfig(cfg *config.Config, log *zerolog.Logger) (BlobConfig, error) {
	bc := BlobConfig{
		Driver: strings.ToLower(cfg.GetString("blob.driver")),
		S3: blob.S3Config{
			Region:          cfg.GetString("blob.s3.region"),
			Bucket:          cfg.GetString("blob.s3.bucket"),
			Endpoint:        cfg.GetString("blob.s3.endpoint"),
			AccessKeyID:     cfg.GetString("blob.s3.access_key_id"),
			SecretAccessKey: cfg.GetString("blob.s3.secret_access_key"),
			PathStyle:       cfg.GetBool("blob.s3.path_style"),
			PublicBaseURL:   cfg.GetString("blob.s3.public_base_url"),
		},
	}
	switch bc.Driver {
	case "", "memory":
		bc.Driver = "memory"
		log.Warn().Msg("using in-memory blob store, uploads are lost on restart")
	case "s3":
		if bc.S3.Bucket == "" {
			return BlobConfig{}, errors.New("blob.s3.bucket is required for the s3 driver")
		}
	default:
		return BlobConfig{}, fmt.Errorf("unknown blob driver %q", bc.Driver)
	}
	return bc, nil
}

type AdminConfig struct {
	Name     string
	Email    string
	Password string
}

// BuildAdminConfig returns ok=false when no bootstrap admin is configured.
func BuildAdminConfig(cfg *config.Config) (AdminConfig, bool) {
	ac := AdminConfig{
		Name:     cfg.GetString("admin.name"),
		Email:    cfg.GetString("admin.email"),
		Password: cfg.GetString("admin.password"),
	}
	if ac.Email == "" || ac.Password == "" {
		return ac, false
	}
	if ac.Name == "" {
		ac.Name = "Administrator"
	}
	return ac, true
}
