package buildCFG

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"
)

// Getter is the part of the wbf config loader the builders read from.
type Getter interface {
	GetString(key string) string
	GetInt(key string) int
}

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	TransportLocal    = "local"
	TransportRabbitMQ = "rabbitmq"

	RateStoreMemory = "memory"
	RateStoreRedis  = "redis"
)

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
	// TrustedProxies may set X-Forwarded-For. Empty means the socket
	// address is the client address.
	TrustedProxies []string
}

type RabbitConfig struct {
	Url      string
	Exchange string
	Queue    string
}

type NotifyConfig struct {
	Transport   string
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

type MailConfig struct {
	From         string
	StaffAddress string
	OfficeName   string
	OfficePhone  string
	OfficeEmail  string
}

type PaymentConfig struct {
	BaseURL string
	Amount  int
}

type RateLimitConfig struct {
	Store    string
	RedisURL string
	Limit    int
	Window   time.Duration
}

type ExportConfig struct {
	Dir string
}

func stringOr(cfg Getter, key, def string) string {
	if v := strings.TrimSpace(cfg.GetString(key)); v != "" {
		return v
	}
	return def
}

func intOr(cfg Getter, key string, def int) int {
	if v := cfg.GetInt(key); v > 0 {
		return v
	}
	return def
}

func listOf(cfg Getter, key string) []string {
	var out []string
	for _, v := range strings.Split(cfg.GetString(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func durationOr(cfg Getter, key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(cfg.GetString(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, raw)
	}
	return d, nil
}

func BuildServerConfig(cfg Getter, log *zerolog.Logger) (ServerConfig, error) {
	port := stringOr(cfg, "server.port", "3000")
	if env := strings.TrimSpace(os.Getenv("PORT")); env != "" {
		log.Info().Str("port", env).Msg("port taken from PORT environment variable")
		port = env
	}

	shutdown, err := durationOr(cfg, "server.shutdown_timeout", 10*time.Second)
	if err != nil {
		return ServerConfig{}, err
	}
	return ServerConfig{
		Port:            port,
		ShutdownTimeout: shutdown,
		TrustedProxies:  listOf(cfg, "server.trusted_proxies"),
	}, nil
}

func BuildStorageDriver(cfg Getter) (string, error) {
	driver := stringOr(cfg, "storage.driver", StorageMemory)
	switch driver {
	case StorageMemory, StoragePostgres:
		return driver, nil
	default:
		return "", fmt.Errorf("unknown storage driver %q", driver)
	}
}

func BuildDBConfig(cfg Getter, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	master := cfg.GetString("postgres.master_dsn")
	if master == "" {
		return "", nil, nil, errors.New("postgres.master_dsn is required")
	}

	slaves := listOf(cfg, "postgres.slave_dsns")

	lifetime, err := durationOr(cfg, "postgres.conn_max_lifetime", 5*time.Minute)
	if err != nil {
		return "", nil, nil, err
	}

	opts := &dbpg.Options{
		MaxOpenConns:    intOr(cfg, "postgres.max_open_conns", 10),
		MaxIdleConns:    intOr(cfg, "postgres.max_idle_conns", 5),
		ConnMaxLifetime: lifetime,
	}
	log.Debug().Int("slaves", len(slaves)).Int("max_open_conns", opts.MaxOpenConns).Msg("postgres config built")
	return master, slaves, opts, nil
}

func BuildRabbitConfig(cfg Getter, log *zerolog.Logger) (RabbitConfig, error) {
	rc := RabbitConfig{
		Url:      cfg.GetString("rabbitmq.url"),
		Exchange: stringOr(cfg, "rabbitmq.exchange", "eventform"),
		Queue:    stringOr(cfg, "rabbitmq.queue", "eventform.notifications"),
	}
	if rc.Url == "" {
		return RabbitConfig{}, errors.New("rabbitmq.url is required")
	}
	log.Debug().Str("exchange", rc.Exchange).Str("queue", rc.Queue).Msg("rabbitmq config built")
	return rc, nil
}

func BuildNotifyConfig(cfg Getter) (NotifyConfig, error) {
	nc := NotifyConfig{
		Transport: stringOr(cfg, "notify.transport", TransportLocal),
		Workers:   intOr(cfg, "notify.workers", 4),
		QueueSize: intOr(cfg, "notify.queue_size", 256),
	}
	switch nc.Transport {
	case TransportLocal, TransportRabbitMQ:
	default:
		return NotifyConfig{}, fmt.Errorf("unknown notify transport %q", nc.Transport)
	}

	timeout, err := durationOr(cfg, "notify.send_timeout", 30*time.Second)
	if err != nil {
		return NotifyConfig{}, err
	}
	nc.SendTimeout = timeout
	return nc, nil
}

func BuildSMTPConfig(cfg Getter) SMTPConfig {
	return SMTPConfig{
		Host:     stringOr(cfg, "smtp.host", "localhost"),
		Port:     intOr(cfg, "smtp.port", 587),
		Username: cfg.GetString("smtp.username"),
		Password: cfg.GetString("smtp.password"),
	}
}

func BuildMailConfig(cfg Getter) MailConfig {
	staff := stringOr(cfg, "mail.staff_address", "event@example.com")
	return MailConfig{
		From:         stringOr(cfg, "mail.from", "noreply@example.com"),
		StaffAddress: staff,
		OfficeName:   stringOr(cfg, "mail.office.name", "イベント事務局"),
		OfficePhone:  stringOr(cfg, "mail.office.phone", "03-1234-5678"),
		OfficeEmail:  stringOr(cfg, "mail.office.email", staff),
	}
}

func BuildPaymentConfig(cfg Getter) (PaymentConfig, error) {
	pc := PaymentConfig{
		BaseURL: stringOr(cfg, "payment.base_url", "https://payment.example.com/checkout"),
		Amount:  intOr(cfg, "payment.amount", 1000),
	}
	if !strings.HasPrefix(pc.BaseURL, "http://") && !strings.HasPrefix(pc.BaseURL, "https://") {
		return PaymentConfig{}, fmt.Errorf("payment.base_url must be an http(s) URL, got %q", pc.BaseURL)
	}
	return pc, nil
}

func BuildRateLimitConfig(cfg Getter) (RateLimitConfig, error) {
	rc := RateLimitConfig{
		Store:    stringOr(cfg, "ratelimit.store", RateStoreMemory),
		RedisURL: cfg.GetString("ratelimit.redis_url"),
		Limit:    intOr(cfg, "ratelimit.limit", 100),
	}
	switch rc.Store {
	case RateStoreMemory:
	case RateStoreRedis:
		if rc.RedisURL == "" {
			return RateLimitConfig{}, errors.New("ratelimit.redis_url is required for the redis store")
		}
	default:
		return RateLimitConfig{}, fmt.Errorf("unknown rate limit store %q", rc.Store)
	}

	window, err := durationOr(cfg, "ratelimit.window", 15*time.Minute)
	if err != nil {
		return RateLimitConfig{}, err
	}
	rc.Window = window
	return rc, nil
}

func BuildExportConfig(cfg Getter) ExportConfig {
	return ExportConfig{Dir: stringOr(cfg, "export.dir", "./exports")}
}

// BuildLocation resolves locale.timezone. Without tzdata for the zone a fixed
// +09:00 offset is used.
func BuildLocation(cfg Getter, log *zerolog.Logger) *time.Location {
	name := stringOr(cfg, "locale.timezone", "Asia/Tokyo")
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Warn().Err(err).Str("timezone", name).Msg("falling back to fixed JST offset")
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}
