// Package config предоставляет структуры и функцию для загрузки конфигурации сервиса.
// Значения берутся из YAML-файла (CONFIG_PATH, опционально) и переменных окружения.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env            string     `yaml:"env" env:"ENV" env-default:"local"`
	AdminToken     string     `yaml:"admin_token" env:"ADMIN_TOKEN"`
	MigrationsPath string     `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	HTTPServer     HTTPServer `yaml:"http_server"`
	Database       Database   `yaml:"database"`
	Telegram       Telegram   `yaml:"telegram"`
	Discord        Discord    `yaml:"discord"`
	Reconcile      Reconcile  `yaml:"reconcile"`
	Wizard         Wizard     `yaml:"wizard"`
	Redis          Redis      `yaml:"redis"`
	RabbitMQ       RabbitMQ   `yaml:"rabbitmq"`
	SMTP           SMTP       `yaml:"smtp"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	Port        string        `yaml:"port" env:"PORT" env-default:"3000"`
	TimeoutHTTP time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	RateLimit   float64       `yaml:"rate_limit" env:"HTTP_RATE_LIMIT" env-default:"5"`
	RateBurst   int           `yaml:"rate_burst" env:"HTTP_RATE_BURST" env-default:"10"`
}

// Address возвращает адрес для http.Server.
func (h HTTPServer) Address() string {
	return ":" + h.Port
}

// Database структура для подключения к PostgreSQL
type Database struct {
	URL            string        `yaml:"url" env:"DATABASE_URL" env-required:"true"`
	ConnectRetries int           `yaml:"connect_retries" env:"DB_CONNECT_RETRIES" env-default:"30"`
	ConnectDelay   time.Duration `yaml:"connect_delay" env:"DB_CONNECT_DELAY" env-default:"5s"`
}

// Telegram настройки бота и группы
type Telegram struct {
	BotToken    string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
	GroupID     int64  `yaml:"group_id" env:"TELEGRAM_GROUP_ID"`
	AdminChatID int64  `yaml:"admin_chat_id" env:"TELEGRAM_ADMIN_CHAT_ID"`
	// Readmit включает разбан и выдачу одноразовой ссылки-приглашения при разморозке.
	Readmit bool   `yaml:"readmit" env:"TELEGRAM_READMIT" env-default:"false"`
	APIURL  string `yaml:"api_url" env:"TELEGRAM_API_URL"`
}

// Enabled сообщает, можно ли запускать бота.
func (t Telegram) Enabled() bool {
	return t.BotToken != ""
}

// Discord настройки бота, гильдии и ролей
type Discord struct {
	BotToken     string `yaml:"bot_token" env:"DISCORD_BOT_TOKEN"`
	GuildID      string `yaml:"guild_id" env:"DISCORD_GUILD_ID"`
	FrozenRoleID string `yaml:"frozen_role_id" env:"DISCORD_FROZEN_ROLE_ID"`
	ActiveRoleID string `yaml:"active_role_id" env:"DISCORD_ACTIVE_ROLE_ID"`
	APIURL       string `yaml:"api_url" env:"DISCORD_API_URL" env-default:"https://discord.com/api/v10"`
	GatewayURL   string `yaml:"gateway_url" env:"DISCORD_GATEWAY_URL" env-default:"wss://gateway.discord.gg/?v=10&encoding=json"`
}

// Enabled сообщает, хватает ли настроек для работы с Discord.
func (d Discord) Enabled() bool {
	return d.BotToken != "" && d.GuildID != ""
}

// Reconcile настройки задачи сверки подписок
type Reconcile struct {
	Interval time.Duration `yaml:"interval" env:"RECONCILE_INTERVAL" env-default:"30m"`
	// DailyAt в формате HH:MM; если задано, используется вместо Interval.
	DailyAt           string        `yaml:"daily_at" env:"RECONCILE_DAILY_AT"`
	Timezone          string        `yaml:"timezone" env:"RECONCILE_TIMEZONE" env-default:"Europe/Rome"`
	LinkReminderEvery time.Duration `yaml:"link_reminder_every" env:"LINK_REMINDER_EVERY" env-default:"24h"`
}

// Location возвращает часовой пояс задачи.
func (r Reconcile) Location() (*time.Location, error) {
	return time.LoadLocation(r.Timezone)
}

// Wizard настройки мастера регистрации
type Wizard struct {
	HasPlanStep bool          `yaml:"has_plan_step" env:"WIZARD_PLAN_STEP" env-default:"true"`
	SessionTTL  time.Duration `yaml:"session_ttl" env:"WIZARD_SESSION_TTL" env-default:"24h"`
}

// Redis структура для настройки подключения к redis
type Redis struct {
	Addr        string        `yaml:"addr" env:"REDIS_ADDR"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	User        string        `yaml:"user" env:"REDIS_USER"`
	DB          int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	MaxRetries  int           `yaml:"max_retries" env:"REDIS_MAX_RETRIES" env-default:"3"`
	DialTimeout time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	Timeout     time.Duration `yaml:"timeout" env:"REDIS_TIMEOUT" env-default:"3s"`
}

// Enabled сообщает, задан ли адрес redis.
func (r Redis) Enabled() bool {
	return r.Addr != ""
}

// RabbitMQ настройки очереди уведомлений
type RabbitMQ struct {
	URL     string        `yaml:"url" env:"RABBITMQ_URL"`
	Retries int           `yaml:"retries" env:"RABBITMQ_RETRIES" env-default:"5"`
	Delay   time.Duration `yaml:"delay" env:"RABBITMQ_DELAY" env-default:"2s"`
	// Consume запускает доставку уведомлений из очереди внутри основного процесса.
	Consume bool `yaml:"consume" env:"RABBITMQ_CONSUME" env-default:"false"`
}

// Enabled сообщает, задан ли адрес брокера.
func (r RabbitMQ) Enabled() bool {
	return r.URL != ""
}

// SMTP настройки почтового сервера
type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User     string `yaml:"user" env:"SMTP_USER"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" env:"SMTP_FROM"`
}

// Enabled сообщает, настроена ли отправка почты.
func (s SMTP) Enabled() bool {
	return s.Host != "" && s.User != ""
}

// MustLoad загружает конфиг и завершает процесс при ошибке.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает YAML из CONFIG_PATH (если задан) и переменные окружения.
func Load() (*Config, error) {
	const op = "config.Load"

	var cfg Config
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &cfg, nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
	}
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"HTTPServer:\n"+
			"  Port: %s\n"+
			"  Timeout: %s\n"+
			"Telegram: enabled=%t group=%d admin=%d\n"+
			"Discord: enabled=%t guild=%s\n"+
			"Reconcile:\n"+
			"  Interval: %s\n"+
			"  DailyAt: %q\n"+
			"  Timezone: %s\n"+
			"Redis: enabled=%t\n"+
			"RabbitMQ: enabled=%t\n"+
			"SMTP: enabled=%t\n",
		c.Env,
		c.HTTPServer.Port,
		c.HTTPServer.TimeoutHTTP,
		c.Telegram.Enabled(), c.Telegram.GroupID, c.Telegram.AdminChatID,
		c.Discord.Enabled(), c.Discord.GuildID,
		c.Reconcile.Interval,
		c.Reconcile.DailyAt,
		c.Reconcile.Timezone,
		c.Redis.Enabled(),
		c.RabbitMQ.Enabled(),
		c.SMTP.Enabled(),
	)
}
