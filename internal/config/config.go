// Package config содержит логику чтения конфигурации интернет-магазина.
package config

import (
	"flag"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации магазина.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	RedisURL    string `env:"REDIS_URL"`
	Timezone    string `env:"TIMEZONE"`

	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	LogLevel  string        `env:"LOG_LEVEL" envDefault:"info"`

	AdminLogin    string `env:"ADMIN_LOGIN"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	// Через сколько после последней смены статуса заказ переходит дальше.
	PreparingAfter time.Duration `env:"PREPARING_AFTER" envDefault:"5m"`
	ShippingAfter  time.Duration `env:"SHIPPING_AFTER" envDefault:"15m"`
	DeliveredAfter time.Duration `env:"DELIVERED_AFTER" envDefault:"60m"`

	// Как часто запускаются задания перевода статусов.
	PreparingEvery time.Duration `env:"PREPARING_EVERY" envDefault:"5m"`
	ShippingEvery  time.Duration `env:"SHIPPING_EVERY" envDefault:"15m"`
	DeliveredEvery time.Duration `env:"DELIVERED_EVERY" envDefault:"60m"`

	// DailySalesAt задаёт время ежедневной агрегации продаж за вчера в формате HH:MM.
	DailySalesAt string `env:"DAILY_SALES_AT" envDefault:"00:10"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envRedisURL := cfg.RedisURL
	envTimezone := cfg.Timezone

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RedisURL, "r", "", "redis URL for scheduler locks")
	flag.StringVar(&cfg.Timezone, "z", "UTC", "IANA timezone for business days")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRedisURL != "" {
		cfg.RedisURL = envRedisURL
	}
	if envTimezone != "" {
		cfg.Timezone = envTimezone
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location возвращает часовой пояс, в котором считаются календарные дни.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
