package config

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"payment-reconciler/internal/infrastructure/database"
)

// Validate kiểm tra pool sizing và retry settings
func (d DatabaseConfig) Validate() error {
	if err := validation.ValidateStruct(&d,
		validation.Field(&d.Host, validation.Required),
		validation.Field(&d.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&d.Database, validation.Required),
		validation.Field(&d.MaxConns, validation.Required, validation.Min(1)),
		validation.Field(&d.MinConns, validation.Min(0)),
		validation.Field(&d.MaxRetries, validation.Min(1)),
		validation.Field(&d.ConnectTimeout, validation.Required),
	); err != nil {
		return err
	}
	if d.MinConns > d.MaxConns {
		return fmt.Errorf("DB_MIN_CONNECTIONS (%d) exceeds DB_MAX_CONNECTIONS (%d)", d.MinConns, d.MaxConns)
	}
	return nil
}

// PoolConfig maps the env-level settings onto the pgxpool wrapper's config.
func (d DatabaseConfig) PoolConfig() *database.DBConfig {
	return &database.DBConfig{
		Host:              d.Host,
		Port:              d.Port,
		Username:          d.User,
		Password:          d.Password,
		DBName:            d.Database,
		SSLMode:           d.SSLMode,
		MaxConns:          int32(d.MaxConns),
		MinConns:          int32(d.MinConns),
		MaxConnLifetime:   d.MaxConnLifetime,
		MaxConnIdleTime:   d.MaxConnIdleTime,
		HealthCheckPeriod: d.HealthCheckPeriod,
		MaxRetries:        d.MaxRetries,
		RetryDelay:        d.RetryDelay,
		ConnectTimeout:    d.ConnectTimeout,
	}
}
