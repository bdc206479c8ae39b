package db

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NewDBPoolParams struct {
	DBHost         string
	DBPort         string
	DBName         string
	DBUser         string
	DBPassword     string
	SSLMode        string
	ConnectTimeout time.Duration
	KeepAlive      time.Duration
	TracingEnabled bool
}

func PostgresConnString(params NewDBPoolParams) string {
	user := params.DBUser
	if user == "" {
		user = "postgres"
	}
	connURL := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(params.DBHost, params.DBPort),
		Path:   "/" + params.DBName,
	}
	if params.DBPassword != "" {
		connURL.User = url.UserPassword(user, params.DBPassword)
	} else {
		connURL.User = url.User(user)
	}

	query := url.Values{}
	if params.SSLMode != "" {
		query.Set("sslmode", params.SSLMode)
	}
	if params.ConnectTimeout > 0 {
		query.Set("connect_timeout", fmt.Sprintf("%d", int(params.ConnectTimeout.Seconds())))
	}
	connURL.RawQuery = query.Encode()

	return connURL.String()
}

func NewDBPool(ctx context.Context, params NewDBPoolParams) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(PostgresConnString(params))
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	if params.KeepAlive > 0 {
		poolConfig.HealthCheckPeriod = params.KeepAlive
		dialer := &net.Dialer{KeepAlive: params.KeepAlive, Timeout: params.ConnectTimeout}
		poolConfig.ConnConfig.DialFunc = dialer.DialContext
	}

	if params.TracingEnabled {
		poolConfig.ConnConfig.Tracer = otelpgx.NewTracer()
	}

	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	return db, nil
}
