package db

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NewMongoClientParams struct {
	DBHost         string
	DBPort         string
	DBName         string
	DBUser         string
	DBPassword     string
	ConnectTimeout time.Duration
	KeepAlive      time.Duration
}

// MongoURI puts the database name in the path, so credentials are checked against that database.
func MongoURI(params NewMongoClientParams) string {
	uri := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(params.DBHost, params.DBPort),
		Path:   "/" + params.DBName,
	}
	if params.DBUser != "" {
		uri.User = url.UserPassword(params.DBUser, params.DBPassword)
	}
	return uri.String()
}

func mongoClientOptions(params NewMongoClientParams) *options.ClientOptions {
	opts := options.Client().ApplyURI(MongoURI(params))
	if params.ConnectTimeout > 0 {
		opts.SetConnectTimeout(params.ConnectTimeout)
		opts.SetServerSelectionTimeout(params.ConnectTimeout)
	}
	if params.KeepAlive > 0 {
		opts.SetDialer(&net.Dialer{
			Timeout:   params.ConnectTimeout,
			KeepAlive: params.KeepAlive,
		})
	}
	return opts
}

// NewMongoClient connects to mongo and verifies the connection with a ping,
// so an unreachable server is reported here rather than on the first request.
func NewMongoClient(ctx context.Context, params NewMongoClientParams) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, mongoClientOptions(params))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return client, nil
}
