package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"chatrelay/pkg/bus"
	"chatrelay/pkg/config"
)

const (
	defaultDatabase     = "chatrelay"
	exchangesCollection = "exchanges"
)

type mongoSink struct {
	insert     func(ctx context.Context, document any) error
	disconnect func(ctx context.Context) error
}

func newMongoSink(ctx context.Context, uri string, cfg config.StoreConfig) (Sink, error) {
	clientOpts := options.Client().ApplyURI(uri)
	if cfg.Timeout > 0 {
		clientOpts.SetServerSelectionTimeout(cfg.Timeout)
	}

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("store: connect mongodb: %w", err)
	}

	pingCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("store: ping mongodb: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = defaultDatabase
	}
	collection := client.Database(database).Collection(exchangesCollection)

	return &mongoSink{
		insert: func(ctx context.Context, document any) error {
			_, err := collection.InsertOne(ctx, document)
			return err
		},
		disconnect: client.Disconnect,
	}, nil
}

func (s *mongoSink) Name() string  { return "mongodb" }
func (s *mongoSink) Enabled() bool { return true }

func (s *mongoSink) Record(ctx context.Context, record bus.ExchangeRecord) error {
	if s.insert == nil {
		return errors.New("store: mongodb sink not initialized")
	}
	if err := s.insert(ctx, record); err != nil {
		return fmt.Errorf("store: insert exchange: %w", err)
	}

	return nil
}

func (s *mongoSink) Close(ctx context.Context) error {
	if s.disconnect == nil {
		return nil
	}

	return s.disconnect(ctx)
}
