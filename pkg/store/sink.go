package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"chatrelay/pkg/bus"
	"chatrelay/pkg/config"
)

const (
	schemeMongo    = "mongodb"
	schemeMongoSRV = "mongodb+srv"
	schemeDynamo   = "dynamodb"
	schemeFile     = "file"
)

// Sink appends exchange records. There is no read path.
type Sink interface {
	Name() string
	Enabled() bool
	Record(ctx context.Context, record bus.ExchangeRecord) error
	Close(ctx context.Context) error
}

// Nop is the sink used when persistence is off or unreachable.
type Nop struct{}

func (Nop) Name() string                                     { return "none" }
func (Nop) Enabled() bool                                    { return false }
func (Nop) Record(context.Context, bus.ExchangeRecord) error { return nil }
func (Nop) Close(context.Context) error                      { return nil }

// openers are swapped in tests so Open can be exercised without live backends.
var (
	openMongo  = newMongoSink
	openDynamo = newDynamoSink
	openFile   = newFileSink
)

// Open picks the sink for cfg.URI once at startup. It never fails: an empty
// URI, an unknown scheme or an unreachable backend all yield Nop.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) Sink {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "store")

	raw := strings.TrimSpace(cfg.URI)
	if raw == "" {
		log.Info("Persistence disabled; no store configured")
		return Nop{}
	}

	sink, err := open(ctx, raw, cfg)
	if err != nil {
		log.Warn("Persistence unavailable; continuing without it", "error", err)
		return Nop{}
	}

	log.Info("Persistence enabled", "sink", sink.Name())
	return sink
}

func open(ctx context.Context, raw string, cfg config.StoreConfig) (Sink, error) {
	u, err := url.Parse(raw)
	if err != nil {
		// The URI may hold credentials, so it is not echoed back.
		return nil, errors.New("store: invalid uri")
	}

	switch strings.ToLower(u.Scheme) {
	case schemeMongo, schemeMongoSRV:
		return openMongo(ctx, raw, cfg)
	case schemeDynamo:
		table := u.Host
		if table == "" {
			return nil, errors.New("store: dynamodb uri needs a table name")
		}
		return openDynamo(ctx, table, u.Query().Get("region"))
	case schemeFile:
		path := u.Host + u.Path
		if path == "" {
			return nil, errors.New("store: file uri needs a path")
		}
		return openFile(path)
	default:
		return nil, fmt.Errorf("store: unsupported scheme %q", u.Scheme)
	}
}
