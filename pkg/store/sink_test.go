package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatrelay/pkg/bus"
	"chatrelay/pkg/config"
)

func testRecord(id string) bus.ExchangeRecord {
	return bus.ExchangeRecord{
		ID:           id,
		ChatID:       "42",
		SenderID:     "7",
		InboundText:  "hello",
		OutboundText: "hi there",
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestOpenWithoutURIReturnsNop(t *testing.T) {
	sink := Open(context.Background(), config.StoreConfig{URI: "  "}, nil)

	require.IsType(t, Nop{}, sink)
	require.False(t, sink.Enabled())
	require.NoError(t, sink.Record(context.Background(), testRecord("a")))
	require.NoError(t, sink.Close(context.Background()))
}

func TestOpenUnsupportedSchemeReturnsNop(t *testing.T) {
	sink := Open(context.Background(), config.StoreConfig{URI: "redis://localhost:6379"}, nil)
	require.IsType(t, Nop{}, sink)

	sink = Open(context.Background(), config.StoreConfig{URI: "dynamodb://?region=eu-west-1"}, nil)
	require.IsType(t, Nop{}, sink)
}

func TestOpenUnreachableMongoReturnsNop(t *testing.T) {
	original := openMongo
	t.Cleanup(func() { openMongo = original })

	var gotURI string
	openMongo = func(_ context.Context, uri string, _ config.StoreConfig) (Sink, error) {
		gotURI = uri
		return nil, errors.New("server selection timeout")
	}

	sink := Open(context.Background(), config.StoreConfig{URI: "mongodb://db.invalid:27017"}, nil)
	require.IsType(t, Nop{}, sink)
	require.Equal(t, "mongodb://db.invalid:27017", gotURI)
}

func TestOpenDynamoParsesTableAndRegion(t *testing.T) {
	original := openDynamo
	t.Cleanup(func() { openDynamo = original })

	var gotTable, gotRegion string
	openDynamo = func(_ context.Context, table, region string) (Sink, error) {
		gotTable, gotRegion = table, region
		return newDynamoSinkWithAPI(&fakeDynamo{}, table)
	}

	sink := Open(context.Background(), config.StoreConfig{URI: "dynamodb://exchanges?region=eu-west-1"}, nil)
	require.True(t, sink.Enabled())
	require.Equal(t, "dynamodb", sink.Name())
	require.Equal(t, "exchanges", gotTable)
	require.Equal(t, "eu-west-1", gotRegion)
}

func TestFileSinkAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "exchanges.jsonl")

	sink := Open(context.Background(), config.StoreConfig{URI: "file://" + path}, nil)
	require.True(t, sink.Enabled())
	require.Equal(t, "file", sink.Name())

	require.NoError(t, sink.Record(context.Background(), testRecord("a")))
	require.NoError(t, sink.Record(context.Background(), testRecord("b")))
	require.NoError(t, sink.Close(context.Background()))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var ids []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record bus.ExchangeRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		require.Equal(t, "42", record.ChatID)
		require.Equal(t, "hi there", record.OutboundText)
		ids = append(ids, record.ID)
	}
	require.NoError(t, scanner.Err())
	require.Equal(t, []string{"a", "b"}, ids)
}

func TestFileSinkRecordAfterCloseFails(t *testing.T) {
	sink, err := newFileSink(filepath.Join(t.TempDir(), "exchanges.jsonl"))
	require.NoError(t, err)
	require.NoError(t, sink.Close(context.Background()))

	require.Error(t, sink.Record(context.Background(), testRecord("a")))
}

func TestMongoSinkRecord(t *testing.T) {
	var inserted []any
	sink := &mongoSink{insert: func(_ context.Context, document any) error {
		inserted = append(inserted, document)
		return nil
	}}

	require.True(t, sink.Enabled())
	require.NoError(t, sink.Record(context.Background(), testRecord("a")))
	require.Len(t, inserted, 1)
	require.Equal(t, testRecord("a"), inserted[0])
	require.NoError(t, sink.Close(context.Background()))
}

func TestMongoSinkRecordError(t *testing.T) {
	sink := &mongoSink{insert: func(context.Context, any) error {
		return errors.New("not primary")
	}}

	err := sink.Record(context.Background(), testRecord("a"))
	require.ErrorContains(t, err, "not primary")

	require.Error(t, (&mongoSink{}).Record(context.Background(), testRecord("a")))
}
