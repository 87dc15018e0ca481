package db

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/airink/storefront-backend/pkg/config"
	"github.com/airink/storefront-backend/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

type upsertModel struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func TestUpsertOverwritesExistingRow(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&upsertModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	client := &Client{conn: db}
	ctx := context.Background()

	for _, v := range []string{"first", "second"} {
		if err := client.Upsert(ctx, &upsertModel{Key: "k", Value: v}, []string{"key"}, []string{"value"}); err != nil {
			t.Fatalf("upsert %s: %v", v, err)
		}
	}

	var rows []upsertModel
	if err := db.Find(&rows).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) != 1 || rows[0].Value != "second" {
		t.Fatalf("expected single overwritten row, got %+v", rows)
	}
}

func TestOpenWithSqliteDialector(t *testing.T) {
	client, err := Open(context.Background(), sqlite.Open("file::memory:"), config.DBConfig{MaxOpenConns: 1}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer client.Close()
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestNewRejectsEmptyDSN(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{}, nil); err == nil {
		t.Fatal("expected missing DSN error")
	}
}

func TestOpenPingsAndAppliesPool(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Format: logger.FormatJSON, Output: &buf})

	client, err := Open(context.Background(), sqlite.Open("file::memory:"), config.DBConfig{MaxOpenConns: 1, MaxIdleConns: 1}, logg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	if got := sqlDB.Stats().MaxOpenConnections; got != 1 {
		t.Fatalf("expected max open conns 1, got %d", got)
	}
	if !strings.Contains(buf.String(), "db.connected") {
		t.Fatalf("expected connect log, got %s", buf.String())
	}
}

func TestStatsCollectorExportsPoolMetrics(t *testing.T) {
	client := &Client{conn: newTestDB(t)}
	collector, err := client.StatsCollector("storefront")
	if err != nil {
		t.Fatalf("collector: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collector)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "go_sql_max_open_connections" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected go_sql_max_open_connections metric")
	}
}
