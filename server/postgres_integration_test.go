package server_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/henrypark/dbproxy/packet"
	"github.com/henrypark/dbproxy/server"
)

func startPostgresUpstream(t *testing.T) string {
	t.Helper()

	ctx := t.Context()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase(integrationDB),
		postgres.WithUsername(integrationUser),
		postgres.WithPassword(integrationPassword),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := ctr.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	host, err := ctr.Host(ctx)
	if err != nil {
		t.Fatalf("get host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("get port: %v", err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestServerPostgreSQLQueryRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testcontainers-backed integration test in -short mode")
	}
	t.Parallel()

	upstream := startPostgresUpstream(t)

	srv, err := server.New("127.0.0.1:0", packet.PostgreSQL, upstream)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	t.Cleanup(cancel)

	go func() {
		if err := srv.Run(ctx, passthroughHandler{}); err != nil {
			t.Logf("server run: %v", err)
		}
	}()

	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable&connect_timeout=5",
		integrationUser, integrationPassword, srv.Addr().String(), integrationDB)
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		t.Fatalf("query: %v", err)
	}
	if result != 1 {
		t.Fatalf("result = %d, want 1", result)
	}
}
