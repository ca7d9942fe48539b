package server_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/henrypark/dbproxy/packet"
	"github.com/henrypark/dbproxy/server"
)

const (
	integrationUser     = "root"
	integrationPassword = "test"
	integrationDB       = "test"
)

type passthroughHandler struct{}

func (passthroughHandler) HandleRequest(_ context.Context, p *packet.Packet) (*packet.Packet, error) {
	return p, nil
}

func (passthroughHandler) HandleResponse(_ context.Context, p *packet.Packet) (*packet.Packet, error) {
	return p, nil
}

func startMySQLUpstream(t *testing.T) string {
	t.Helper()

	ctx := t.Context()
	ctr, err := mysql.Run(ctx, "mysql:8",
		mysql.WithDatabase(integrationDB),
		mysql.WithUsername(integrationUser),
		mysql.WithPassword(integrationPassword),
	)
	if err != nil {
		t.Fatalf("start mysql container: %v", err)
	}
	t.Cleanup(func() {
		if err := ctr.Terminate(context.Background()); err != nil {
			t.Logf("terminate mysql container: %v", err)
		}
	})

	host, err := ctr.Host(ctx)
	if err != nil {
		t.Fatalf("get host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "3306/tcp")
	if err != nil {
		t.Fatalf("get port: %v", err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestServerMariaDBQueryRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testcontainers-backed integration test in -short mode")
	}
	t.Parallel()

	upstream := startMySQLUpstream(t)

	srv, err := server.New("127.0.0.1:0", packet.MariaDB, upstream)
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

	dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?timeout=5s", integrationUser, integrationPassword, srv.Addr().String(), integrationDB)
	db, err := sql.Open("mysql", dsn)
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
