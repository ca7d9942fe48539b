// Command dbproxyd runs the wire-protocol proxy as a standalone daemon,
// wiring a Server to a capture Handler, the Prometheus metrics endpoint,
// and the web dashboard.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/henrypark/dbproxy/broker"
	"github.com/henrypark/dbproxy/explain"
	"github.com/henrypark/dbproxy/handlers/capture"
	"github.com/henrypark/dbproxy/metrics"
	"github.com/henrypark/dbproxy/packet"
	"github.com/henrypark/dbproxy/server"
	"github.com/henrypark/dbproxy/web"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("dbproxyd", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "dbproxyd — transparent wire-protocol proxy\n\nUsage:\n  dbproxyd [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n  DATABASE_URL    DSN for EXPLAIN queries (read by default via -dsn-env)\n")
	}

	dialectName := fs.String("dialect", "", "wire protocol dialect: mariadb, postgres (required)")
	listen := fs.String("listen", "", "client listen address (required)")
	upstream := fs.String("upstream", "", "upstream database address (required)")
	httpAddr := fs.String("http", "", "HTTP server address for the web dashboard (e.g. :8080)")
	metricsAddr := fs.String("metrics", "", "Prometheus metrics address (e.g. :9090)")
	dsnEnv := fs.String("dsn-env", "DATABASE_URL", "environment variable holding DSN for EXPLAIN")
	nplus1Threshold := fs.Int("nplus1-threshold", 5, "N+1 detection threshold")
	nplus1Window := fs.Duration("nplus1-window", time.Second, "N+1 detection time window")
	nplus1Cooldown := fs.Duration("nplus1-cooldown", 10*time.Second, "N+1 alert cooldown per query template")
	slowThreshold := fs.Duration("slow-threshold", 100*time.Millisecond, "slow query threshold (0 to disable)")
	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("dbproxyd %s\n", version)
		return
	}
	if *listen == "" || *upstream == "" {
		fs.Usage()
		os.Exit(1)
	}

	dialect, err := parseDialect(*dialectName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		os.Exit(1)
	}

	if err := run(dialect, *listen, *upstream, *httpAddr, *metricsAddr, *dsnEnv,
		*nplus1Threshold, *nplus1Window, *nplus1Cooldown, *slowThreshold); err != nil {
		log.Fatal(err)
	}
}

func parseDialect(s string) (packet.Dialect, error) {
	switch s {
	case "mariadb", "mysql":
		return packet.MariaDB, nil
	case "postgres", "postgresql":
		return packet.PostgreSQL, nil
	}
	return 0, fmt.Errorf("unsupported dialect: %q", s)
}

func run(dialect packet.Dialect, listen, upstream, httpAddr, metricsAddr, dsnEnv string,
	nplus1Threshold int, nplus1Window, nplus1Cooldown, slowThreshold time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := broker.New(256)

	var explainClient *explain.Client
	if dsn := os.Getenv(dsnEnv); dsn != "" {
		db, err := sql.Open(explain.DriverFor(dialect), dsn)
		if err != nil {
			return fmt.Errorf("open db for explain: %w", err)
		}
		explainClient = explain.NewClient(db)
		defer func() { _ = explainClient.Close() }()
		log.Printf("EXPLAIN enabled")
	} else {
		log.Printf("EXPLAIN disabled (%s not set)", dsnEnv)
	}

	metrics.Init()
	if metricsAddr != "" {
		metricsSrv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			log.Printf("metrics listening on %s", metricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("metrics serve: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	if httpAddr != "" {
		var lc net.ListenConfig
		httpLis, err := lc.Listen(ctx, "tcp", httpAddr)
		if err != nil {
			return fmt.Errorf("listen http %s: %w", httpAddr, err)
		}
		webSrv := web.New(b, explainClient)
		go func() {
			log.Printf("web dashboard listening on %s", httpAddr)
			if err := webSrv.Serve(httpLis); err != nil {
				log.Printf("http serve: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = webSrv.Shutdown(shutdownCtx)
		}()
	}

	srv, err := server.New(listen, dialect, upstream)
	if err != nil {
		return fmt.Errorf("listen %s: %w", listen, err)
	}

	h := capture.New(b, nplus1Threshold, nplus1Window, nplus1Cooldown, slowThreshold)
	if nplus1Threshold > 0 {
		log.Printf("N+1 detection enabled (threshold=%d, window=%s, cooldown=%s)",
			nplus1Threshold, nplus1Window, nplus1Cooldown)
	}
	if slowThreshold > 0 {
		log.Printf("slow query detection enabled (threshold=%s)", slowThreshold)
	}

	log.Printf("proxying %s -> %s (dialect=%s)", listen, upstream, dialect)
	return srv.Run(ctx, h)
}
