// Command adinsight is a thin operator CLI over the diagnostic
// pipeline: it wires configuration, the warehouse connection pool, the
// tenant registry, and the core Service together, then drives exactly
// one of analyze/recommend/execute per invocation. It is not an HTTP
// surface; it exists so the pipeline can be exercised end to end
// against a real Postgres-backed warehouse view and a configured model
// provider for local runs and smoke tests.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/adinsight/adinsight/internal/config"
	"github.com/adinsight/adinsight/pkg/core"
	"github.com/adinsight/adinsight/pkg/shared/logging"
	"github.com/adinsight/adinsight/pkg/telemetry"
	"github.com/adinsight/adinsight/pkg/tenant"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "adinsight: "+err.Error())
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("adinsight", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML config file")
	tenantsPath := fs.String("tenants", "tenants.yaml", "path to the YAML tenant registry file")
	tenantCode := fs.String("tenant", "", "tenant code to operate against (required)")
	windowDays := fs.Int("window-days", 30, "lookback window in days, for analyze")
	sessionID := fs.String("session", "", "session id returned by a prior analyze call, for recommend/execute")
	useModelReasoning := fs.Bool("model-reasoning", true, "let the configured language model drive probe selection during recommend")
	approve := fs.String("approve", "", "comma-separated ad ids to execute; empty approves every recommendation")
	dryRun := fs.Bool("dry-run", true, "simulate execution without mutating any external campaign state")
	if err := fs.Parse(args); err != nil {
		return err
	}

	command := fs.Arg(0)
	if command == "" {
		return fmt.Errorf("usage: adinsight [flags] analyze|recommend|execute")
	}
	if *tenantCode == "" {
		return fmt.Errorf("-tenant is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)

	shutdownTracing := telemetry.Setup()
	defer shutdownTracing(context.Background())

	tenants, err := loadTenants(*tenantsPath)
	if err != nil {
		return err
	}

	db, cache := openWarehouse(cfg, logger)
	if db != nil {
		defer db.Close()
	}
	if cache != nil {
		defer cache.Close()
	}

	svc, err := core.New(cfg, logger, tenants, db, cache)
	if err != nil {
		return err
	}

	ctx := context.Background()

	var result interface{}
	switch command {
	case "analyze":
		result, err = svc.Analyze(ctx, *tenantCode, *windowDays, "")
	case "recommend":
		if *sessionID == "" {
			return fmt.Errorf("-session is required for recommend")
		}
		result, err = svc.Recommend(ctx, *sessionID, *useModelReasoning)
	case "execute":
		if *sessionID == "" {
			return fmt.Errorf("-session is required for execute")
		}
		result, err = svc.Execute(ctx, *sessionID, splitNonEmpty(*approve), *dryRun)
	default:
		return fmt.Errorf("unknown command %q: expected analyze, recommend, or execute", command)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// newLogger builds the process-wide structured logger from
// LoggingConfig, mirroring the teacher's level/format convention:
// "json" for production log shipping, anything else falls back to
// logrus's human-readable text formatter for local runs.
func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	logger.AddHook(logging.RedactingHook{})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// tenantFile is the on-disk shape of the -tenants YAML file: a flat
// list mirroring tenant.Record, since the registry itself has no
// serialization of its own.
type tenantFile struct {
	Tenants []struct {
		Code          string `yaml:"code"`
		WarehouseView string `yaml:"warehouse_view"`
		DisplayName   string `yaml:"display_name"`
	} `yaml:"tenants"`
}

func loadTenants(path string) (*tenant.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tenants file: %w", err)
	}
	var tf tenantFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse tenants file: %w", err)
	}

	records := make([]tenant.Record, len(tf.Tenants))
	for i, t := range tf.Tenants {
		records[i] = tenant.Record{Code: t.Code, WarehouseView: t.WarehouseView, DisplayName: t.DisplayName}
	}
	return tenant.New(records)
}

// openWarehouse opens the Postgres pool and Redis cache the Metric
// Store Adapter needs. A connection failure here is logged and the CLI
// proceeds with a nil handle: core.New and metricstore.New accept a
// nil db/cache, the adapter reads without the cache when it is nil,
// and execute never reads the warehouse. analyze and recommend (through
// its probes) query the warehouse and need the connection.
func openWarehouse(cfg *config.Config, logger *logrus.Logger) (*sqlx.DB, *redis.Client) {
	var db *sqlx.DB
	if dsn := config.WarehouseDSN(); dsn != "" {
		opened, err := sqlx.Connect("pgx", dsn)
		if err != nil {
			logger.WithError(err).Warn("could not connect to warehouse, continuing without it")
		} else {
			opened.SetMaxOpenConns(cfg.Warehouse.MaxOpenConns)
			db = opened
		}
	}

	var cache *redis.Client
	if addr := os.Getenv("ADINSIGHT_REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("could not reach redis cache, continuing without it")
			client.Close()
		} else {
			cache = client
		}
	}

	return db, cache
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
