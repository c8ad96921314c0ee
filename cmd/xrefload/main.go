// Command xrefload is the entry point for one xref loader run: it loads
// configuration, opens both database pools, runs a pre-flight health check
// against each, then drives a single Loader.Update call to completion.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"xrefsync/config"
	"xrefsync/database"
	"xrefsync/internal/loader"
	"xrefsync/internal/telemetry"
	"xrefsync/internal/xrefstore"
)

func main() {
	yamlPath := flag.String("config", "", "optional YAML overlay file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	cfg, err := config.Load(*yamlPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := telemetry.NewStructuredLogger(telemetry.ParseLogLevel(cfg.LogLevel), os.Stdout)
	metrics := telemetry.NewInMemoryMetrics()

	if err := run(cfg, logger, metrics); err != nil {
		logger.Error("xrefload run failed", err)
		os.Exit(1)
	}
}

func run(cfg *config.LoaderConfig, logger telemetry.Logger, metrics telemetry.MetricsService) error {
	stagingPool, err := database.NewStagingPool(&database.StagingConfig{
		Host:            cfg.Staging.Host,
		Port:            cfg.Staging.Port,
		Database:        cfg.Staging.DBName,
		User:            cfg.Staging.User,
		Password:        cfg.Staging.Password,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return err
	}
	defer stagingPool.Close()

	corePool, err := database.NewCorePool(&database.CoreConfig{
		Host:        cfg.Core.Host,
		Port:        cfg.Core.Port,
		Database:    cfg.Core.DBName,
		User:        cfg.Core.User,
		Password:    cfg.Core.Password,
		SSLMode:     "prefer",
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: 30 * time.Minute,
		HealthCheck: time.Minute,
	})
	if err != nil {
		return err
	}
	defer corePool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := telemetry.CheckAll(ctx,
		telemetry.PingFunc{CheckerName: "staging_db", Ping: stagingPool.Ping},
		telemetry.PingFunc{CheckerName: "core_db", Ping: corePool.Ping},
	); err != nil {
		return err
	}

	staging := xrefstore.NewMySQLStagingStore(stagingPool.DB(), cfg.SpeciesID)
	core := xrefstore.NewPostgresCoreStore(corePool.Pool())

	l := loader.New(staging, core, cfg, logger, metrics)

	const phaseCount = 10
	runCtx, runCancel := context.WithTimeout(context.Background(), cfg.PhaseTimeout*phaseCount)
	defer runCancel()

	if err := l.Update(runCtx); err != nil {
		return err
	}

	snap := metrics.Snapshot()
	logger.Info("xrefload run complete", telemetry.Int("species_id", cfg.SpeciesID))
	for name, count := range snap.Counters {
		logger.Info("counter", telemetry.String("name", name), telemetry.Int("value", int(count)))
	}
	return nil
}
