package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/khatabook-backend/pkg/config"
	"github.com/angelmondragon/khatabook-backend/pkg/db"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
	"github.com/angelmondragon/khatabook-backend/pkg/migrate"
	"github.com/joho/godotenv"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "up|down|status|to|create|validate")
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target YYYYMMDDHHMMSS version for -cmd=to")
	flag.Parse()

	// create and validate work on files only and run without a database.
	switch *cmd {
	case "create":
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, *name)
		exitOn(logg, "create migration", err)
		fmt.Println(path)
		return
	case "validate":
		exitOn(logg, "validate migrations", migrate.ValidateFS(migrate.Source(*dir)))
		fmt.Println("migrations valid")
		return
	}

	cfg, err := config.Load()
	exitOn(logg, "load config", err)
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOn(logg, "connect database", err)
	defer dbClient.Close()

	// The goose files use Postgres DDL; sqlite schemas come from the models.
	if cfg.DB.IsSQLite() {
		if *cmd != "up" {
			exitOn(logg, "sqlite migrate", fmt.Errorf("sqlite databases only support -cmd=up"))
		}
		exitOn(logg, "auto-migrate", migrate.AutoMigrate(dbClient))
		logg.Info(ctx, "sqlite schema migrated")
		return
	}

	sqlDB, err := dbClient.DB().DB()
	exitOn(logg, "sql handle", err)
	runner, err := migrate.NewRunner(sqlDB, migrate.Source(*dir))
	exitOn(logg, "goose provider", err)

	var results []migrate.Result
	switch *cmd {
	case "up":
		results, err = runner.Up(ctx)
	case "down":
		results, err = runner.Down(ctx)
	case "to":
		if *version == "" {
			err = fmt.Errorf("-version is required for -cmd=to")
			break
		}
		results, err = runner.To(ctx, *version)
	case "status":
		var rows []migrate.Status
		rows, err = runner.Status(ctx)
		for _, row := range rows {
			state := "pending"
			if row.Applied {
				state = "applied"
			}
			fmt.Printf("%-8s %d %s\n", state, row.Version, row.Path)
		}
	default:
		err = fmt.Errorf("unknown -cmd %q", *cmd)
	}
	exitOn(logg, "migrate "+*cmd, err)

	for _, res := range results {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     res.Version,
			"path":        res.Path,
			"direction":   res.Direction,
			"duration_ms": res.Millis,
		}), "migration applied")
	}
	logg.Info(logg.WithField(ctx, "count", len(results)), "migrate done")
}

func exitOn(logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), step+" failed", err)
	os.Exit(1)
}
