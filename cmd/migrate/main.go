package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/angelmondragon/banksampah-backend/internal/app"
	"github.com/angelmondragon/banksampah-backend/internal/seed"
	"github.com/angelmondragon/banksampah-backend/pkg/config"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate|seed")
	dir := flag.String("dir", "", "migrations directory; empty uses the migrations built into the binary")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	ctx := context.Background()
	offline := *cmd == "create" || *cmd == "validate"
	rt, err := app.Start(ctx, app.RuntimeOptions{Kind: "migrate", SkipDB: offline, SkipAutoMigrate: true})
	if err != nil {
		logger.New(logger.Options{ServiceName: "migrate"}).Error(ctx, "failed to start", err)
		os.Exit(1)
	}
	ctx = rt.Logger.WithFields(rt.Context(ctx), map[string]any{"cmd": *cmd, "dir": *dir})

	err = run(ctx, rt, *cmd, *dir, *name, *version)
	err = closeWith(err, rt)
	if err != nil {
		rt.Logger.Error(ctx, "migrate failed", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func closeWith(err error, rt *app.Runtime) error {
	if cerr := rt.Close(); err == nil {
		return cerr
	}
	return err
}

func run(ctx context.Context, rt *app.Runtime, cmd, dir, name, version string) error {
	switch cmd {
	case "create":
		if name == "" {
			return fmt.Errorf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(orDefault(dir), name)
		if err != nil {
			return fmt.Errorf("create migration: %w", err)
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if dir == "" {
			if err := migrate.ValidateFS(migrate.Embedded()); err != nil {
				return fmt.Errorf("validate embedded migrations: %w", err)
			}
		} else if err := migrate.ValidateDir(dir); err != nil {
			return fmt.Errorf("validate %s: %w", dir, err)
		}
		fmt.Println("migration validation passed")
		return nil
	case "seed":
		summary, err := runSeed(ctx, rt)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		fmt.Printf("seeded %d categories, super admin created: %t\n", summary.CategoriesCreated, summary.AdminCreated)
		return nil
	}

	sqlDB, err := rt.DB.DB().DB()
	if err != nil {
		return fmt.Errorf("sql database: %w", err)
	}
	var source fs.FS
	if dir != "" {
		source = os.DirFS(dir)
	}
	dialect := migrate.Dialect(rt.Config.DB)
	m, err := migrate.New(sqlDB, dialect, source)
	if err != nil {
		return err
	}
	ctx = rt.Logger.WithField(ctx, "dialect", string(dialect))

	switch cmd {
	case "up":
		applied, err := m.Up(ctx)
		if err != nil {
			return err
		}
		rt.Logger.Info(rt.Logger.WithField(ctx, "applied", applied), "migrate.up.complete")
	case "down":
		if err := m.Down(ctx); err != nil {
			return err
		}
		rt.Logger.Info(ctx, "migrate.down.complete")
	case "status":
		statuses, err := m.Status(ctx)
		if err != nil {
			return err
		}
		printStatus(statuses)
	case "version":
		target, err := strconv.ParseInt(version, 10, 64)
		if err != nil || target < 0 {
			return fmt.Errorf("invalid -version %q", version)
		}
		if err := m.To(ctx, target); err != nil {
			return err
		}
		rt.Logger.Info(rt.Logger.WithField(ctx, "version", target), "migrate.version.complete")
	default:
		return fmt.Errorf("unknown -cmd value: %s", cmd)
	}
	return nil
}

func printStatus(statuses []migrate.Status) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
	for _, s := range statuses {
		applied := "pending"
		if s.Applied {
			applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, s.Name, applied)
	}
	_ = w.Flush()
}

func orDefault(dir string) string {
	if dir == "" {
		return migrate.DefaultDir
	}
	return dir
}

func runSeed(ctx context.Context, rt *app.Runtime) (*seed.Summary, error) {
	// Seeding runs alone, so the in-process ledger lock is enough.
	seedCfg := *rt.Config
	seedCfg.Ledger.LockMode = config.LedgerLockModeLocal
	services, err := app.Build(ctx, app.Params{
		Config: &seedCfg,
		Logger: rt.Logger,
		DB:     rt.DB,
	})
	if err != nil {
		return nil, err
	}
	return seed.Run(ctx, seed.Params{
		Categories: services.Categories,
		Residents:  services.Residents,
		Config:     rt.Config.Seed,
		Logger:     rt.Logger,
	})
}
