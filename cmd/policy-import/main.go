// policy-import loads markdown policy files into the portal database and
// can backfill version 1 for policies that have none.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"grc-portal/archive"
	"grc-portal/config"
	"grc-portal/differ"
	"grc-portal/importer"
	"grc-portal/logger"
	"grc-portal/repositories"
	"grc-portal/services"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		dir        string
		actorEmail string
		dryRun     bool
		backfill   bool
	)

	flagSet := pflag.NewFlagSet("policy-import", pflag.ContinueOnError)
	flagSet.StringVar(&dir, "dir", "content/policies", "directory of markdown policy files")
	flagSet.StringVar(&actorEmail, "actor-email", "", "email of the user the imported versions are attributed to")
	flagSet.BoolVar(&dryRun, "dry-run", false, "report what would be imported without writing")
	flagSet.BoolVar(&backfill, "backfill", false, "create version 1 for policies that have no versions")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if actorEmail == "" {
		return errors.New("--actor-email is required")
	}

	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDB(cfg)
	if err != nil {
		return err
	}
	store := repositories.NewStore(db)
	authService := services.NewAuthService(store, cfg.JWTSecret, cfg.JWTExpiration)

	user, err := authService.GetUserByEmail(ctx, actorEmail)
	if err != nil {
		return fmt.Errorf("resolve actor: %w", err)
	}
	actor := user.Actor()

	// Imports never edit content, so no generator is needed.
	describer := differ.NewGuarded(nil, cfg.DiffTimeout, log, nil)
	var archiver services.VersionArchiver
	if cfg.ArchiveDir != "" {
		a, err := archive.New(cfg.ArchiveDir)
		if err != nil {
			return err
		}
		archiver = a
	}
	policyService := services.NewPolicyService(store, describer, archiver, log, nil)

	result, err := importer.New(policyService, log).ImportDir(ctx, dir, actor, dryRun)
	if err != nil {
		return err
	}
	verb := "imported"
	if dryRun {
		verb = "would import"
	}
	for _, slug := range result.Imported {
		fmt.Printf("%s %s\n", verb, slug)
	}
	for _, skip := range result.Skipped {
		fmt.Printf("skipped %s: %s\n", skip.File, skip.Reason)
	}
	fmt.Printf("%d %s, %d skipped\n", len(result.Imported), verb, len(result.Skipped))

	if backfill && !dryRun {
		count, err := policyService.BackfillInitialVersions(ctx, actor)
		fmt.Printf("backfilled %d policies\n", count)
		if err != nil {
			return err
		}
	}
	return nil
}
