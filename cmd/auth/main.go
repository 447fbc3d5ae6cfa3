// Command auth manages gateway API keys.
//
// Usage:
//
//	auth [-config path] create --name "dashboard" [--rate-limit 120] [--admin] [--expires-in 720h]
//	auth [-config path] revoke --id <key-id>
//	auth [-config path] list
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hrdatainsights/salary-platform/internal/auth/apikey"
	"github.com/hrdatainsights/salary-platform/pkg/config"
	"github.com/hrdatainsights/salary-platform/pkg/logger"
	"github.com/hrdatainsights/salary-platform/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	validator := apikey.NewValidator(db)
	if err := validator.EnsureSchema(ctx); err != nil {
		slog.Error("failed to prepare api key schema", "error", err)
		os.Exit(1)
	}

	switch args[0] {
	case "create":
		err = cmdCreate(ctx, validator, args[1:])
	case "revoke":
		err = cmdRevoke(ctx, validator, args[1:])
	case "list":
		err = cmdList(ctx, validator)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", args[0], err)
		os.Exit(1)
	}
}

func cmdCreate(ctx context.Context, v *apikey.Validator, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "name of the client the key is for")
	rateLimit := fs.Int("rate-limit", 120, "requests per minute")
	admin := fs.Bool("admin", false, "allow key management and cache invalidation")
	expiresIn := fs.Duration("expires-in", 0, "expiry, e.g. 720h (0 never expires)")
	fs.Parse(args)

	var expiresAt *time.Time
	if *expiresIn > 0 {
		t := time.Now().Add(*expiresIn)
		expiresAt = &t
	}

	raw, info, err := v.CreateKey(ctx, apikey.NewKey{
		Name:      *name,
		RateLimit: *rateLimit,
		Admin:     *admin,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return err
	}

	fmt.Println("API key created. Store it now: it cannot be shown again.")
	fmt.Println()
	fmt.Printf("  Key:        %s\n", raw)
	fmt.Printf("  ID:         %s\n", info.ID)
	fmt.Printf("  Name:       %s\n", info.Name)
	fmt.Printf("  Rate limit: %d req/min\n", info.RateLimit)
	fmt.Printf("  Admin:      %t\n", info.Admin)
	fmt.Printf("  Expires:    %s\n", formatExpiry(info.ExpiresAt))
	return nil
}

func cmdRevoke(ctx context.Context, v *apikey.Validator, args []string) error {
	fs := flag.NewFlagSet("revoke", flag.ExitOnError)
	id := fs.String("id", "", "id of the key to revoke")
	fs.Parse(args)

	if err := v.RevokeKey(ctx, *id); err != nil {
		return err
	}
	fmt.Printf("API key %s revoked.\n", *id)
	return nil
}

func cmdList(ctx context.Context, v *apikey.Validator) error {
	keys, err := v.ListKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Println("No active API keys.")
		return nil
	}

	fmt.Printf("%-36s  %-20s  %-10s  %-5s  %s\n", "ID", "Name", "Rate Limit", "Admin", "Expires")
	for _, k := range keys {
		fmt.Printf("%-36s  %-20s  %-10d  %-5t  %s\n", k.ID, k.Name, k.RateLimit, k.Admin, formatExpiry(k.ExpiresAt))
	}
	fmt.Printf("\nTotal: %d active key(s)\n", len(keys))
	return nil
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: auth [-config path] <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  create   Create an API key")
	fmt.Fprintln(os.Stderr, "  revoke   Revoke an API key by id")
	fmt.Fprintln(os.Stderr, "  list     List active API keys")
}
