package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/Strob0t/mfi-api/internal/adapter/postgres"
	"github.com/Strob0t/mfi-api/internal/config"
	"github.com/Strob0t/mfi-api/internal/domain/access"
	"github.com/Strob0t/mfi-api/internal/middleware"
	"github.com/Strob0t/mfi-api/internal/secrets"
)

// runAdmin dispatches admin subcommands (migrate, rollback, version, list-roles, token).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "migrate":
		return runAdminMigrate(args[1:])
	case "rollback":
		return runAdminRollback(args[1:])
	case "version":
		return runAdminVersion(args[1:])
	case "list-roles":
		return runAdminListRoles(args[1:])
	case "token":
		return runAdminToken(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: mfi-api admin <command> [options]

Commands:
  migrate      Apply pending database migrations
  rollback     Roll back the last N migrations
  version      Print the current migration version
  list-roles   List roles and their permissions
  token        Issue an access token for a user
  help         Show this help message

Examples:
  mfi-api admin migrate
  mfi-api admin rollback --steps 1
  mfi-api admin list-roles
  mfi-api admin token --user 6f1c... --role admin --realm demo --ttl 1h
`)
}

func runAdminMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return err
	}
	v, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Migrations applied (version %d)\n", v)
	return nil
}

func runAdminRollback(args []string) error {
	fs := flag.NewFlagSet("rollback", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *steps < 1 {
		return fmt.Errorf("--steps must be at least 1")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !*yes {
		if !term.IsTerminal(int(syscall.Stdin)) { //nolint:unconvert // int conversion needed on some platforms
			return fmt.Errorf("refusing to roll back without a terminal; pass --yes")
		}
		ok, err := confirm(fmt.Sprintf("Roll back %d migration(s)? [y/N] ", *steps))
		if err != nil {
			return fmt.Errorf("read confirmation: %w", err)
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "Aborted.")
			return nil
		}
	}

	ctx := context.Background()
	if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, *steps); err != nil {
		return err
	}
	v, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Rolled back %d migration(s), now at version %d\n", *steps, v)
	return nil
}

func runAdminVersion(args []string) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	v, err := postgres.MigrationVersion(context.Background(), cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Println(v)
	return nil
}

func runAdminListRoles(args []string) error {
	fs := flag.NewFlagSet("list-roles", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	roles, err := postgres.NewStore(pool).ListRoles(ctx)
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}

	if len(roles) == 0 {
		fmt.Println("No roles found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tPERMISSIONS")
	for i := range roles {
		perms := make([]string, 0, len(roles[i].Permissions))
		for _, p := range roles[i].Permissions {
			perms = append(perms, p.Entity+":"+p.Operation)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", roles[i].ID, roles[i].Name, strings.Join(perms, ","))
	}
	return w.Flush()
}

func runAdminToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	userID := fs.String("user", "", "user id (required)")
	username := fs.String("username", "", "display name carried in the token")
	role := fs.String("role", "", "role name")
	realm := fs.String("realm", "", "realm name")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *userID == "" {
		return fmt.Errorf("--user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	vault, err := secrets.NewVault(secrets.EnvLoader(cfg.Auth.SecretEnv))
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}

	token, err := middleware.SignToken(vault.Bytes(cfg.Auth.SecretEnv), cfg.Auth.Issuer, access.Principal{
		UserID:   *userID,
		Username: *username,
		Role:     *role,
		Realm:    *realm,
	}, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// confirm asks a yes/no question on the terminal.
func confirm(prompt string) (bool, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
