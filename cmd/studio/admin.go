package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/Strob0t/Studio/internal/adapter/postgres"
	"github.com/Strob0t/Studio/internal/config"
	"github.com/Strob0t/Studio/internal/domain/plan"
	"github.com/Strob0t/Studio/internal/domain/tenant"
	"github.com/Strob0t/Studio/internal/domain/user"
	"github.com/Strob0t/Studio/internal/middleware"
	"github.com/Strob0t/Studio/internal/secrets"
	"github.com/Strob0t/Studio/internal/service"
)

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "list-tenants":
		return runAdminListTenants(args[1:])
	case "create-tenant":
		return runAdminCreateTenant(args[1:])
	case "set-plan":
		return runAdminSetPlan(args[1:])
	case "issue-token":
		return runAdminIssueToken(args[1:])
	case "purge-webhooks":
		return runAdminPurgeWebhooks(args[1:])
	case "migrate-status":
		return runAdminMigrateStatus(args[1:])
	case "migrate-down":
		return runAdminMigrateDown(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: studio admin <command> [options]

Commands:
  list-tenants     List all tenants
  create-tenant    Create a new tenant
  set-plan         Change a tenant's plan
  issue-token      Sign a bearer token for a tenant user
  purge-webhooks   Delete webhook receipts past the retention window
  migrate-status   Show the applied schema version
  migrate-down     Roll back schema migrations
  help             Show this help message

Examples:
  studio admin create-tenant --name "Acme Studio" --slug acme --plan free --trial-days 14
  studio admin set-plan --tenant 6f1c... --plan professional
  studio admin issue-token --tenant 6f1c... --user 2b7e... --email host@acme.test --role admin
  studio admin purge-webhooks --max-age 720h
  studio admin migrate-down --steps 1
`)
}

type adminDeps struct {
	cfg     *config.Config
	store   *postgres.Store
	tenants *service.TenantService
}

func loadAdminDeps() (*adminDeps, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	store := postgres.NewStore(pool)
	deps := &adminDeps{
		cfg:     cfg,
		store:   store,
		tenants: service.NewTenantService(store, nil, nil),
	}

	cleanup := func() {
		pool.Close()
	}
	return deps, cleanup, nil
}

func runAdminListTenants(args []string) error {
	fs := flag.NewFlagSet("list-tenants", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	deps, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	tenants, err := deps.tenants.List(context.Background())
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	if len(tenants) == 0 {
		fmt.Println("No tenants found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSLUG\tNAME\tPLAN\tTRIAL_ENDS\tCREATED")
	for i := range tenants {
		t := &tenants[i]
		trial := "-"
		if t.TrialEndsAt != nil {
			trial = t.TrialEndsAt.Format(time.DateOnly)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Slug, t.Name, t.Plan, trial, t.CreatedAt.Format(time.DateOnly))
	}
	return w.Flush()
}

func runAdminCreateTenant(args []string) error {
	fs := flag.NewFlagSet("create-tenant", flag.ContinueOnError)
	name := fs.String("name", "", "tenant display name (required)")
	slug := fs.String("slug", "", "lowercase url slug (required)")
	planName := fs.String("plan", string(plan.Free), "initial plan")
	trialDays := fs.Int("trial-days", 0, "trial length in days")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *name == "" {
		return fmt.Errorf("--name is required")
	}
	if *slug == "" {
		return fmt.Errorf("--slug is required")
	}
	p, err := plan.Parse(*planName)
	if err != nil {
		return err
	}

	deps, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	t, err := deps.tenants.Create(context.Background(), tenant.CreateRequest{
		Name:      *name,
		Slug:      *slug,
		Plan:      p,
		TrialDays: *trialDays,
	})
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Tenant created: %s (id=%s, plan=%s)\n", t.Slug, t.ID, t.Plan)
	return nil
}

func runAdminSetPlan(args []string) error {
	fs := flag.NewFlagSet("set-plan", flag.ContinueOnError)
	tenantID := fs.String("tenant", "", "tenant id (required)")
	planName := fs.String("plan", "", "new plan (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *tenantID == "" {
		return fmt.Errorf("--tenant is required")
	}
	if *planName == "" {
		return fmt.Errorf("--plan is required")
	}

	deps, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	t, err := deps.tenants.UpdatePlan(context.Background(), *tenantID, *planName)
	if err != nil {
		return fmt.Errorf("set plan: %w", err)
	}

	// Running servers keep the old plan until their plan cache expires.
	fmt.Fprintf(os.Stderr, "Tenant %s is now on %s (cached plans expire within %s)\n",
		t.Slug, t.Plan, deps.cfg.Quota.PlanCacheTTL)
	return nil
}

func runAdminIssueToken(args []string) error {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	tenantID := fs.String("tenant", "", "tenant id (required)")
	userID := fs.String("user", "", "user id (required)")
	email := fs.String("email", "", "user email")
	name := fs.String("name", "", "user display name")
	role := fs.String("role", string(user.RoleMember), "admin, member or viewer")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *tenantID == "" {
		return fmt.Errorf("--tenant is required")
	}
	if *userID == "" {
		return fmt.Errorf("--user is required")
	}
	r := user.Role(*role)
	if !user.ValidRoles[r] {
		return fmt.Errorf("invalid role %q", *role)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	secret := os.Getenv(secrets.JWTSecret)
	if secret == "" {
		secret, err = promptPassword("Signing secret: ")
		if err != nil {
			return fmt.Errorf("read secret: %w", err)
		}
	}

	verifier := middleware.NewJWTVerifier(func() string { return secret }, cfg.Auth.Issuer, cfg.Auth.Audience)
	token, err := verifier.Issue(&user.User{
		ID:       *userID,
		Email:    *email,
		Name:     *name,
		TenantID: *tenantID,
		Role:     r,
	}, *ttl)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func runAdminPurgeWebhooks(args []string) error {
	fs := flag.NewFlagSet("purge-webhooks", flag.ContinueOnError)
	maxAge := fs.Duration("max-age", 0, "retention window (defaults to retention.webhook_events)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	deps, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	window := deps.cfg.Retention.WebhookEvents
	if *maxAge > 0 {
		window = *maxAge
	}

	n, err := service.NewRetentionService(deps.store, deps.cfg.Retention.Schedule, window).Run(context.Background())
	if err != nil {
		return fmt.Errorf("purge webhooks: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Purged %d webhook receipts older than %s\n", n, window)
	return nil
}

func runAdminMigrateStatus(args []string) error {
	fs := flag.NewFlagSet("migrate-status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	v, err := postgres.MigrationVersion(context.Background(), cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}

	fmt.Printf("schema version %d\n", v)
	return nil
}

func runAdminMigrateDown(args []string) error {
	fs := flag.NewFlagSet("migrate-down", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back")
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

	if err := postgres.RollbackMigrations(context.Background(), cfg.Postgres.DSN, *steps); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Rolled back %d migration(s)\n", *steps)
	return nil
}

// promptPassword reads a secret from the terminal without echoing.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)                         // newline after input
	if err != nil {
		return "", err
	}
	return string(b), nil
}
