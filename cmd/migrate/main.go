package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/airink/storefront-backend/internal/cart"
	"github.com/airink/storefront-backend/internal/coupons"
	"github.com/airink/storefront-backend/pkg/config"
	"github.com/airink/storefront-backend/pkg/db"
	"github.com/airink/storefront-backend/pkg/firestore"
	"github.com/airink/storefront-backend/pkg/logger"
	"github.com/airink/storefront-backend/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string

	couponCode  string
	couponKind  string
	couponValue float64
}

type deps struct {
	cfg   *config.Config
	logg  *logger.Logger
	sqlDB *sql.DB
	db    *db.Client
}

type command struct {
	needsDB bool
	run     func(ctx context.Context, d deps, o options) error
}

var commands = map[string]command{
	"create": {run: func(_ context.Context, _ deps, o options) error {
		if o.name == "" {
			return fmt.Errorf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(o.dir, o.name, time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	}},
	"validate": {run: func(_ context.Context, _ deps, o options) error {
		if err := migrate.ValidateDir(o.dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}},
	"up":     {needsDB: true, run: gooseCommand("up")},
	"down":   {needsDB: true, run: gooseCommand("down")},
	"status": {needsDB: true, run: gooseCommand("status")},
	"version": {needsDB: true, run: func(ctx context.Context, d deps, o options) error {
		if o.version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		steps, err := migrate.MigrateToVersion(ctx, d.sqlDB, o.dir, o.version)
		printSteps(steps)
		return err
	}},
	"seed-coupons": {run: seedCoupons},
	"add-coupon":   {needsDB: true, run: addCoupon},
}

func gooseCommand(name string) func(context.Context, deps, options) error {
	return func(ctx context.Context, d deps, o options) error {
		steps, err := migrate.Run(ctx, d.sqlDB, o.dir, name)
		printSteps(steps)
		return err
	}
}

func printSteps(steps []migrate.Step) {
	if len(steps) == 0 {
		fmt.Println("no migrations to apply")
		return
	}
	for _, s := range steps {
		fmt.Println(s)
	}
}

// seedCoupons copies the fallback table into whichever remote coupon catalog
// is configured.
func seedCoupons(ctx context.Context, d deps, _ options) error {
	table, err := cart.LoadFallbackTable(d.cfg.Coupons.FallbackFile)
	if err != nil {
		return err
	}

	var created int
	switch d.cfg.Cart.RemoteBackend {
	case config.RemoteBackendPostgres:
		client, err := db.New(ctx, d.cfg.DB, d.logg)
		if err != nil {
			return err
		}
		defer client.Close()
		created, err = coupons.NewRepository(client.DB()).Seed(ctx, table)
		if err != nil {
			return err
		}
	case config.RemoteBackendFirestore:
		client, err := firestore.New(ctx, d.cfg.GCP, d.logg)
		if err != nil {
			return err
		}
		defer client.Close()
		created, err = coupons.NewFirestoreSource(client.Firestore()).Seed(ctx, table)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("no remote coupon catalog configured (%s=%s)", config.EnvRemoteBackend, d.cfg.Cart.RemoteBackend)
	}

	d.logg.Info(d.logg.WithFields(ctx, map[string]any{"created": created, "backend": d.cfg.Cart.RemoteBackend}), "migrate.coupons_seeded")
	return nil
}

// addCoupon inserts a single coupon into the Postgres catalog. An existing code
// fails with CONFLICT instead of being overwritten.
func addCoupon(ctx context.Context, d deps, o options) error {
	coupon := cart.Coupon{
		Code:     o.couponCode,
		Kind:     cart.CouponKind(strings.ToLower(strings.TrimSpace(o.couponKind))),
		Value:    o.couponValue,
		IsActive: true,
	}
	if err := coupons.NewRepository(d.db.DB()).Create(ctx, coupon); err != nil {
		return err
	}
	d.logg.Info(d.logg.WithFields(ctx, map[string]any{"code": cart.NormalizeCode(coupon.Code), "type": coupon.Kind}), "migrate.coupon_added")
	return nil
}

func commandNames() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmdName := flag.String("cmd", "up", "migration command: "+commandNames())
	var o options
	flag.StringVar(&o.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&o.name, "name", "", "migration name (for create)")
	flag.StringVar(&o.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.StringVar(&o.couponCode, "code", "", "coupon code (for add-coupon)")
	flag.StringVar(&o.couponKind, "kind", string(cart.CouponPercentage), "coupon type: percentage|fixed|free_shipping (for add-coupon)")
	flag.Float64Var(&o.couponValue, "value", 0, "coupon value (for add-coupon)")
	flag.Parse()

	cmd, ok := commands[*cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown -cmd value %q (expected %s)\n", *cmdName, commandNames())
		os.Exit(1)
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmdName,
		"dir": o.dir,
	})

	d := deps{cfg: cfg, logg: logg}
	if cmd.needsDB {
		d.db, err = db.New(ctx, cfg.DB, logg)
		requireResource(ctx, logg, "database", err)
		defer d.db.Close()

		d.sqlDB, err = d.db.DB().DB()
		requireResource(ctx, logg, "sql database", err)
	}

	logg.Info(ctx, "migrate ready")
	if err := cmd.run(ctx, d, o); err != nil {
		logg.Error(ctx, "migrate command failed", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
