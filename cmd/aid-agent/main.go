// Command aid-agent wires the reconciliation core into a runnable process:
// a SQL-backed desired universe, a SQL-backed operational universe, and a
// reconcile loop driving the latter toward the former on a fixed interval.
// Pattern and flag layout follow the teacher's cmd/bd root-command-plus-
// subcommand shape.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gaurav-dalvi/aci-integration-module/internal/config"
	"github.com/gaurav-dalvi/aci-integration-module/internal/ledger"
	"github.com/gaurav-dalvi/aci-integration-module/internal/logging"
	"github.com/gaurav-dalvi/aci-integration-module/internal/reconciler"
	"github.com/gaurav-dalvi/aci-integration-module/internal/store"
	"github.com/gaurav-dalvi/aci-integration-module/internal/telemetry"
	"github.com/gaurav-dalvi/aci-integration-module/internal/types"
	"github.com/gaurav-dalvi/aci-integration-module/internal/universe"
)

// Version is set at build time via -ldflags; left as a placeholder default
// the way the teacher's cmd/bd/main.go does for its own Version/Build vars.
var Version = "dev"

var (
	configPath   string
	desiredDSN   string
	desiredDrv   string
	operDSN      string
	operDrv      string
	tenantNames  []string
	interval     time.Duration
	selfName     string
	alwaysVote   bool
)

// FatalError writes a message to stderr and exits with code 1 — grounded on
// cmd/bd/errors.go's helper of the same name. Both desired- and operational-
// universe instances are wired to call this as their system-critical abort
// primitive (see newAgent), so a system-critical Failure Ledger outcome (§6,
// §7) actually terminates the process instead of only logging it.
func FatalError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

var rootCmd = &cobra.Command{
	Use:   "aid-agent",
	Short: "aid-agent - ACI inconsistency detector reconciliation agent",
	Long:  `Drives an operational fabric-controller universe toward a desired intent universe via content-addressed hash-tree diffing.`,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to config.yaml (max_operation_retry, retry_cooldown)")
	rootCmd.PersistentFlags().StringVar(&desiredDSN, "desired-dsn", "file:desired.db", "DSN for the desired-universe intent store")
	rootCmd.PersistentFlags().StringVar(&desiredDrv, "desired-driver", "dolt", "Driver name for the desired-universe store (dolt or mysql)")
	rootCmd.PersistentFlags().StringVar(&operDSN, "operational-dsn", "file:operational.db", "DSN for the operational-universe intent store")
	rootCmd.PersistentFlags().StringVar(&operDrv, "operational-driver", "dolt", "Driver name for the operational-universe store (dolt or mysql)")
	rootCmd.PersistentFlags().StringSliceVar(&tenantNames, "tenant", nil, "Tenant(s) to serve; repeatable")
	rootCmd.PersistentFlags().StringVar(&selfName, "self", "aid-agent", "This agent's name in the tenant-deletion vote set")
	rootCmd.PersistentFlags().BoolVar(&alwaysVote, "always-vote-deletion", false, "Vote every served tenant deletable regardless of content (§9 Open Question)")

	runCmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "Reconcile pass interval")

	rootCmd.AddCommand(runCmd, onceCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reconcile loop until signaled to stop",
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(cmd.Context())
		if err != nil {
			return err
		}
		defer agent.Close()

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		logging.Infof("aid-agent: version=%s starting run loop interval=%s tenants=%d", Version, interval, len(agent.tenants))
		for {
			if err := agent.pass(ctx); err != nil {
				logging.Errorf("aid-agent: reconcile pass failed: %v", err)
			}
			select {
			case <-ctx.Done():
				logging.Infof("aid-agent: shutdown signal received, exiting")
				return nil
			case <-ticker.C:
			}
		}
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run exactly one reconcile pass and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(cmd.Context())
		if err != nil {
			return err
		}
		defer agent.Close()
		return agent.pass(cmd.Context())
	},
}

// agent bundles the wired-up universes, votes, and config loader a reconcile
// pass needs, so run/once share identical setup.
type agent struct {
	loader     *config.Loader
	desired    *store.Store
	operational *store.Store
	self       *universe.DesiredUniverse
	other      *universe.DesiredOperationalUniverse
	votes      *reconciler.DeleteVotes
	tenants    []types.TenantID
	shutdownTelemetry func(context.Context) error
}

func newAgent(ctx context.Context) (*agent, error) {
	loader, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("aid-agent: load config: %w", err)
	}
	if err := loader.Watch(); err != nil {
		logging.Warnf("aid-agent: config hot-reload disabled: %v", err)
	}

	providers, err := telemetry.Init(telemetry.Config{ServiceName: "aid-agent", ServiceVersion: Version})
	if err != nil {
		logging.Warnf("aid-agent: telemetry init failed, continuing without it: %v", err)
	}

	cur := loader.Current()

	desiredStore, err := store.Open(ctx, store.Config{DriverName: desiredDrv, DSN: desiredDSN})
	if err != nil {
		return nil, fmt.Errorf("aid-agent: open desired store: %w", err)
	}
	operStore, err := store.Open(ctx, store.Config{DriverName: operDrv, DSN: operDSN})
	if err != nil {
		desiredStore.Close()
		return nil, fmt.Errorf("aid-agent: open operational store: %w", err)
	}

	desiredLedger := ledger.New(cur.MaxOperationRetry, cur.RetryCooldown)
	operLedger := ledger.New(cur.MaxOperationRetry, cur.RetryCooldown)

	self := universe.NewDesiredUniverse(desiredStore, desiredLedger)
	other := universe.NewDesiredOperationalUniverse(operStore, operLedger)
	self.SetAbortFunc(FatalError)
	other.SetAbortFunc(FatalError)

	tenants := make([]types.TenantID, 0, len(tenantNames))
	for _, n := range tenantNames {
		tenants = append(tenants, types.TenantID(n))
	}
	self.Serve(tenants)
	other.Serve(tenants)

	shutdown := func(context.Context) error { return nil }
	if providers != nil {
		shutdown = providers.Shutdown
	}

	return &agent{
		loader:            loader,
		desired:           desiredStore,
		operational:       operStore,
		self:              self,
		other:             other,
		votes:             reconciler.NewDeleteVotes(),
		tenants:           tenants,
		shutdownTelemetry: shutdown,
	}, nil
}

func (a *agent) pass(ctx context.Context) error {
	if err := a.self.Observe(ctx); err != nil {
		return fmt.Errorf("observe self: %w", err)
	}
	if err := a.other.Observe(ctx); err != nil {
		return fmt.Errorf("observe other: %w", err)
	}

	cur := a.loader.Current()
	opts := reconciler.Options{AlwaysVoteDeletion: alwaysVote, SkipDummy: cur.SkipDummy}

	results, err := reconciler.Reconcile(ctx, a.other, selfName, a.self, a.votes, opts)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	for _, r := range results {
		if r.Pushed {
			logging.Infof("aid-agent: tenant=%s created=%d deleted=%d failures=%d", r.Tenant, len(r.Created), len(r.Deleted), len(r.Failures))
		}
	}
	return nil
}

func (a *agent) Close() {
	if err := a.loader.Close(); err != nil {
		logging.Warnf("aid-agent: config watcher close: %v", err)
	}
	if err := a.desired.Close(); err != nil {
		logging.Warnf("aid-agent: desired store close: %v", err)
	}
	if err := a.operational.Close(); err != nil {
		logging.Warnf("aid-agent: operational store close: %v", err)
	}
	if err := a.shutdownTelemetry(context.Background()); err != nil {
		logging.Warnf("aid-agent: telemetry shutdown: %v", err)
	}
}
