package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/agent-matrix/matrix-system/pkg/client"
	"github.com/agent-matrix/matrix-system/pkg/config"
	"github.com/agent-matrix/matrix-system/pkg/logger"
	"github.com/agent-matrix/matrix-system/pkg/output"
	"github.com/agent-matrix/matrix-system/pkg/storage"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "1.0.0"

// app carries the state shared by all commands of one invocation
type app struct {
	stdout io.Writer
	stderr io.Writer

	// Global flags
	cfgFile      string
	logLevel     string
	jsonLogs     bool
	outputFormat string
	debug        bool
	dumpMetrics  bool

	cfg      *config.Config
	log      *logrus.Logger
	out      output.Handler
	registry *prometheus.Registry
	metrics  *client.Metrics

	clients *client.Set
	store   storage.Store
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{stdout: stdout, stderr: stderr}
	defer a.close()

	rootCmd := a.newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if a.dumpMetrics && a.registry != nil {
		a.writeMetrics()
	}
	if err != nil {
		a.printError(err)
		return 1
	}
	return 0
}

func (a *app) newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "matrix",
		Short: "Operator CLI for the Matrix System",
		Long: `Inspect health, events and remediation proposals of a Matrix deployment
(Matrix-Hub, Matrix-AI, Matrix-Guardian) and review proposals.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "YAML config file (environment variables take precedence)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warning, error, critical")
	flags.BoolVar(&a.jsonLogs, "json-logs", false, "Emit logs as JSON")
	flags.StringVarP(&a.outputFormat, "output", "o", "", "Output format: text, json")
	flags.BoolVar(&a.debug, "debug", false, "Show the full error chain on failure")
	flags.BoolVar(&a.dumpMetrics, "metrics", false, "Print client metrics to stderr on exit")

	rootCmd.AddCommand(
		a.versionCmd(),
		a.infoCmd(),
		a.healthCmd(),
		a.servicesCmd(),
		a.statsCmd(),
		a.eventsCmd(),
		a.proposalsCmd(),
		a.proposalCmd(),
		a.decideCmd("approve"),
		a.decideCmd("reject"),
		a.planCmd(),
		a.probeCmd(),
		a.historyCmd(),
		a.decisionsCmd(),
		a.reportCmd(),
	)
	return rootCmd
}

// setup loads configuration and builds the logger and output handler.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if a.logLevel != "" {
		cfg.LogLevel = strings.ToLower(a.logLevel)
	}
	if a.jsonLogs {
		cfg.LogJSON = true
	}
	if a.outputFormat != "" {
		cfg.OutputFormat = a.outputFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	a.log = logger.New(cfg.LogLevel, cfg.LogJSON, a.stderr)
	a.registry = prometheus.NewRegistry()
	a.metrics = client.NewMetrics(a.registry)

	a.out, err = output.New(cfg.OutputFormat, a.stdout)
	return err
}

// services returns the API clients, building them on first use.
func (a *app) services() (*client.Set, error) {
	if a.clients != nil {
		return a.clients, nil
	}

	hub, err := a.cfg.ServiceConfig(client.ServiceHub)
	if err != nil {
		return nil, err
	}
	ai, err := a.cfg.ServiceConfig(client.ServiceAI)
	if err != nil {
		return nil, err
	}
	guardian, err := a.cfg.ServiceConfig(client.ServiceGuardian)
	if err != nil {
		return nil, err
	}

	set, err := client.NewSet(hub, ai, guardian,
		client.WithLogger(a.log),
		client.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, err
	}
	a.clients = set
	return set, nil
}

// openStore connects to Postgres. Storage has to be enabled explicitly.
func (a *app) openStore() (storage.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	if !a.cfg.StorageEnabled {
		return nil, errors.New("storage is disabled: set STORAGE_ENABLED=true and DATABASE_URL")
	}

	store, err := storage.NewPostgresStore(a.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.store = store
	return store, nil
}

func (a *app) close() {
	if a.clients != nil {
		a.clients.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && a.log != nil {
			a.log.WithError(err).Warn("failed to close storage")
		}
	}
}

func (a *app) printError(err error) {
	fmt.Fprintf(a.stderr, "Error (%s): %v\n", client.Kind(err), err)
	if !a.debug {
		return
	}
	for i, e := range errorChain(err) {
		fmt.Fprintf(a.stderr, "  %d: %T: %v\n", i, e, e)
	}
}

// errorChain flattens err and everything it wraps, depth first.
func errorChain(err error) []error {
	if err == nil {
		return nil
	}
	chain := []error{err}
	switch e := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			chain = append(chain, errorChain(inner)...)
		}
	case interface{ Unwrap() error }:
		chain = append(chain, errorChain(e.Unwrap())...)
	}
	return chain
}

func (a *app) writeMetrics() {
	families, err := a.registry.Gather()
	if err != nil {
		fmt.Fprintf(a.stderr, "failed to gather metrics: %v\n", err)
		return
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(a.stderr, mf); err != nil {
			fmt.Fprintf(a.stderr, "failed to write metrics: %v\n", err)
			return
		}
	}
}
