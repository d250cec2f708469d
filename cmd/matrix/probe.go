package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agent-matrix/matrix-system/pkg/analyzer"
	"github.com/agent-matrix/matrix-system/pkg/datasource"
	"github.com/agent-matrix/matrix-system/pkg/models"
	"github.com/agent-matrix/matrix-system/pkg/reporter"
	"github.com/agent-matrix/matrix-system/pkg/scanner"
	"github.com/agent-matrix/matrix-system/pkg/storage"
)

const (
	sourcePrometheus = "prometheus"
	sourceKubernetes = "k8s"
)

// probeTarget selects what a health source should look at.
type probeTarget struct {
	source        string
	job           string
	namespace     string
	allNamespaces bool
}

func (t *probeTarget) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&t.source, "source", sourcePrometheus, "Health source: prometheus, k8s")
	cmd.Flags().StringVar(&t.job, "job", "", "Prometheus probe job (default: every job)")
	cmd.Flags().StringVarP(&t.namespace, "namespace", "n", "default", "Kubernetes namespace")
	cmd.Flags().BoolVarP(&t.allNamespaces, "all-namespaces", "A", false, "Scan all Kubernetes namespaces")
}

func (t *probeTarget) name() string {
	switch {
	case t.source == sourcePrometheus && t.job != "":
		return "job " + t.job
	case t.source == sourcePrometheus:
		return "all jobs"
	case t.allNamespaces:
		return "all namespaces"
	default:
		return "namespace " + t.namespace
	}
}

// collect gathers health checks from the configured source.
func (a *app) collect(cmd *cobra.Command, t *probeTarget) ([]models.HealthCheck, error) {
	switch t.source {
	case sourcePrometheus:
		if a.cfg.PrometheusURL == "" {
			return nil, fmt.Errorf("prometheus source needs PROMETHEUS_URL")
		}
		src, err := datasource.NewPrometheusSource(a.cfg.PrometheusURL, a.cfg.ProbeWindow, a.log)
		if err != nil {
			return nil, err
		}
		return a.checksFrom(cmd, src, t.job)

	case sourceKubernetes:
		sc, err := scanner.New(a.cfg.Kubeconfig, a.log)
		if err != nil {
			return nil, err
		}
		if t.allNamespaces {
			return sc.Scan(cmd.Context(), "", true)
		}
		return a.checksFrom(cmd, sc, t.namespace)

	default:
		return nil, fmt.Errorf("unknown source %q (want prometheus or k8s)", t.source)
	}
}

func (a *app) checksFrom(cmd *cobra.Command, src datasource.HealthSource, target string) ([]models.HealthCheck, error) {
	if !src.IsAvailable(cmd.Context()) {
		return nil, fmt.Errorf("%s is not reachable", src.Name())
	}
	a.log.WithField("source", src.Name()).WithField("target", target).Debug("collecting health checks")
	return src.Checks(cmd.Context(), target)
}

func (a *app) probeCmd() *cobra.Command {
	var (
		target probeTarget
		save   bool
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Derive health checks from Prometheus or Kubernetes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checks, err := a.collect(cmd, &target)
			if err != nil {
				return err
			}

			if save {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				if err := store.SaveHealthChecks(cmd.Context(), checks); err != nil {
					return err
				}
				a.log.WithField("count", len(checks)).Info("saved health checks")
			}
			return a.out.DisplayChecks(checks)
		},
	}

	target.addFlags(cmd)
	cmd.Flags().BoolVar(&save, "save", false, "Store the checks in Postgres")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var (
		limit   int
		analyze bool
	)

	cmd := &cobra.Command{
		Use:   "history <app_uid>",
		Short: "Show stored health checks for an app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			checks, err := store.ListHealthChecks(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if !analyze {
				return a.out.DisplayChecks(checks)
			}

			analysis, err := analyzer.AnalyzeHistory(args[0], checks)
			if err != nil {
				return err
			}
			return a.out.DisplayMap("Health trend for "+args[0], analysis.Fields())
		},
	}

	cmd.Flags().IntVar(&limit, "limit", storage.DefaultHistoryLimit, "Maximum number of checks")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Show score statistics and trend instead of the raw checks")
	return cmd
}

func (a *app) reportCmd() *cobra.Command {
	var (
		target        probeTarget
		format        string
		outPath       string
		withProposals bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write a health and remediation report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reportFormat, err := reporter.ParseFormat(format)
			if err != nil {
				return err
			}

			checks, err := a.collect(cmd, &target)
			if err != nil {
				return err
			}

			var proposals []models.Proposal
			if withProposals {
				set, err := a.services()
				if err != nil {
					return err
				}
				proposals, err = set.Hub.ListProposals(cmd.Context(), "")
				if err != nil {
					return err
				}
			}

			rep := reporter.New(reportFormat)
			report, err := rep.Generate(checks, proposals, target.source, target.name())
			if err != nil {
				return err
			}

			var w io.Writer = a.stdout
			if outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("failed to create report file: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := rep.Write(report, w); err != nil {
				return err
			}
			if outPath != "-" {
				a.log.WithField("path", outPath).Info("report written")
			}
			return nil
		},
	}

	target.addFlags(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", string(reporter.FormatMarkdown), "Report format: csv, markdown")
	cmd.Flags().StringVar(&outPath, "out", "-", "Output file (- for stdout)")
	cmd.Flags().BoolVar(&withProposals, "with-proposals", false, "Include proposals from Matrix-Hub")
	return cmd
}
