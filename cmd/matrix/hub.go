package main

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/agent-matrix/matrix-system/pkg/client"
	"github.com/agent-matrix/matrix-system/pkg/models"
)

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		// Works without a valid configuration
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.stdout, "matrix version %s\n", version)
			return nil
		},
	}
}

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.cfg
			return a.out.DisplayMap("Configuration", map[string]interface{}{
				"hub_url":         c.HubURL,
				"ai_url":          c.AIURL,
				"guardian_url":    c.GuardianURL,
				"token":           c.MaskedToken(),
				"timeout":         c.Timeout.String(),
				"max_retries":     c.MaxRetries,
				"rate_limit":      c.RateLimit,
				"log_level":       c.LogLevel,
				"storage_enabled": c.StorageEnabled,
				"prometheus_url":  c.PrometheusURL,
				"version":         version,
			})
		},
	}
}

func (a *app) healthCmd() *cobra.Command {
	var (
		service string
		direct  bool
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check service health",
		Long: `Check the health of a Matrix service as reported by Matrix-Hub.
Use --service all to check every backend. With --direct each backend's own
/health endpoint is queried instead of the hub.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := []string{service}
			if service == "all" {
				targets = client.Services
			} else if !isService(service) {
				return fmt.Errorf("unknown service %q (want hub, ai, guardian or all)", service)
			}

			set, err := a.services()
			if err != nil {
				return err
			}

			var failed error
			for _, name := range targets {
				start := time.Now()
				payload, err := a.checkHealth(cmd, set, name, direct)
				elapsed := time.Since(start)

				if err != nil {
					a.log.WithError(err).WithField("service", name).Warn("health check failed")
					payload = map[string]interface{}{
						"status": string(models.HealthUnhealthy),
						"error":  err.Error(),
					}
					failed = errors.Join(failed, fmt.Errorf("%s: %w", name, err))
				}
				if payload == nil {
					payload = map[string]interface{}{}
				}
				payload["response_time_ms"] = math.Round(float64(elapsed.Microseconds())/10) / 100

				if err := a.out.DisplayHealth(name, payload); err != nil {
					return err
				}
			}
			if failed != nil {
				return fmt.Errorf("health check failed: %w", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&service, "service", "s", client.ServiceHub, "Service to check: hub, ai, guardian, all")
	cmd.Flags().BoolVar(&direct, "direct", false, "Query each backend's own /health endpoint")
	return cmd
}

func (a *app) checkHealth(cmd *cobra.Command, set *client.Set, name string, direct bool) (map[string]interface{}, error) {
	if !direct {
		if name == client.ServiceHub {
			return set.Hub.Health(cmd.Context())
		}
		return set.Hub.HealthCheck(cmd.Context(), name)
	}
	c, err := set.Service(name)
	if err != nil {
		return nil, err
	}
	return c.HealthCheck(cmd.Context(), "")
}

func isService(name string) bool {
	for _, s := range client.Services {
		if s == name {
			return true
		}
	}
	return false
}

func (a *app) servicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "services [id]",
		Short: "List services registered with Matrix-Hub",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := a.services()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				svc, err := set.Hub.GetService(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.out.DisplayServices([]models.Service{*svc})
			}

			services, err := set.Hub.ListServices(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.DisplayServices(services)
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show Matrix-Hub statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := a.services()
			if err != nil {
				return err
			}
			stats, err := set.Hub.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.DisplayMap("Statistics", stats)
		},
	}
}

func (a *app) eventsCmd() *cobra.Command {
	var (
		limit  int
		offset int
		appUID string
		types  []string
		actor  string
		since  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent events from the audit trail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := models.NewEventFilter()
			filter.Limit = limit
			filter.Offset = offset
			filter.AppUID = appUID
			filter.Actor = actor
			for _, t := range types {
				filter.EventTypes = append(filter.EventTypes, models.EventType(t))
			}
			if since > 0 {
				start := time.Now().UTC().Add(-since)
				filter.StartTime = &start
			}

			set, err := a.services()
			if err != nil {
				return err
			}
			events, err := set.Hub.ListEvents(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return a.out.DisplayEvents(events)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", models.DefaultEventLimit, "Maximum number of events (1-1000)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of events to skip")
	cmd.Flags().StringVar(&appUID, "app", "", "Only events for this app UID")
	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "Only events of these types (repeatable)")
	cmd.Flags().StringVar(&actor, "actor", "", "Only events by this actor")
	cmd.Flags().DurationVar(&since, "since", 0, "Only events newer than this (e.g. 1h)")
	return cmd
}
