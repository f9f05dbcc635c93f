// Command airgun lists the navigation graph and drives a browser to any
// registered step from the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/SatelliteQE/airgun-sub001/pkg/config"
	"github.com/SatelliteQE/airgun-sub001/pkg/entities"
	"github.com/SatelliteQE/airgun-sub001/pkg/logging"
	"github.com/SatelliteQE/airgun-sub001/pkg/models"
	"github.com/SatelliteQE/airgun-sub001/pkg/navigation"
	"github.com/SatelliteQE/airgun-sub001/pkg/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "airgun",
		Short: "Navigate the Satellite web UI through registered navigation steps",
		Long: `airgun walks the navigation graph of the Satellite web UI.

Examples:
  airgun steps                                   # List every step and its chain
  airgun navigate Host All                       # Open the hosts list
  airgun navigate Host Edit -p entity_name=web01 # Open one host
  airgun navigate JobInvocation New --screenshot job.png`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return os.Setenv("AIRGUN_CONFIG", configPath)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./airgun.yaml)")

	root.AddCommand(newStepsCmd(), newNavigateCmd())
	return root
}

func newStepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List registered navigation steps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := navigation.NewRegistry()
			if err := entities.Register(reg); err != nil {
				return err
			}
			return printSteps(cmd.OutOrStdout(), reg.Steps())
		},
	}
}

func printSteps(out io.Writer, steps []models.StepInfo) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tSTEP\tVIEW\tCHAIN")
	for _, s := range steps {
		chain := make([]string, 0, len(s.Chain))
		for _, ref := range s.Chain {
			chain = append(chain, ref.String())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Entity, s.Step, s.View, strings.Join(chain, " > "))
	}
	return tw.Flush()
}

func newNavigateCmd() *cobra.Command {
	var (
		params     []string
		headless   bool
		screenshot string
	)

	cmd := &cobra.Command{
		Use:   "navigate ENTITY STEP",
		Short: "Log in and navigate to a step",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams(params)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("headless") {
				cfg.Browser.Headless = headless
			}

			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			s, err := session.Start(ctx, cfg, session.WithLogger(logger))
			if err != nil {
				return err
			}
			defer s.Close()

			v, err := s.Navigate(ctx, args[0], args[1], p)
			if err != nil {
				return err
			}

			url, err := s.URL(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", v.Name(), url)

			if screenshot == "" {
				return nil
			}
			data, err := s.Screenshot(ctx)
			if err != nil {
				return err
			}
			return os.WriteFile(screenshot, data, 0644)
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "step parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&headless, "headless", true, "run the browser without a window")
	cmd.Flags().StringVar(&screenshot, "screenshot", "", "save a PNG of the final page to this file")
	return cmd
}

// parseParams turns key=value pairs into step parameters.
func parseParams(pairs []string) (navigation.Params, error) {
	p := navigation.Params{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, want key=value", pair)
		}
		p[key] = value
	}
	return p, nil
}
