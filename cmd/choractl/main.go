// Command choractl is a thin cobra CLI over a local store: dispatch,
// capabilities, and pulse run/status — a cobra root with domain
// subcommands wrapping simple Run closures.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"chora/core/engine"
	"chora/core/primitive"
	"chora/core/pulse"
	"chora/core/semantic"
	"chora/core/store"
	"chora/pkg/config"
)

func main() {
	root := &cobra.Command{Use: "choractl"}
	root.PersistentFlags().String("store", "", "path to the graph store (overrides config)")

	root.AddCommand(dispatchCmd())
	root.AddCommand(capabilitiesCmd())
	root.AddCommand(pulseCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openEngine(cmd *cobra.Command) (*store.Store, *engine.Engine, *config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, nil, err
	}
	if override, _ := cmd.Flags().GetString("store"); override != "" {
		cfg.Store.Path = override
	}
	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	reg := primitive.NewStandardRegistry()
	sem := semantic.New(s, semantic.NewHashVectorizer(cfg.Semantic.VectorDim))
	primitive.RegisterCognition(reg, sem)
	eng := engine.New(s, reg)
	eng.StepBudget = cfg.VM.StepBudget
	return s, eng, cfg, nil
}

func dispatchCmd() *cobra.Command {
	var inputsJSON string
	var persona string
	var deadlineMillis int
	cmd := &cobra.Command{
		Use:   "dispatch <intent>",
		Short: "dispatch an intent to a primitive or protocol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, eng, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			inputs := map[string]any{}
			if inputsJSON != "" {
				if err := json.Unmarshal([]byte(inputsJSON), &inputs); err != nil {
					return fmt.Errorf("parse --inputs: %w", err)
				}
			}
			var deadline time.Duration
			if deadlineMillis > 0 {
				deadline = time.Duration(deadlineMillis) * time.Millisecond
			}
			res := eng.Dispatch(context.Background(), args[0], inputs, cmd.OutOrStdout(), persona, deadline)
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&inputsJSON, "inputs", "", "JSON object of intent inputs")
	cmd.Flags().StringVar(&persona, "persona", "", "acting persona id")
	cmd.Flags().IntVar(&deadlineMillis, "deadline-ms", 0, "protocol execution deadline in milliseconds")
	return cmd
}

func capabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "list every dispatchable protocol and primitive",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, eng, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			caps, err := eng.Capabilities()
			if err != nil {
				return err
			}
			return printJSON(cmd, caps)
		},
	}
}

func pulseCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "pulse"}
	cmd.AddCommand(pulseRunCmd())
	cmd.AddCommand(pulseStatusCmd())
	return cmd
}

// pulseStatusCmd reports the running chorad daemon's pulse status —
// unlike dispatch/capabilities/pulse-run, this queries the daemon's HTTP
// surface instead of opening the store directly.
func pulseStatusCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "report the running daemon's pulse history",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := addr
			if target == "" {
				cfg, err := config.LoadFromEnv()
				if err != nil {
					return err
				}
				target = cfg.HTTP.ListenAddr
			}
			resp, err := http.Get(daemonURL(target) + "/pulse/status")
			if err != nil {
				return fmt.Errorf("reach chorad at %s: %w", target, err)
			}
			defer resp.Body.Close()
			var status map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				return err
			}
			return printJSON(cmd, status)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "chorad HTTP listen address (overrides config)")
	return cmd
}

// daemonURL turns a listen address like ":8080" or "0.0.0.0:8080" into a
// URL choractl can reach chorad at on localhost.
func daemonURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func pulseRunCmd() *cobra.Command {
	var preview bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "force an immediate pulse tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, eng, cfg, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			p := pulse.New(s, eng, pulse.Config{Enabled: true, IntervalSeconds: cfg.Pulse.IntervalSeconds}, clock.New(), nil)
			summary := p.Tick(context.Background(), preview)
			return printJSON(cmd, summary)
		},
	}
	cmd.Flags().BoolVar(&preview, "preview", false, "evaluate the tick without writing any changes")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
