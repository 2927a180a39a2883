package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/alexgavs/eyeson-go/internal/apispec"
	"github.com/alexgavs/eyeson-go/internal/cache"
	"github.com/alexgavs/eyeson-go/internal/config"
	"github.com/alexgavs/eyeson-go/internal/eyesont"
	"github.com/alexgavs/eyeson-go/internal/models"
	"github.com/alexgavs/eyeson-go/internal/pdfspec"
	"github.com/alexgavs/eyeson-go/internal/smoketest"

	"github.com/spf13/cobra"
)

const (
	targetUpstream  = "upstream"
	targetSimulator = "simulator"
)

var (
	rootCmd = &cobra.Command{
		Use:          "eyeson-tools",
		Short:        "Tooling around the Pelephone provisioning API",
		SilenceUsage: true,
	}

	smokeCmd = &cobra.Command{
		Use:   "smoke",
		Short: "Run the contract scenario against the simulator",
		Long:  "Run the contract scenario against the simulator. It suspends a subscriber, so the upstream needs --allow-upstream.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkSmokeTarget(cmd); err != nil {
				return err
			}
			cfg, baseURL, creds, err := resolveTarget(cmd)
			if err != nil {
				return err
			}
			client, err := newClient(cmd, cfg, baseURL, creds)
			if err != nil {
				return err
			}
			wait, _ := cmd.Flags().GetBool("wait")
			restore, _ := cmd.Flags().GetBool("restore")

			report := smoketest.NewRunner(client, smoketest.Options{
				WaitForJobs:  wait,
				PollInterval: time.Duration(cfg.ApiDelayMs) * time.Millisecond,
				Restore:      restore,
			}).Run(cmd.Context())
			fmt.Fprint(cmd.OutOrStdout(), report.String())
			if !report.OK() {
				return errors.New("smoke test failed")
			}
			return nil
		},
	}

	captureCmd = &cobra.Command{
		Use:   "capture",
		Short: "Store raw API responses in the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, baseURL, creds, err := resolveTarget(cmd)
			if err != nil {
				return err
			}
			client, err := newClient(cmd, cfg, baseURL, creds)
			if err != nil {
				return err
			}
			store, err := cache.New(cfg)
			if err != nil {
				return err
			}
			refresh, _ := cmd.Flags().GetBool("refresh")
			fetched, err := apispec.Capture(cmd.Context(), client, store, refresh)
			if err != nil {
				return err
			}
			if !fetched {
				fmt.Fprintln(cmd.OutOrStdout(), "cache is complete, use --refresh to fetch again")
			}
			return nil
		},
	}

	genSpecCmd = &cobra.Command{
		Use:   "gen-spec",
		Short: "Generate an OpenAPI document from captured responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			refresh, _ := cmd.Flags().GetBool("refresh")
			offline, _ := cmd.Flags().GetBool("offline")
			format, _ := cmd.Flags().GetString("format")
			out, _ := cmd.Flags().GetString("out")

			cfg, baseURL, creds, err := resolveTarget(cmd)
			if err != nil {
				return err
			}
			store, err := cache.New(cfg)
			if err != nil {
				return err
			}
			if !offline {
				client, err := newClient(cmd, cfg, baseURL, creds)
				if err != nil {
					return err
				}
				if _, err := apispec.Capture(cmd.Context(), client, store, refresh); err != nil {
					return err
				}
			}
			doc, err := apispec.Generate(cmd.Context(), store, baseURL)
			if err != nil {
				return err
			}
			body, err := apispec.Encode(doc, format)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(out, body, 0o644); err != nil {
				return err
			}
			log.Printf("OpenAPI document written to %s", out)
			return nil
		},
	}

	extractPDFCmd = &cobra.Command{
		Use:   "extract-pdf [pdf]",
		Short: "Extract endpoint paths and hook mentions from the vendor PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			dir, _ := cmd.Flags().GetString("out")
			if dir == "" {
				dir = cfg.SpecExtractDir
			}
			prefix, _ := cmd.Flags().GetString("prefix")

			text, pages, err := pdfspec.ExtractText(args[0])
			if err != nil {
				return err
			}
			res := pdfspec.Mine(text)
			if err := pdfspec.WriteReport(dir, prefix, text, res); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "pages=%d\n", pages)
			fmt.Fprintf(w, "paths=%d rpc_tokens=%d hook_lines=%d\n", len(res.Paths), len(res.RPCTokens), len(res.HookLines))
			for i, p := range res.Paths {
				if i == 50 {
					break
				}
				fmt.Fprintln(w, "-", p)
			}
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().String("base-url", "", "Override the base URL of the target")
	rootCmd.PersistentFlags().String("username", "", "Override the API username")
	rootCmd.PersistentFlags().String("password", "", "Override the API password")

	rootCmd.AddCommand(smokeCmd, captureCmd, genSpecCmd, extractPDFCmd)

	smokeCmd.Flags().String("target", targetSimulator, "API to talk to: simulator or upstream")
	smokeCmd.Flags().Bool("allow-upstream", false, "Allow the state-changing scenario to run against the upstream")
	smokeCmd.Flags().Bool("wait", false, "Poll the job list until each update completes")
	smokeCmd.Flags().Bool("restore", true, "Put the touched SIM back to its original status")

	captureCmd.Flags().String("target", targetUpstream, "API to talk to: upstream or simulator")
	captureCmd.Flags().Bool("refresh", false, "Fetch even when every response is cached")

	genSpecCmd.Flags().String("target", targetUpstream, "API to talk to: upstream or simulator")
	genSpecCmd.Flags().Bool("refresh", false, "Fetch even when every response is cached")
	genSpecCmd.Flags().Bool("offline", false, "Only use what is already cached")
	genSpecCmd.Flags().String("format", apispec.FormatJSON, "Output format: json or yaml")
	genSpecCmd.Flags().String("out", "", "Output file, stdout when empty")

	extractPDFCmd.Flags().String("out", "", "Output directory, SPEC_EXTRACT_DIR when empty")
	extractPDFCmd.Flags().String("prefix", pdfspec.DefaultPrefix, "File name prefix of the report")

	rootCmd.SetContext(context.Background())
}

// checkSmokeTarget refuses the upstream unless it was asked for explicitly.
func checkSmokeTarget(cmd *cobra.Command) error {
	target, _ := cmd.Flags().GetString("target")
	allow, _ := cmd.Flags().GetBool("allow-upstream")
	if target == targetUpstream && !allow {
		return errors.New("smoke changes subscriber state; pass --allow-upstream to run it against the upstream")
	}
	return nil
}

// resolveTarget picks base URL and credentials for --target, letting flags
// override the config.
func resolveTarget(cmd *cobra.Command) (*config.Config, string, models.Credentials, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, "", models.Credentials{}, err
	}

	target, _ := cmd.Flags().GetString("target")
	var baseURL string
	var creds models.Credentials
	switch target {
	case targetUpstream:
		baseURL = cfg.ApiBaseUrl
		creds = models.Credentials{Username: cfg.ApiUsername, Password: cfg.ApiPassword}
	case targetSimulator:
		baseURL = cfg.SimulatorBaseUrl
		creds = models.Credentials{Username: cfg.SimulatorUsername, Password: cfg.SimulatorPassword}
		if creds.Username == "" {
			// an open simulator takes any non-empty pair
			creds = models.Credentials{Username: "smoke", Password: "smoke"}
		}
	default:
		return nil, "", models.Credentials{}, fmt.Errorf("unknown target %q", target)
	}

	if v, _ := cmd.Flags().GetString("base-url"); v != "" {
		baseURL = v
	}
	if v, _ := cmd.Flags().GetString("username"); v != "" {
		creds.Username = v
	}
	if v, _ := cmd.Flags().GetString("password"); v != "" {
		creds.Password = v
	}
	return cfg, baseURL, creds, nil
}

func newClient(cmd *cobra.Command, cfg *config.Config, baseURL string, creds models.Credentials) (*eyesont.Client, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, errors.New("EYESON_API_USERNAME and EYESON_API_PASSWORD must be set")
	}

	target, _ := cmd.Flags().GetString("target")
	opts := eyesont.OptionsFromConfig(cfg)
	if target == targetSimulator {
		opts.MinInterval = 0
	}
	log.Printf("[Tools] target=%s base=%s user=%s password=%s", target, baseURL, creds.Username, config.MaskPassword(creds.Password))
	return eyesont.NewClient(baseURL, creds, opts), nil
}
