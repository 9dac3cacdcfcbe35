package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/jointtorque/internal/bridge"
	"github.com/san-kum/jointtorque/internal/config"
	"github.com/san-kum/jointtorque/internal/experiment"
	"github.com/san-kum/jointtorque/internal/export"
	"github.com/san-kum/jointtorque/internal/logging"
	"github.com/san-kum/jointtorque/internal/optim"
	"github.com/san-kum/jointtorque/internal/storage"
	"github.com/san-kum/jointtorque/internal/viz"
)

// resolveConfig applies, in order, the preset, the config file and any flag
// set on the command line.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		var err error
		cfg, err = config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("iterations") {
		cfg.Iterations = iterations
	}
	if flags.Changed("kp") {
		cfg.Kp = kp
	}
	if flags.Changed("backend") {
		cfg.Backend = backend
	}
	if flags.Changed("host") {
		cfg.Host = host
	}
	if flags.Changed("port") {
		cfg.Port = port
	}
	if flags.Changed("quiet") {
		cfg.Report.Quiet = quiet
	}
	if flags.Changed("every") {
		cfg.Report.Every = every
	}
	if flags.Changed("out-dir") {
		cfg.OutDir = outDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	return cfg, cfg.Validate()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.New("jointtorque", cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	registry := experiment.NewRegistry()
	logger.Infow("connecting", "backend", cfg.Backend, "host", cfg.Host, "port", cfg.Port)
	exp, err := registry.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if !cfg.Report.Quiet {
		exp.AddObserver(viz.NewReporter(cmd.OutOrStdout(), cfg.Report.Every, false))
	}

	start := time.Now()
	result, err := exp.Run(ctx)
	if result != nil {
		names := make([]string, 0, len(result.Metrics))
		for name := range result.Metrics {
			names = append(names, name)
		}
		slices.Sort(names)
		fmt.Fprintln(cmd.OutOrStdout(), viz.Summary(result.Iterations, result.Metrics, names))
		logger.Infow("run finished", "iterations", result.Iterations, "took", time.Since(start),
			"ref", result.RefPath, "read", result.ReadPath)
	}
	return err
}

func serveScene(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.New("scene", cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	sc, err := experiment.NewRegistry().NewScene(cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Close()

	ctx, cancel := signalContext()
	defer cancel()

	lis, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(cfg.Port)))
	if err != nil {
		return err
	}
	return bridge.Serve(ctx, lis, sc, logger)
}

func logPaths(args []string) (string, string) {
	if len(args) == 2 {
		return args[0], args[1]
	}
	return filepath.Join(outDir, config.DefaultRefFile), filepath.Join(outDir, config.DefaultReadFile)
}

func plotTorques(cmd *cobra.Command, args []string) error {
	refPath, readPath := logPaths(args)
	ref, read, err := storage.LoadPair(refPath, readPath)
	if err != nil {
		return err
	}

	if len(ref) == 0 {
		return fmt.Errorf("no rows to plot in %s", refPath)
	}

	if ascii {
		joints := []int{joint - 1}
		if joint == 0 {
			joints = joints[:0]
			for j := range ref[0] {
				joints = append(joints, j)
			}
		}
		for _, j := range joints {
			chart, err := viz.AsciiTorques(ref, read, j, viz.ChartOptions{})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), chart)
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return nil
	}

	opts := export.DefaultOptions()
	opts.Dt = plotDt
	if err := export.SaveTorques(outFile, ref, read, opts); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d iterations)\n", outFile, len(ref))
	return nil
}

func viewTorques(cmd *cobra.Command, args []string) error {
	refPath, readPath := logPaths(args)
	ref, read, err := storage.LoadPair(refPath, readPath)
	if err != nil {
		return err
	}
	v, err := viz.NewViewer(ref, read)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(v.WithTheme(viz.GetTheme(themeName)), tea.WithAltScreen()).Run()
	return err
}

func listPresets(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "presets:")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		fmt.Fprintf(out, "  %-8s kp=%g iterations=%d backend=%s\n", name, cfg.Kp, cfg.Iterations, cfg.Backend)
	}
	return nil
}

func writeConfig(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	path := "jointtorque.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func tuneGain(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("backend") {
		cfg.Backend = config.BackendLocal
	}
	if !cmd.Flags().Changed("iterations") && cfg.Iterations == config.DefaultIterations {
		cfg.Iterations = 500
	}
	logger, err := logging.New("tune", cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	search, err := optim.NewGridSearch([]string{"kp"}, [][]float64{kpValues})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	registry := experiment.NewRegistry()
	build := func(ctx context.Context, params map[string]float64) (*experiment.Experiment, error) {
		trial := *cfg
		trial.Kp = params["kp"]
		trial.OutDir = filepath.Join(cfg.OutDir, "tune", fmt.Sprintf("kp_%g", trial.Kp))
		logger.Infow("trial", "kp", trial.Kp, "iterations", trial.Iterations)
		return registry.Build(ctx, &trial, logger)
	}

	best, trials, err := search.Search(ctx, build, metric)
	out := cmd.OutOrStdout()
	for _, t := range optim.Ranked(trials) {
		fmt.Fprintf(out, "  kp=%-8g %s=%.6g\n", t.Params["kp"], metric, t.Value)
	}
	for _, t := range trials {
		if t.Err != nil {
			fmt.Fprintf(out, "  kp=%-8g failed: %v\n", t.Params["kp"], t.Err)
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "best kp=%g (%s=%.6g)\n", best.Params["kp"], metric, best.Value)
	return nil
}
