package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	preset     string
	iterations int
	kp         float64
	backend    string
	host       string
	port       int
	quiet      bool
	every      int
	outDir     string
	logLevel   string
	// plot and view
	outFile   string
	ascii     bool
	joint     int
	plotDt    float64
	themeName string
	// tune
	kpValues []float64
	metric   string
)

// main registers the commands and runs the control loop when no subcommand
// is given.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "jointtorque",
		Short:        "joint-torque PD control of a simulated Franka Emika Panda",
		SilenceUsage: true,
		RunE:         runExperiment,
	}
	addRunFlags(rootCmd)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the torque control loop against a simulator",
		Args:  cobra.NoArgs,
		RunE:  runExperiment,
	}
	addRunFlags(runCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "host the in-process Panda scene over the simulator bridge",
		Args:  cobra.NoArgs,
		RunE:  serveScene,
	}
	addConfigFlags(serveCmd)
	serveCmd.Flags().IntVar(&port, "port", 19997, "port to listen on")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	plotCmd := &cobra.Command{
		Use:   "plot [ref.csv read.csv]",
		Short: "plot reference against measured torques",
		Args:  logArgs,
		RunE:  plotTorques,
	}
	plotCmd.Flags().StringVar(&outFile, "out", "torques.png", "output image (.png or .svg)")
	plotCmd.Flags().BoolVar(&ascii, "ascii", false, "draw in the terminal instead of writing an image")
	plotCmd.Flags().IntVar(&joint, "joint", 0, "joint to draw with --ascii (1-7, 0 for all)")
	plotCmd.Flags().Float64Var(&plotDt, "dt", 0, "seconds per iteration for the time axis (0 plots iterations)")
	plotCmd.Flags().StringVar(&outDir, "out-dir", "", "directory holding the torque logs")

	viewCmd := &cobra.Command{
		Use:   "view [ref.csv read.csv]",
		Short: "browse the torque logs interactively",
		Args:  logArgs,
		RunE:  viewTorques,
	}
	viewCmd.Flags().StringVar(&themeName, "theme", "default", "color theme (default, retro, minimal)")
	viewCmd.Flags().StringVar(&outDir, "out-dir", "", "directory holding the torque logs")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "write the resolved configuration as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE:  writeConfig,
	}
	addRunFlags(configCmd)

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid-search kp by running the loop once per value",
		Args:  cobra.NoArgs,
		RunE:  tuneGain,
	}
	addRunFlags(tuneCmd)
	tuneCmd.Flags().Float64SliceVar(&kpValues, "kp-values", []float64{0.04, 0.5, 1, 4.5}, "kp candidates")
	tuneCmd.Flags().StringVar(&metric, "metric", "tracking_error", "metric to minimise")

	rootCmd.AddCommand(runCmd, serveCmd, plotCmd, viewCmd, presetsCmd, configCmd, tuneCmd)
	return rootCmd
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}

func addRunFlags(cmd *cobra.Command) {
	addConfigFlags(cmd)
	cmd.Flags().IntVar(&iterations, "iterations", 10000, "number of control iterations")
	cmd.Flags().Float64Var(&kp, "kp", 0.04, "proportional gain (kv = 3*sqrt(kp))")
	cmd.Flags().StringVar(&backend, "backend", "remote", "simulator backend (remote, local)")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "simulator bridge host")
	cmd.Flags().IntVar(&port, "port", 19997, "simulator bridge port")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress per-iteration diagnostics")
	cmd.Flags().IntVar(&every, "every", 1, "print diagnostics every n iterations")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "directory for the torque logs")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func logArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 0 && len(args) != 2 {
		return cobra.ExactArgs(2)(cmd, args)
	}
	return nil
}
