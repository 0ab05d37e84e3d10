package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/wamctl/internal/config"
	"github.com/san-kum/wamctl/internal/storage"
)

var (
	dataDir    string
	preset     string
	configFile string
	logLevel   string

	realtime     bool
	waypoints    []string
	velocity     float64
	acceleration float64
	teachSeconds float64
	saveAs       string
	playName     string
	controller   string
	settleTicks  int

	cycles int
	target string

	benchIters int

	plotField string
	plotWidth int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "wamctl",
		Short:         "real-time control core for the Barrett WAM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".wamctl", "data directory")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "wam4", "arm preset")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml), overrides --preset")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a session against the simulated arm",
		Args:  cobra.NoArgs,
		RunE:  runSession,
	}
	runCmd.Flags().BoolVar(&realtime, "realtime", false, "pace ticks with the wall clock instead of stepping")
	runCmd.Flags().StringArrayVar(&waypoints, "waypoint", nil, "comma-separated position to move through (repeatable)")
	runCmd.Flags().Float64Var(&velocity, "velocity", 0, "move velocity (0 keeps the configured value)")
	runCmd.Flags().Float64Var(&acceleration, "acceleration", 0, "move acceleration (0 keeps the configured value)")
	runCmd.Flags().Float64Var(&teachSeconds, "teach", 0, "seconds of simulated demonstration to teach and play back")
	runCmd.Flags().StringVar(&saveAs, "save-trajectory", "", "store the taught trajectory under this name")
	runCmd.Flags().StringVar(&playName, "play", "", "load a stored trajectory and play it back")
	runCmd.Flags().StringVar(&controller, "controller", "", "controller to select before moving")
	runCmd.Flags().IntVar(&settleTicks, "settle", 250, "ticks to hold after the last motion")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a logged run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&plotField, "field", "pos", "field to plot (pos, vel or tau)")
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run's metadata and records as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storage.New(dataDir).ExportJSON(args[0], os.Stdout)
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list arm presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range config.ListPresets() {
				cfg := config.GetPreset(p)
				fmt.Printf("  %s\t%s\n", titleStyle.Render(p), dimStyle.Render(fmt.Sprintf("%d dof", cfg.DOF)))
			}
			return nil
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			return enc.Encode(cfg)
		},
	}

	trajCmd := &cobra.Command{
		Use:   "trajectories",
		Short: "list stored trajectories",
		RunE:  listTrajectories,
	}

	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "hold the simulated arm with the signal-flow graph",
		Args:  cobra.NoArgs,
		RunE:  runGraph,
	}
	graphCmd.Flags().IntVar(&cycles, "cycles", 2000, "execution cycles to run")
	graphCmd.Flags().StringVar(&target, "target", "", "comma-separated joint target (default: hold)")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "time the arm model and the control tick",
		Args:  cobra.NoArgs,
		RunE:  runBench,
	}
	benchCmd.Flags().IntVar(&benchIters, "iters", 5000, "iterations per measurement")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, presetsCmd, configCmd, trajCmd, graphCmd, benchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("error:"), err)
		os.Exit(1)
	}
}

// loadConfig resolves --config, then --preset, then applies --log-level.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, errors.Wrap(err, "failed to load config")
		}
	} else {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, errors.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, cfg.Validate()
}

func parseVector(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, errors.Errorf("%q has %d values, want %d", s, len(parts), n)
	}
	v := make([]float64, n)
	for i, p := range parts {
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%g", &v[i]); err != nil {
			return nil, errors.Wrapf(err, "value %d of %q", i, s)
		}
	}
	return v, nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRESET\tTIME\tDOF\tPERIOD\tINTEG\tCTRL\tRECORDS\tDROPPED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4fs\t%s\t%s\t%d\t%d\n",
			run.ID,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.DOF,
			run.Period,
			run.Integrator,
			run.Controller,
			run.Records,
			run.Dropped,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	header, rows, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.New("no data to plot")
	}

	fmt.Println(titleStyle.Render("run " + meta.ID))
	fmt.Printf("preset: %s  dof: %d  records: %d  dropped: %d\n\n", meta.Preset, meta.DOF, meta.Records, meta.Dropped)

	columns := []string{plotField}
	if meta.DOF > 1 {
		columns = columns[:0]
		for j := 0; j < meta.DOF; j++ {
			columns = append(columns, fmt.Sprintf("%s%d", plotField, j))
		}
	}
	for _, name := range columns {
		data, ok := storage.Column(header, rows, name)
		if !ok {
			return errors.Errorf("run %s has no field %q (fields: %v)", runID, name, header)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(plotWidth),
			asciigraph.Caption(name+" vs tick"),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	if len(meta.Metrics) > 0 {
		out, err := json.MarshalIndent(meta.Metrics, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(dimStyle.Render(string(out)))
	}
	return nil
}

func listTrajectories(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	names, err := st.ListTrajectories()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("no trajectories found")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tSAMPLES\tDURATION")
	for _, name := range names {
		kind, samples, err := st.LoadTrajectory(name)
		if err != nil {
			fmt.Fprintf(w, "%s\t%s\t-\t-\n", name, errStyle.Render(err.Error()))
			continue
		}
		dur := 0.0
		if len(samples) > 0 {
			dur = samples[len(samples)-1].Time - samples[0].Time
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.3fs\n", name, kind, len(samples), dur)
	}
	return w.Flush()
}
