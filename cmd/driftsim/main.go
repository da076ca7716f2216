package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/driftsim/internal/config"
	"github.com/san-kum/driftsim/internal/drift"
	"github.com/san-kum/driftsim/internal/export"
	"github.com/san-kum/driftsim/internal/probe"
	"github.com/san-kum/driftsim/internal/schema"
	"github.com/san-kum/driftsim/internal/storage"
	"github.com/san-kum/driftsim/internal/vecmath"
	"github.com/san-kum/driftsim/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string
	name       string
	steps      int
	samples    int
	scale      float64
	direction  string
	initial    string
	strategies []string
	workers    int
	format     string
	svgPath    string

	compareSteps   int
	compareConfigs []string
	resumeSteps    int
	benchSteps     int
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "driftsim",
		Short:        "measure accumulation drift of vector summation strategies",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".driftsim", "data directory")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a drift scenario and save it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScenario,
	}
	addScenarioFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "run a drift scenario with a live monitor",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addScenarioFlags(liveCmd)

	compareCmd := &cobra.Command{
		Use:   "compare [preset...]",
		Short: "run presets in parallel and compare strategies",
		RunE:  comparePresets,
	}
	compareCmd.Flags().IntVar(&workers, "workers", 0, "parallel scenarios (0 = GOMAXPROCS)")
	compareCmd.Flags().IntVar(&compareSteps, "steps", 0, "override step count")
	compareCmd.Flags().StringSliceVar(&compareConfigs, "config", nil, "also compare scenarios from config files (yaml)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot error curves of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&svgPath, "svg", "", "also write the error curves to an svg file")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as json or yaml",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&format, "format", "json", "output format (json, yaml)")

	hashCmd := &cobra.Command{
		Use:   "hash [run_id]",
		Short: "print the determinism digest of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  hashRun,
	}

	verifyCmd := &cobra.Command{
		Use:   "verify [run_a] [run_b]",
		Short: "check two runs ended in bit-identical state",
		Args:  cobra.ExactArgs(2),
		RunE:  verifyRuns,
	}

	resumeCmd := &cobra.Command{
		Use:   "resume [run_id]",
		Short: "continue a run from its checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  resumeRun,
	}
	resumeCmd.Flags().IntVar(&resumeSteps, "steps", config.DefaultSteps, "additional steps")
	resumeCmd.Flags().IntVar(&samples, "samples", config.DefaultSamples, "samples to take")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDIRECTION\tSCALE\tINITIAL\tSTEPS")
			for _, p := range config.ListPresets() {
				cfg := config.GetPreset(p)
				fmt.Fprintf(w, "%s\t%v\t%g\t%v\t%d\n",
					p, cfg.Direction.Vec3(), cfg.Scale, cfg.Initial.Vec3(), cfg.Steps)
			}
			return w.Flush()
		},
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark accumulation strategies",
		RunE:  benchStrategies,
	}
	benchCmd.Flags().IntVar(&benchSteps, "steps", 10_000_000, "steps per strategy")

	rootCmd.AddCommand(runCmd, liveCmd, compareCmd, listCmd, plotCmd, exportCmd,
		hashCmd, verifyCmd, resumeCmd, presetsCmd, benchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addScenarioFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&name, "name", "", "scenario name")
	cmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of steps")
	cmd.Flags().IntVar(&samples, "samples", config.DefaultSamples, "error samples to take")
	cmd.Flags().Float64Var(&scale, "scale", config.DefaultScale, "step scale factor")
	cmd.Flags().StringVar(&direction, "dir", "1,2,3", "step direction x,y,z")
	cmd.Flags().StringVar(&initial, "initial", "0,0,0", "initial value x,y,z")
	cmd.Flags().StringSliceVar(&strategies, "strategies", nil, "strategies to run (naive, kahan, neumaier)")
}

// loadScenario layers defaults, preset, config file and explicit flags, in
// that order.
func loadScenario(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if len(args) > 0 {
		preset = args[0]
	}
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		cfg.Name = name
	}
	if flags.Changed("steps") {
		cfg.Steps = steps
	}
	if flags.Changed("samples") {
		cfg.Samples = samples
	}
	if flags.Changed("scale") {
		cfg.Scale = scale
	}
	if flags.Changed("dir") {
		v, err := parseVec(direction)
		if err != nil {
			return nil, fmt.Errorf("--dir: %w", err)
		}
		cfg.Direction = schema.FromVec3(v)
	}
	if flags.Changed("initial") {
		v, err := parseVec(initial)
		if err != nil {
			return nil, fmt.Errorf("--initial: %w", err)
		}
		cfg.Initial = schema.FromVec3(v)
	}
	if flags.Changed("strategies") {
		cfg.Strategies = strategies
	}
	return cfg, nil
}

func parseVec(s string) (vecmath.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return vecmath.Vec3{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var c [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return vecmath.Vec3{}, err
		}
		c[i] = v
	}
	return vecmath.New(c[0], c[1], c[2]), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd, args)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	sc := cfg.Scenario()
	fmt.Printf("running %s (%d steps)...\n", sc.Name, sc.Steps)
	start := time.Now()

	result, err := probe.Run(ctx, sc)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if err != nil {
		fmt.Printf("interrupted after %d steps, saving partial run\n", result.StepsTaken)
	}

	return saveAndReport(st, result, "", time.Since(start))
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd, args)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	start := time.Now()
	result, err := viz.RunLive(context.Background(), cfg.Scenario())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if result == nil {
		return nil
	}
	return saveAndReport(st, result, "", time.Since(start))
}

func saveAndReport(st *storage.Store, result *probe.Result, parent string, elapsed time.Duration) error {
	runID, err := st.Save(result, parent)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.Scenario.StartStep+result.StepsTaken)
	if result.Checkpoint != nil {
		fmt.Printf("digest: %s\n", result.Digest)
	}
	fmt.Println()

	return printResult(result)
}

func printResult(result *probe.Result) error {
	names := make([]string, 0, len(result.Final))
	for n := range result.Final {
		names = append(names, n)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STRATEGY\tFINAL\tMAX ABS\tMAX REL\tULP")
	for _, n := range names {
		fmt.Fprintf(w, "%s\t%v\t%.3e\t%.3e\t%.2f\n",
			n,
			result.Final[n],
			result.Metrics[n+".max_abs_error"],
			result.Metrics[n+".max_rel_error"],
			result.Metrics[n+".final_ulps"],
		)
	}
	return w.Flush()
}

func comparePresets(cmd *cobra.Command, args []string) error {
	names := args
	if len(names) == 0 && len(compareConfigs) == 0 {
		names = config.ListPresets()
	}

	cfgs := make([]*config.Config, 0, len(names)+len(compareConfigs))
	for _, n := range names {
		cfg := config.GetPreset(n)
		if cfg == nil {
			return fmt.Errorf("unknown preset: %s", n)
		}
		cfgs = append(cfgs, cfg)
	}
	for _, path := range compareConfigs {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		cfgs = append(cfgs, cfg)
	}

	scenarios := make([]probe.Scenario, 0, len(cfgs))
	for _, cfg := range cfgs {
		if cmd.Flags().Changed("steps") {
			cfg.Steps = compareSteps
		}
		scenarios = append(scenarios, cfg.Scenario())
	}

	if !cmd.Flags().Changed("workers") {
		workers = config.MaxWorkers(cfgs)
	}

	ctx, stop := signalContext()
	defer stop()

	start := time.Now()
	results, err := probe.NewEnsemble(scenarios, workers).Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("compared %d scenarios in %v\n\n", len(results), time.Since(start))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCENARIO\tSTEPS\tNAIVE ULP\tKAHAN ULP\tNEUMAIER ULP")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			r.Scenario.Name, r.StepsTaken,
			ulpCell(r, probe.Naive), ulpCell(r, probe.Kahan), ulpCell(r, probe.Neumaier))
	}
	return w.Flush()
}

func ulpCell(r *probe.Result, strategy string) string {
	v, ok := r.Metrics[strategy+".final_ulps"]
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(v, 'g', 4, 64)
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
	fmt.Fprintln(w, "ID\tNAME\tTIME\tSTEPS\tSCALE\tSTRATEGIES\tPARENT")

	for _, run := range runs {
		parent := run.Parent
		if parent == "" {
			parent = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%g\t%s\t%s\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.TotalSteps(),
			run.Scale,
			strings.Join(run.Strategies, ","),
			parent,
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

	series, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}

	if len(series.Steps) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Name)
	fmt.Printf("samples: %d (steps %d..%d)\n\n", len(series.Steps), series.Steps[0], series.Steps[len(series.Steps)-1])

	for _, s := range meta.Strategies {
		data := series.Errors[s]
		if len(data) == 0 {
			continue
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(s+" absolute error"),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	if svgPath != "" {
		if err := os.WriteFile(svgPath, []byte(export.SeriesToSVG(series, 800, 400)), 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", svgPath)
	}

	return nil
}

type runExport struct {
	Run      *storage.RunMetadata   `json:"run" yaml:"run"`
	Resolved *schema.VectorDoc      `json:"resolved,omitempty" yaml:"resolved,omitempty"`
	State    *schema.AccumulatorDoc `json:"state,omitempty" yaml:"state,omitempty"`
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	f, err := schema.ParseFormat(format)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	out := runExport{Run: meta}
	acc, err := st.LoadCheckpoint(runID)
	switch {
	case err == nil:
		state := schema.FromAccumulator(acc)
		out.State = &state
		out.Resolved = &state.Resolved
	case !errors.Is(err, storage.ErrNotFound):
		return err
	}

	return schema.Encode(os.Stdout, f, out)
}

func hashRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	resolved, err := st.LoadResolved(runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("run %s has no neumaier result to hash", runID)
		}
		return err
	}
	acc, err := st.LoadCheckpoint(runID)
	if err != nil {
		return err
	}

	fmt.Printf("resolved: %v\n", resolved)
	fmt.Printf("digest:   %s\n", drift.Hash(resolved))
	fmt.Printf("state:    %s\n", drift.HashState(acc))
	return nil
}

func verifyRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)

	var checkpoints [2][]byte
	var resolved [2]vecmath.Vec3
	for i, id := range args {
		cp, err := st.LoadCheckpointBytes(id)
		if err != nil {
			return err
		}
		res, err := st.LoadResolved(id)
		if err != nil {
			return err
		}
		checkpoints[i], resolved[i] = cp, res
	}

	if !resolved[0].Equal(resolved[1]) {
		return fmt.Errorf("resolved values differ: %v vs %v", resolved[0], resolved[1])
	}
	if !bytes.Equal(checkpoints[0], checkpoints[1]) {
		return fmt.Errorf("resolved values match but accumulator state differs")
	}

	fmt.Printf("identical: %s\n", drift.Hash(resolved[0]))
	return nil
}

func resumeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	checkpoint, err := st.LoadCheckpointBytes(runID)
	if err != nil {
		return err
	}

	sc := probe.Scenario{
		Name:       meta.Name,
		Direction:  meta.Direction.Vec3(),
		Scale:      meta.Scale,
		Initial:    meta.Initial.Vec3(),
		Steps:      resumeSteps,
		Samples:    min(samples, resumeSteps),
		Strategies: []string{probe.Neumaier},
		StartStep:  meta.TotalSteps(),
		Checkpoint: checkpoint,
	}

	ctx, stop := signalContext()
	defer stop()

	fmt.Printf("resuming %s at step %d for %d steps...\n", runID, sc.StartStep, sc.Steps)
	start := time.Now()

	result, err := probe.Run(ctx, sc)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return saveAndReport(st, result, runID, time.Since(start))
}

func benchStrategies(cmd *cobra.Command, args []string) error {
	dir := vecmath.New(1, 2, 3)

	fmt.Printf("benchmarking %d steps\n\n", benchSteps)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STRATEGY\tSTEPS\tTIME\tSTEPS/SEC\tNS/STEP")

	for _, n := range probe.Strategies() {
		s, err := probe.NewStrategy(n, vecmath.Zero)
		if err != nil {
			return err
		}

		start := time.Now()
		for i := 0; i < benchSteps; i++ {
			s.AddScaled(dir, config.DefaultScale)
		}
		_ = s.Resolve()
		elapsed := time.Since(start)

		fmt.Fprintf(w, "%s\t%d\t%v\t%.0f\t%.2f\n",
			n, benchSteps, elapsed,
			float64(benchSteps)/elapsed.Seconds(),
			float64(elapsed.Nanoseconds())/float64(benchSteps))
	}

	return w.Flush()
}
