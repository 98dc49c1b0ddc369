package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/softlight/wayfinder/internal/application/port/input"
	"github.com/softlight/wayfinder/internal/di"
	"github.com/softlight/wayfinder/internal/domain/entity"
	"github.com/softlight/wayfinder/internal/observability"
)

var (
	flagURL       string
	flagTask      string
	flagMaxSteps  int
	flagOutputDir string
	flagModel     string
)

var runCmd = &cobra.Command{
	Use:   "run [app] [task]",
	Short: "Run one task against a web application",
	Long: `Run one task to a terminal status and record its trace.

The task comes either from the task book in the config file:

  wayfinder run shoppinglist add_item

or ad hoc via flags:

  wayfinder run --url https://shopping.test/ --task "Add milk to the list"`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildRequest(args)
		if err != nil {
			return err
		}
		if flagOutputDir != "" {
			cfg.Run.OutputDir = flagOutputDir
		}
		if flagModel != "" {
			cfg.LLM.Model = flagModel
		}

		log := observability.GetLogger()
		container, err := di.New(cfg, log)
		if err != nil {
			return err
		}
		defer container.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Info("run starting",
			zap.String("url", req.StartURL),
			zap.String("task", req.Task),
			zap.Int("max_steps", req.MaxSteps))

		trace, err := container.TaskRunner.Run(ctx, req)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Status:  %s\n", trace.Status)
		if trace.Summary != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Summary: %s\n", trace.Summary)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Steps:   %d\n", trace.TotalSteps)
		if trace.TracePath != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Trace:   %s\n", trace.TracePath)
		}

		if trace.Status != entity.StatusCompleted {
			return fmt.Errorf("run ended with status %s", trace.Status)
		}
		return nil
	},
}

// buildRequest resolves the run target from positional task-book
// coordinates or the ad hoc flags; the two forms are mutually exclusive.
func buildRequest(args []string) (input.RunRequest, error) {
	adhoc := flagURL != "" || flagTask != ""

	switch {
	case len(args) == 2 && adhoc:
		return input.RunRequest{}, fmt.Errorf("use either [app] [task] arguments or --url/--task flags, not both")
	case len(args) == 2:
		spec, ok := cfg.Tasks.Lookup(args[0], args[1])
		if !ok {
			return input.RunRequest{}, fmt.Errorf("task %q not found for app %q (see 'wayfinder tasks')", args[1], args[0])
		}
		return input.RunRequest{
			Task:     spec.Description,
			StartURL: spec.URL,
			AppName:  args[0],
			TaskName: args[1],
			MaxSteps: maxSteps(),
		}, nil
	case adhoc:
		if flagURL == "" || flagTask == "" {
			return input.RunRequest{}, fmt.Errorf("--url and --task must be set together")
		}
		return input.RunRequest{
			Task:     flagTask,
			StartURL: flagURL,
			MaxSteps: maxSteps(),
		}, nil
	default:
		return input.RunRequest{}, fmt.Errorf("expected [app] [task] arguments or --url/--task flags")
	}
}

func maxSteps() int {
	if flagMaxSteps > 0 {
		return flagMaxSteps
	}
	return cfg.Run.MaxSteps
}

func init() {
	runCmd.Flags().StringVar(&flagURL, "url", "", "start URL for an ad hoc task")
	runCmd.Flags().StringVar(&flagTask, "task", "", "natural-language description of an ad hoc task")
	runCmd.Flags().IntVar(&flagMaxSteps, "max-steps", 0, "step budget for this run (default from config)")
	runCmd.Flags().StringVar(&flagOutputDir, "output-dir", "", "dataset directory for run artifacts (default from config)")
	runCmd.Flags().StringVar(&flagModel, "model", "", "decision model identifier (default from config)")
	rootCmd.AddCommand(runCmd)
}
