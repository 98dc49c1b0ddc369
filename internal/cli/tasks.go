package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the tasks defined in the task book",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Tasks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tasks configured.")
			return nil
		}

		apps := make([]string, 0, len(cfg.Tasks))
		for app := range cfg.Tasks {
			apps = append(apps, app)
		}
		sort.Strings(apps)

		for _, app := range apps {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", app)

			names := make([]string, 0, len(cfg.Tasks[app]))
			for name := range cfg.Tasks[app] {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				spec := cfg.Tasks[app][name]
				fmt.Fprintf(cmd.OutOrStdout(), "  %-20s %s\n", name, spec.Description)
				fmt.Fprintf(cmd.OutOrStdout(), "  %-20s %s\n", "", spec.URL)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
