package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/pgtrace/workload"
)

var pgAccessCmd = &cobra.Command{
	Use:   "pgaccess",
	Short: "Report which pages of an array were accessed or modified.",
	Long: `pgaccess grows a process by an array of pages, clears the ` +
		`accessed bits with a first query, increments one byte in each ` +
		`page listed by --touch, and prints the dirty and accessed status ` +
		`of every page reported by a second query.`,
	Args: cobra.NoArgs,
	RunE: runPgAccess,
}

func init() {
	defaults := workload.DefaultPageAccessConfig()

	pgAccessCmd.Flags().Int("pages", defaults.NumPages,
		"Number of pages in the array")
	pgAccessCmd.Flags().IntSlice("touch", defaults.Touch,
		"Pages to modify between the two queries")

	rootCmd.AddCommand(pgAccessCmd)
}

func runPgAccess(cmd *cobra.Command, _ []string) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	wl := workload.PageAccessConfig{}
	wl.NumPages, _ = cmd.Flags().GetInt("pages")
	wl.Touch, _ = cmd.Flags().GetIntSlice("touch")

	s, err := newSession(cfg, "pgaccess")
	if err != nil {
		return err
	}
	defer s.closeInto(&err)

	s.set("Pages", fmt.Sprint(wl.NumPages))
	s.set("Touch", fmt.Sprint(wl.Touch))

	p, err := s.spawn()
	if err != nil {
		return err
	}

	res, err := workload.PageAccess(s.machine.MMU, p, wl, cmd.OutOrStdout())
	if err != nil {
		return killed(p, err)
	}

	s.set("Bitmap", res.AfterTouch.String())
	s.summarize(cmd.ErrOrStderr())

	return p.Release()
}
