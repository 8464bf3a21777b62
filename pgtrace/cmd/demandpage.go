package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sarchlab/pgtrace/proc"
	"github.com/sarchlab/pgtrace/workload"
)

var demandPageCmd = &cobra.Command{
	Use:   "demandpage",
	Short: "Fill a lazily grown array and print the page table as it grows.",
	Long: `demandpage grows a process by an array of 4-byte integers without ` +
		`backing it, then copies each element from the previous one. Pages ` +
		`are allocated on the first touch, and the page table is printed ` +
		`every --stride elements and once at the end.`,
	Args: cobra.NoArgs,
	RunE: runDemandPage,
}

func init() {
	defaults := workload.DefaultDemandPageConfig()

	demandPageCmd.Flags().Int("elements", defaults.NumElements,
		"Number of integers in the array")
	demandPageCmd.Flags().Int("stride", defaults.Stride,
		"Number of elements written between two page table prints")

	rootCmd.AddCommand(demandPageCmd)
}

func runDemandPage(cmd *cobra.Command, _ []string) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	wl := workload.DemandPageConfig{}
	wl.NumElements, _ = cmd.Flags().GetInt("elements")
	wl.Stride, _ = cmd.Flags().GetInt("stride")

	s, err := newSession(cfg, "demandpage")
	if err != nil {
		return err
	}
	defer s.closeInto(&err)

	s.set("Elements", strconv.Itoa(wl.NumElements))
	s.set("Stride", strconv.Itoa(wl.Stride))

	p, err := s.spawn()
	if err != nil {
		return err
	}

	_, err = workload.DemandPage(s.machine.MMU, p, wl, cmd.OutOrStdout())
	if err != nil {
		return killed(p, err)
	}

	s.summarize(cmd.ErrOrStderr())

	return p.Release()
}

func killed(p *proc.Process, err error) error {
	return fmt.Errorf("%s killed: %w", p.Name(), err)
}
