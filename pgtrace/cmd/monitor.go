package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/sarchlab/pgtrace/hooking"
	"github.com/sarchlab/pgtrace/mmu"
	"github.com/sarchlab/pgtrace/monitoring"
	"github.com/sarchlab/pgtrace/proc"
	"github.com/sarchlab/pgtrace/workload"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run both workloads and serve their address spaces over HTTP.",
	Long: `monitor starts a web server, runs the demandpage and the ` +
		`pgaccess workloads with their default settings, and keeps ` +
		`serving the processes they leave behind until interrupted. ` +
		`Progress is visible while the workloads run; process state is ` +
		`served once each workload has finished.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().Int(flagPort, 0,
		"Port of the monitoring server, random if 0 (env "+envMonitorPort+")")
	monitorCmd.Flags().Bool("open", false,
		"Open the monitoring page in a browser")

	rootCmd.AddCommand(monitorCmd)
}

// progressHook advances a progress bar on every store the MMU performs for
// one process.
type progressHook struct {
	pid proc.PID
	bar *monitoring.ProgressBar
}

func (h *progressHook) Func(ctx hooking.HookCtx) {
	access, ok := ctx.Item.(mmu.AccessEvent)
	if !ok || access.PID != h.pid || access.Kind != proc.AccessStore {
		return
	}

	h.bar.IncrementFinished(1)
}

func runMonitor(cmd *cobra.Command, _ []string) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	s, err := newSession(cfg, "monitor")
	if err != nil {
		return err
	}
	defer s.closeInto(&err)

	m := monitoring.NewMonitor().WithPortNumber(cfg.monitorPort)
	m.RegisterComponent(s.machine.MMU.Name(), s.machine.MMU)
	m.RegisterComponent("Pager", s.machine.Pager)
	m.RegisterComponent("Memory", s.machine.Memory)

	port, err := m.StartServer()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://localhost:%d", port)
	if open, _ := cmd.Flags().GetBool("open"); open {
		err = browser.OpenURL(url)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Cannot open %s: %v\n", url, err)
		}
	}

	err = monitorWorkloads(s, m, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	s.summarize(cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "Serving %s, press Ctrl-C to stop\n", url)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return m.Shutdown(shutdownCtx)
}

func monitorWorkloads(s *session, m *monitoring.Monitor, out io.Writer) error {
	demandPage := workload.DefaultDemandPageConfig()
	pgAccess := workload.DefaultPageAccessConfig()

	// The bars count MMU stores: one per element for DemandPage and one per
	// touched page for PageAccess.
	err := monitorWorkload(s, m, out,
		"DemandPage", uint64(demandPage.NumElements),
		func(p *proc.Process) error {
			_, err := workload.DemandPage(s.machine.MMU, p, demandPage, out)
			return err
		})
	if err != nil {
		return err
	}

	return monitorWorkload(s, m, out,
		"PageAccess", uint64(len(pgAccess.Touch)),
		func(p *proc.Process) error {
			_, err := workload.PageAccess(s.machine.MMU, p, pgAccess, out)
			return err
		})
}

func monitorWorkload(
	s *session,
	m *monitoring.Monitor,
	out io.Writer,
	name string,
	total uint64,
	run func(p *proc.Process) error,
) error {
	p, err := s.spawn()
	if err != nil {
		return err
	}

	bar := m.CreateProgressBar(name, total)
	hook := &progressHook{pid: p.PID(), bar: bar}
	s.machine.MMU.AcceptHook(hook)

	m.RegisterProcess(p)
	m.WithLock(func() { err = run(p) })

	s.machine.MMU.RemoveHook(hook)
	fmt.Fprintf(out, "%s: %.0f%% of %d stores\n",
		name, 100*bar.Fraction(), total)
	m.CompleteProgressBar(bar)

	if err != nil {
		return killed(p, err)
	}

	return nil
}
