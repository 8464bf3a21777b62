package cmd

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sarchlab/pgtrace/datarecording"
	"github.com/sarchlab/pgtrace/hooking"
	"github.com/sarchlab/pgtrace/proc"
	"github.com/sarchlab/pgtrace/workload"
)

// A session is one machine together with the observers configured for it.
type session struct {
	machine  *workload.Machine
	recorder datarecording.DataRecorder
	run      *datarecording.RunRecorder
	hooks    []hooking.Hook
	events   *hooking.PosCounter
}

func newSession(cfg config, workloadName string) (*session, error) {
	machine, err := workload.NewMachine(cfg.numFrames)
	if err != nil {
		return nil, err
	}

	s := &session{machine: machine, events: hooking.NewPosCounter()}
	s.hooks = append(s.hooks, s.events)

	if cfg.logEvents {
		logger := log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
		s.hooks = append(s.hooks, hooking.NewLogHook(logger,
			proc.HookPosGrow,
			proc.HookPosPageFault,
			proc.HookPosAccessReport,
			proc.HookPosPageTablePrint,
			proc.HookPosRelease,
		))
	}

	if cfg.recordPath != "" {
		s.recorder, err = openRecorder(cfg.recordPath)
		if err != nil {
			machine.Close()
			return nil, err
		}

		s.hooks = append(s.hooks, datarecording.NewEventRecorder(s.recorder))
		s.run = datarecording.NewRunRecorder(s.recorder)
		s.run.Start()
		s.run.Set("Workload", workloadName)
	}

	return s, nil
}

// openRecorder writes into a ClickHouse server when the target is a
// clickhouse:// URL and into an SQLite file otherwise.
func openRecorder(target string) (datarecording.DataRecorder, error) {
	if strings.HasPrefix(target, datarecording.ClickHouseScheme) {
		return datarecording.NewClickHouse(context.Background(), target)
	}

	return datarecording.New(target)
}

// spawn creates a process and attaches the session hooks to it.
func (s *session) spawn() (*proc.Process, error) {
	p, err := s.machine.Spawn()
	if err != nil {
		return nil, err
	}

	for _, h := range s.hooks {
		p.AcceptHook(h)
	}

	return p, nil
}

func (s *session) set(property, value string) {
	if s.run != nil {
		s.run.Set(property, value)
	}
}

func (s *session) summarize(w io.Writer) {
	c := s.machine.MMU
	printer := message.NewPrinter(language.English)

	printer.Fprintf(w,
		"%d loads, %d stores, %d page faults, %d pages backed, "+
			"%d of %d frames in use\n",
		c.NumLoads(), c.NumStores(), c.NumFaults(),
		s.machine.Pager.NumPagesBacked(),
		s.machine.Memory.NumFramesInUse(), s.machine.Memory.NumFrames())

	counts := s.events.Counts()
	for _, name := range s.events.PosNames() {
		printer.Fprintf(w, "%s events: %d\n", name, counts[name])
	}
}

func (s *session) close() error {
	if s.run != nil {
		s.run.End()
	}

	var err error
	if s.recorder != nil {
		err = s.recorder.Close()
	}

	return errors.Join(err, s.machine.Close())
}

// closeInto closes the session and adds the resulting error to *err. It is
// meant to be deferred by commands with a named error result.
func (s *session) closeInto(err *error) {
	*err = errors.Join(*err, s.close())
}
