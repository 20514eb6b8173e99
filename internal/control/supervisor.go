package control

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/cooker/internal/display"
	"github.com/sweeney/cooker/internal/journal"
	"github.com/sweeney/cooker/internal/reboot"
	"github.com/sweeney/cooker/internal/sched"
)

// DefaultFaultCues is how many rising cues announce a fault.
const DefaultFaultCues = 10

// Supervisor runs the scheduler and performs crash-only recovery on the
// first fault: heater off, state saved, restart.
type Supervisor struct {
	Controller  *Controller
	Scheduler   *sched.Scheduler
	JournalPath string
	Restarter   reboot.Restarter

	// Now defaults to time.Now.
	Now func() time.Time

	// FaultCues defaults to DefaultFaultCues.
	FaultCues int
}

// Run blocks until the scheduler stops. A fault triggers Recover and is
// returned; cancellation returns ctx.Err() without recovery.
func (s *Supervisor) Run(ctx context.Context) error {
	err := s.Scheduler.Run(ctx)
	var f *sched.Fault
	if errors.As(err, &f) {
		s.Recover(f)
		return f
	}
	return err
}

// Recover executes the fault sequence. Every step is attempted even if an
// earlier one fails. The scheduler must have stopped.
func (s *Supervisor) Recover(f *sched.Fault) {
	c := s.Controller
	st := c.State
	class := FaultClass(f)
	msg := f.Err.Error()

	log.Printf("control: FAULT in task %s (%s): %s", f.Task, class, msg)
	if f.Panic {
		log.Printf("control: panic stack:\n%s", f.Stack)
	}
	if c.Metrics != nil {
		c.Metrics.Fault(class)
	}

	if err := c.dev.Display.Show(display.FaultLines(class, msg)); err != nil {
		log.Printf("control: recovery: show fault: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.actuatorTimeout())
	if err := c.dev.Actuator.Set(ctx, false); err != nil {
		log.Printf("control: recovery: relay OFF: %v", err)
	} else {
		log.Printf("control: recovery: relay OFF")
	}
	cancel()
	st.RelayOn = false

	// The encoder restarts at zero after a reboot; fold the setpoint
	// into the offset so it comes back unchanged.
	st.Offset = st.Setpoint

	if s.JournalPath != "" {
		if err := journal.Save(s.JournalPath, st, s.now()); err != nil {
			log.Printf("control: recovery: save state: %v", err)
		} else {
			log.Printf("control: recovery: state saved to %s", s.JournalPath)
		}
	}

	c.Announce("FAULT", fmt.Sprintf("%s: %s", f.Task, msg), s.now())

	n := s.FaultCues
	if n <= 0 {
		n = DefaultFaultCues
	}
	for i := 0; i < n; i++ {
		c.cue(true)
	}

	if s.Restarter == nil {
		log.Printf("control: recovery: no restarter configured")
		return
	}
	if err := s.Restarter.Restart(); err != nil {
		log.Printf("control: recovery: restart: %v", err)
	}
}

func (s *Supervisor) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// FaultClass names the kind of fault: "panic" for a recovered panic,
// otherwise the Go type of the innermost wrapped error.
func FaultClass(f *sched.Fault) string {
	if f.Panic {
		return "panic"
	}
	err := f.Err
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	return fmt.Sprintf("%T", err)
}
