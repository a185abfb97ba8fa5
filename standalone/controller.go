package standalone

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"dispenser/core"
	"dispenser/protocol"
	"dispenser/standalone/command"
	"dispenser/standalone/config"
	"dispenser/standalone/stepgen"
	"dispenser/standalone/store"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Controller defaults
const (
	DefaultQueueCapacity  = 10
	DefaultRepeatDuration = time.Second
	DefaultDurationMS     = 1000
)

// request is one queued command and the slot its response goes to
type request struct {
	cmd   command.Cmd
	reply chan string
}

// Options configures a Controller
type Options struct {
	Axes        [command.NumAxes]*stepgen.Stepper
	Pump        Pump
	Store       Persister
	Clock       core.Clock
	Log         *logrus.Entry
	Diagnostics *core.Diagnostics
	Observers   []Observer

	QueueCapacity   int
	RepeatDuration  time.Duration
	DefaultDuration uint32 // ms, for positions added without one
}

// Controller owns the axes, the pump, the position list and the store,
// and runs the scheduled/manual state machine on a single goroutine.
// Commands reach it only through Submit.
type Controller struct {
	axes      [command.NumAxes]*stepgen.Stepper
	pump      Pump
	store     Persister
	clock     core.Clock
	log       *logrus.Entry
	diag      *core.Diagnostics
	observers []Observer

	positions       *PositionList
	repeat          time.Duration
	defaultDuration uint32

	mode     atomic.Int32
	running  atomic.Bool
	requests chan request
	done     chan struct{}

	statusMu sync.Mutex
	status   Status
}

// New creates a controller in scheduled mode
func New(opts Options) (*Controller, error) {
	for _, axis := range command.Axes {
		if opts.Axes[axis] == nil {
			return nil, errors.Errorf("Controller: axis %s missing", axis)
		}
	}
	if opts.Pump == nil || opts.Store == nil {
		return nil, errors.New("Controller: pump and store are required")
	}
	if opts.Clock == nil {
		opts.Clock = core.SystemClock{}
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = core.NewDiagnostics(opts.Clock)
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if opts.RepeatDuration <= 0 {
		opts.RepeatDuration = DefaultRepeatDuration
	}
	if opts.DefaultDuration == 0 {
		opts.DefaultDuration = DefaultDurationMS
	}

	c := &Controller{
		axes:            opts.Axes,
		pump:            opts.Pump,
		store:           opts.Store,
		clock:           opts.Clock,
		log:             opts.Log.WithFields(logrus.Fields{"component": "controller"}),
		diag:            opts.Diagnostics,
		observers:       opts.Observers,
		positions:       NewPositionList(MaxPositions),
		repeat:          opts.RepeatDuration,
		defaultDuration: opts.DefaultDuration,
		requests:        make(chan request, opts.QueueCapacity),
		done:            make(chan struct{}),
	}
	c.mode.Store(int32(ModeScheduled))
	c.publish()
	return c, nil
}

// NewWithConfig builds the steppers, pump and store described by cfg on
// the given hardware and creates a controller over them
func NewWithConfig(cfg *config.MachineConfig, gpio core.GPIODriver, pages store.PageDevice, clock core.Clock, log *logrus.Entry) (*Controller, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	var axes [command.NumAxes]*stepgen.Stepper
	for i, axisCfg := range []config.AxisConfig{cfg.X, cfg.Y, cfg.Z} {
		stepper, err := stepgen.NewStepper(command.Axes[i].String(), axisCfg.Stepper(cfg.PulseWidth()), gpio, clock, log)
		if err != nil {
			return nil, err
		}
		axes[i] = stepper
	}

	pump, err := core.NewDigitalOutput(gpio, cfg.PumpPin, cfg.InvertPump)
	if err != nil {
		return nil, errors.Wrap(err, "Controller: pump")
	}

	return New(Options{
		Axes:            axes,
		Pump:            pump,
		Store:           store.New(pages, cfg.StoreConfig(MaxPositions), clock, log),
		Clock:           clock,
		Log:             log,
		Diagnostics:     core.NewDiagnostics(clock),
		QueueCapacity:   cfg.QueueCapacity,
		RepeatDuration:  cfg.RepeatDuration(),
		DefaultDuration: cfg.DefaultDurationMS,
	})
}

// AddObserver registers an observer. Call before Run.
func (c *Controller) AddObserver(o Observer) {
	c.observers = append(c.observers, o)
}

// Mode returns the current mode
func (c *Controller) Mode() Mode {
	return Mode(c.mode.Load())
}

// Diagnostics returns the execution failure record
func (c *Controller) Diagnostics() *core.Diagnostics {
	return c.diag
}

// Status returns the controller state as of the last completed command or
// position visit
func (c *Controller) Status() Status {
	c.statusMu.Lock()
	st := c.status
	c.statusMu.Unlock()

	st.Mode = c.Mode()
	st.Failures = c.diag.Total()
	if last, ok := c.diag.Last(); ok {
		st.LastFailure = last.Event + ": " + last.Message
	}
	return st
}

// HandleLine parses line and submits the command. Parse errors are
// returned as *command.ParseError without reaching the controller.
func (c *Controller) HandleLine(ctx context.Context, line string) (string, error) {
	cmd, err := command.Parse(line)
	if err != nil {
		return "", err
	}
	return c.Submit(ctx, cmd)
}

// Submit queues cmd and waits for its response. A full queue is recorded
// as a failure and then waited on.
func (c *Controller) Submit(ctx context.Context, cmd command.Cmd) (string, error) {
	req := request{cmd: cmd, reply: make(chan string, 1)}

	select {
	case c.requests <- req:
	default:
		c.fail(EventQueueFull, errors.New("command queue full"))
		select {
		case c.requests <- req:
		case <-ctx.Done():
			return "", ctx.Err()
		case <-c.done:
			return "", ErrQueueClosed
		}
	}

	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.done:
		return "", ErrQueueClosed
	}
}

// Run restores the position list and runs the state machine until ctx is
// cancelled. Cancellation is observed only between motions. The pump is
// switched off before Run returns.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("Controller: Run(): already running")
	}
	defer close(c.done)
	defer func() {
		if err := c.pump.Off(); err != nil {
			c.fail(EventPump, err)
		}
		c.publish()
	}()

	c.load()
	c.log.WithFields(logrus.Fields{"mode": c.Mode()}).Info("controller started")

	for ctx.Err() == nil {
		switch c.Mode() {
		case ModeScheduled:
			c.runScheduled(ctx)
		default:
			c.runManual(ctx)
		}
	}

	c.log.Info("controller stopped")
	return nil
}

// load replaces the list with the stored one
func (c *Controller) load() {
	positions, err := c.store.Restore()
	if err != nil {
		c.fail(EventStoreRestore, err)
		return
	}
	c.positions.Replace(positions)
	c.log.WithFields(logrus.Fields{"positions": c.positions.Len()}).Info("positions restored")
	c.publish()
}

// runScheduled performs one sweep and the wait after it. It returns early
// on Stop or cancellation.
func (c *Controller) runScheduled(ctx context.Context) {
	for i := 0; i < c.positions.Len(); i++ {
		if c.pollStop(ctx) {
			return
		}
		c.visit(i, c.positions.At(i))
	}

	wait := c.clock.After(c.repeat)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-c.requests:
			if c.handleScheduled(req) {
				return
			}
		case <-wait:
			return
		}
	}
}

// pollStop answers every queued request without blocking and reports
// whether the sweep must end
func (c *Controller) pollStop(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case req := <-c.requests:
			if c.handleScheduled(req) {
				return true
			}
		default:
			return false
		}
	}
}

// handleScheduled answers a request received while sweeping. Only Stop
// and the pump commands take effect.
func (c *Controller) handleScheduled(req request) bool {
	switch req.cmd.(type) {
	case command.Stop:
		req.reply <- c.execute(req.cmd)
		return true
	case command.PumpOn, command.PumpOff:
		req.reply <- c.execute(req.cmd)
	default:
		c.log.WithFields(logrus.Fields{"command": req.cmd.Name()}).Debug("command discarded while scheduled")
		req.reply <- ""
	}
	return false
}

// visit dispenses at one position: x and y together, then z, pump for
// the position's duration, then z back to 0
func (c *Controller) visit(index int, pos store.Position) {
	xy := command.AxisSet{}.With(command.AxisX, pos.X).With(command.AxisY, pos.Y)
	if err := c.motion(xy, false); err != nil {
		c.fail(EventMotion, err)
		return
	}
	z := c.axes[command.AxisZ]
	if err := z.Goto(pos.Z); err != nil {
		c.fail(EventMotion, err)
		return
	}

	if err := c.pump.On(); err != nil {
		c.fail(EventPump, err)
	} else {
		c.clock.Sleep(pos.Duration())
		if err := c.pump.Off(); err != nil {
			c.fail(EventPump, err)
		}
	}

	if err := z.Goto(0); err != nil {
		c.fail(EventMotion, err)
	}

	c.publish()
	for _, o := range c.observers {
		o.PositionVisited(index, pos)
	}
}

// runManual executes exactly one request
func (c *Controller) runManual(ctx context.Context) {
	select {
	case <-ctx.Done():
	case req := <-c.requests:
		req.reply <- c.execute(req.cmd)
	}
}

// execute runs cmd to completion and returns its response payload
func (c *Controller) execute(cmd command.Cmd) string {
	payload := c.dispatch(cmd)
	c.publish()
	for _, o := range c.observers {
		o.CommandHandled(cmd.Name())
	}
	return payload
}

func (c *Controller) dispatch(cmd command.Cmd) string {
	switch cmd := cmd.(type) {
	case command.Goto:
		if err := c.motion(cmd.Target, false); err != nil {
			c.fail(EventMotion, err)
		}
	case command.Move:
		if err := c.motion(cmd.Delta, true); err != nil {
			c.fail(EventMotion, err)
		}

	case command.SpeedMin:
		c.setParams(cmd.Values, (*stepgen.Stepper).SetSpeedMin)
	case command.SpeedMax:
		c.setParams(cmd.Values, (*stepgen.Stepper).SetSpeedMax)
	case command.SpeedAccel:
		c.setParams(cmd.Values, (*stepgen.Stepper).SetSpeedAccel)
	case command.StepPerMM:
		c.setParams(cmd.Values, (*stepgen.Stepper).SetStepPerMM)

	case command.AddPos:
		pos := store.Position{
			X:          cmd.Pos.Or(command.AxisX, 0),
			Y:          cmd.Pos.Or(command.AxisY, 0),
			Z:          cmd.Pos.Or(command.AxisZ, 0),
			DurationMS: c.defaultDuration,
		}
		if cmd.HasDuration {
			pos.DurationMS = cmd.Duration
		}
		if err := c.positions.Add(pos); err != nil {
			c.fail(EventListFull, errors.Wrapf(err, "add %v", pos))
			return ""
		}
		c.persist()

	case command.WaterDuration:
		var changed bool
		if cmd.HasIndex {
			changed = c.positions.SetDuration(int(cmd.Index), cmd.Duration)
		} else {
			changed = c.positions.SetAllDurations(cmd.Duration)
		}
		if changed {
			c.persist()
		}

	case command.DelPos:
		if c.positions.Delete(int(cmd.Index)) {
			c.persist()
		}

	case command.RepeatDuration:
		c.repeat = time.Duration(cmd.Millis) * time.Millisecond

	case command.PumpOn:
		if err := c.pump.On(); err != nil {
			c.fail(EventPump, err)
		}
	case command.PumpOff:
		if err := c.pump.Off(); err != nil {
			c.fail(EventPump, err)
		}

	case command.ListPos:
		return c.positions.Render()
	case command.Home:
		for _, stepper := range c.axes {
			stepper.SetCurrentPos(0)
		}
	case command.Help:
		return HelpText
	case command.Status:
		return renderStatus(c.snapshot())

	case command.Start:
		c.setMode(ModeScheduled)
	case command.Stop:
		c.setMode(ModeManual)
	}
	return ""
}

// motion moves every axis present in set, all at once, and waits for the
// slowest. Values are targets, or distances when relative is set.
func (c *Controller) motion(set command.AxisSet, relative bool) error {
	var g errgroup.Group
	for _, axis := range command.Axes {
		v, ok := set.Get(axis)
		if !ok {
			continue
		}
		stepper := c.axes[axis]
		if relative {
			g.Go(func() error { return stepper.Move(v) })
		} else {
			g.Go(func() error { return stepper.Goto(v) })
		}
	}
	return g.Wait()
}

func (c *Controller) setParams(values command.AxisMagnitudeSet, set func(*stepgen.Stepper, uint32)) {
	for _, axis := range command.Axes {
		if v, ok := values.Get(axis); ok {
			set(c.axes[axis], v)
		}
	}
}

// persist writes the whole list; a failure leaves the stored copy stale
func (c *Controller) persist() {
	if err := c.store.Backup(c.positions.Items()); err != nil {
		c.fail(EventStoreBackup, err)
	}
}

func (c *Controller) setMode(m Mode) {
	if Mode(c.mode.Swap(int32(m))) == m {
		return
	}
	c.log.WithFields(logrus.Fields{"mode": m}).Info("mode changed")
	for _, o := range c.observers {
		o.ModeChanged(m)
	}
}

// fail records an execution failure. The command's response is unaffected.
func (c *Controller) fail(event string, err error) {
	c.log.WithFields(logrus.Fields{"event": event}).WithError(err).Error("execution failure")
	c.diag.Record(event, err)
	for _, o := range c.observers {
		o.Failure(event, err)
	}
}

// snapshot collects the current state; controller goroutine only
func (c *Controller) snapshot() Status {
	st := Status{
		Version:        protocol.Version,
		Mode:           c.Mode(),
		Axes:           make([]AxisStatus, 0, command.NumAxes),
		Positions:      c.positions.Len(),
		Capacity:       c.positions.Cap(),
		RepeatDuration: c.repeat,
		PumpOn:         c.pump.IsOn(),
		Failures:       c.diag.Total(),
	}
	for _, axis := range command.Axes {
		st.Axes = append(st.Axes, AxisStatus{Name: axis.String(), Params: c.axes[axis].Params()})
	}
	if last, ok := c.diag.Last(); ok {
		st.LastFailure = last.Event + ": " + last.Message
	}
	return st
}

func (c *Controller) publish() {
	st := c.snapshot()
	c.statusMu.Lock()
	c.status = st
	c.statusMu.Unlock()
}

func renderStatus(st Status) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "version: %s\n", st.Version)
	fmt.Fprintf(&sb, "mode: %s\n", st.Mode)
	for _, a := range st.Axes {
		fmt.Fprintf(&sb, "%s: pos %d step_per_mm %d speed %d..%d accel %d\n",
			a.Name, a.Position, a.StepPerMM, a.SpeedMin, a.SpeedMax, a.SpeedAccel)
	}
	fmt.Fprintf(&sb, "positions: %d/%d\n", st.Positions, st.Capacity)
	fmt.Fprintf(&sb, "repeat: %dms\n", st.RepeatDuration.Milliseconds())
	if st.PumpOn {
		sb.WriteString("pump: on\n")
	} else {
		sb.WriteString("pump: off\n")
	}
	fmt.Fprintf(&sb, "failures: %d\n", st.Failures)
	if st.LastFailure != "" {
		fmt.Fprintf(&sb, "last failure: %s\n", st.LastFailure)
	}
	return sb.String()
}
