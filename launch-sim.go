package netsplit

// file launch-sim.go dry-runs the start-up of the sub-network processes of a plan on a
// discrete event simulator.  A sub-network holding a Responder endpoint connects to the
// peer that holds the matching Initiator, so it can only start once that peer is ready.

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
)

// LaunchParams give the simulated start-up cost of a sub-network process
type LaunchParams struct {
	// seconds every process needs before it accepts connections
	Startup float64 `json:"startup" yaml:"startup" validate:"min=0"`

	// extra seconds per switch, host, link or bridge in the sub-network
	PerComponent float64 `json:"percomponent" yaml:"percomponent" validate:"min=0"`

	// processes the launching host boots at once, unlimited when 0
	Slots int `json:"slots" yaml:"slots" validate:"min=0"`

	// boot service a process gets before yielding its slot, run to completion when 0
	TimeSlice float64 `json:"timeslice" yaml:"timeslice" validate:"min=0"`
}

func DefaultLaunchParams() LaunchParams {
	return LaunchParams{Startup: 1.0, PerComponent: 0.001}
}

// LaunchStep is the simulated start-up of one sub-network
type LaunchStep struct {
	Network  string  `json:"network" yaml:"network"`
	Index    int     `json:"index" yaml:"index"`
	Start    float64 `json:"start" yaml:"start"`
	Ready    float64 `json:"ready" yaml:"ready"`
	WaitsFor []int   `json:"waitsfor,omitempty" yaml:"waitsfor,omitempty"`
}

// LaunchSchedule is the outcome of a launch dry run.  Steps are in start order.
type LaunchSchedule struct {
	Steps    []LaunchStep `json:"steps" yaml:"steps"`
	Makespan float64      `json:"makespan" yaml:"makespan"`
	Stalled  []string     `json:"stalled,omitempty" yaml:"stalled,omitempty"`
}

// Order lists the sub-network names in start order
func (ls *LaunchSchedule) Order() []string {
	names := make([]string, len(ls.Steps))
	for idx, step := range ls.Steps {
		names[idx] = step.Network
	}
	return names
}

type launchNode struct {
	index      int
	name       string
	weight     int
	waitsFor   []int
	dependents []int
	pending    int
	started    bool
	ready      bool
	startAt    float64
	readyAt    float64
}

type launchRun struct {
	nodes []*launchNode
	lp    LaunchParams
	tm    *TraceManager
	sched *bootScheduler
	errs  []error
}

func uniqueSorted(vals []int) []int {
	sort.Ints(vals)
	out := []int{}
	for idx, v := range vals {
		if idx == 0 || v != vals[idx-1] {
			out = append(out, v)
		}
	}
	return out
}

// SimulateLaunch dry-runs the start-up of the sub-networks of a plan
func SimulateLaunch(nets []*SubNetwork, lp LaunchParams, tm *TraceManager) (*LaunchSchedule, error) {
	nodes := make([]*launchNode, len(nets))
	for idx, net := range nets {
		waits := []int{}
		for _, be := range net.Responders() {
			waits = append(waits, be.Peer)
		}
		nodes[idx] = &launchNode{
			index:    idx,
			name:     net.Name,
			weight:   len(net.Switches()) + len(net.Hosts()) + len(net.Links()) + len(net.Bridges()),
			waitsFor: uniqueSorted(waits),
		}
	}
	return runLaunch(nodes, lp, tm)
}

// SimulateLaunchDesc dry-runs the start-up of the sub-networks recorded in a plan
// manifest, which may have been edited by hand
func SimulateLaunchDesc(pd *PlanDesc, lp LaunchParams, tm *TraceManager) (*LaunchSchedule, error) {
	nodes := make([]*launchNode, len(pd.Networks))
	for idx, snd := range pd.Networks {
		waits := []int{}
		for _, bd := range snd.Bridges {
			if bd.Role == Responder.String() {
				waits = append(waits, bd.Peer)
			}
		}
		nodes[idx] = &launchNode{
			index:    idx,
			name:     snd.Name,
			weight:   len(snd.Switches) + len(snd.Hosts) + len(snd.Links) + len(snd.Bridges),
			waitsFor: uniqueSorted(waits),
		}
	}
	return runLaunch(nodes, lp, tm)
}

func runLaunch(nodes []*launchNode, lp LaunchParams, tm *TraceManager) (*LaunchSchedule, error) {
	if err := ValidateParams(&lp); err != nil {
		return nil, err
	}
	maxWeight := 0
	for _, ln := range nodes {
		for _, w := range ln.waitsFor {
			if w < 0 || w >= len(nodes) {
				return nil, fmt.Errorf("network %s waits on unknown partition %d", ln.name, w)
			}
			nodes[w].dependents = append(nodes[w].dependents, ln.index)
		}
		ln.pending = len(ln.waitsFor)
		maxWeight = max(maxWeight, ln.weight)
		if err := tm.AddName(ln.index, ln.name, "SubNetwork"); err != nil {
			return nil, err
		}
	}

	run := &launchRun{nodes: nodes, lp: lp, tm: tm}
	run.sched = createBootScheduler(lp.Slots, lp.TimeSlice, run, networkReady)
	evtMgr := evtm.New()
	for _, ln := range nodes {
		if ln.pending == 0 {
			evtMgr.Schedule(run, ln, startNetwork, vrtime.SecondsToTime(0.0))
		}
	}
	// every boot serialized, plus slack
	horizon := (lp.Startup+lp.PerComponent*float64(maxWeight))*float64(len(nodes)+1) + 1.0
	evtMgr.Run(horizon)

	if err := errors.Join(run.errs...); err != nil {
		return nil, err
	}

	sched := &LaunchSchedule{Steps: []LaunchStep{}}
	started := []*launchNode{}
	for _, ln := range nodes {
		if !ln.started {
			sched.Stalled = append(sched.Stalled, ln.name)
			continue
		}
		started = append(started, ln)
	}
	sort.SliceStable(started, func(i, j int) bool {
		if started[i].startAt != started[j].startAt {
			return started[i].startAt < started[j].startAt
		}
		return started[i].index < started[j].index
	})
	for _, ln := range started {
		sched.Steps = append(sched.Steps, LaunchStep{
			Network: ln.name, Index: ln.index, Start: ln.startAt, Ready: ln.readyAt, WaitsFor: ln.waitsFor,
		})
		sched.Makespan = max(sched.Makespan, ln.readyAt)
	}

	if len(sched.Stalled) > 0 {
		return sched, fmt.Errorf("%w: %s never start", ErrLaunchDeadlock, strings.Join(sched.Stalled, ","))
	}
	return sched, nil
}

// startNetwork is the event handler for a sub-network process being started
func startNetwork(evtMgr *evtm.EventManager, context any, data any) any {
	run := context.(*launchRun)
	ln := data.(*launchNode)
	ln.started = true
	ln.startAt = evtMgr.CurrentSeconds()
	if err := addLaunchTrace(run.tm, evtMgr.CurrentTime(), ln, "start"); err != nil {
		run.errs = append(run.errs, err)
	}

	// processes others wait on boot first
	bootTime := run.lp.Startup + run.lp.PerComponent*float64(ln.weight)
	run.sched.schedule(evtMgr, ln, bootTime, len(ln.dependents))
	return nil
}

// networkReady is the event handler for a sub-network process accepting connections;
// it releases the processes waiting on it
func networkReady(evtMgr *evtm.EventManager, context any, data any) any {
	run := context.(*launchRun)
	ln := data.(*launchNode)
	ln.ready = true
	ln.readyAt = evtMgr.CurrentSeconds()
	if err := addLaunchTrace(run.tm, evtMgr.CurrentTime(), ln, "ready"); err != nil {
		run.errs = append(run.errs, err)
	}

	for _, d := range ln.dependents {
		dn := run.nodes[d]
		dn.pending--
		if dn.pending == 0 {
			evtMgr.Schedule(run, dn, startNetwork, vrtime.SecondsToTime(0.0))
		}
	}
	return nil
}
