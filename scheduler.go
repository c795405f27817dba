package netsplit

// scheduler.go models the launching host's limited capacity to boot sub-network
// processes.  A boot request names how much service (seconds) the process needs and a
// priority.  If a slot is free the request is served for the smaller of its remaining
// requirement and the timeslice; otherwise it waits.  Waiting requests are served
// first-come first-serve within priority, larger priorities first.

import (
	"sort"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
)

// bootTask is the start-up work of one sub-network process
type bootTask struct {
	node   *launchNode
	req    float64 // remaining service
	pri    int     // the larger the number the greater the priority
	finish bool    // the current slice completes the task
}

// bootScheduler holds the data structures supporting slot-limited booting
type bootScheduler struct {
	slots      int     // concurrent boots allowed, unlimited when < 1
	timeslice  float64 // service given before yielding, run to completion when <= 0
	inservice  int
	waiting    map[int][]*bootTask
	numWaiting int
	priorities []int // existing priorities, decreasing

	// called with (context, *launchNode) when a task completes
	complete evtm.EventHandlerFunction
	context  any
}

// createBootScheduler is a constructor
func createBootScheduler(slots int, timeslice float64, context any, complete evtm.EventHandlerFunction) *bootScheduler {
	bs := new(bootScheduler)
	bs.slots = slots
	bs.timeslice = timeslice
	bs.waiting = make(map[int][]*bootTask)
	bs.priorities = make([]int, 0)
	bs.complete = complete
	bs.context = context
	return bs
}

// schedule asks for req seconds of boot service for ln.  The return is true if the
// request went straight into service.
func (bs *bootScheduler) schedule(evtMgr *evtm.EventManager, ln *launchNode, req float64, pri int) bool {
	if pri < 1 {
		pri = 1
	}
	task := &bootTask{node: ln, req: req, pri: pri}
	return bs.joinQueue(evtMgr, task)
}

// joinQueue either puts the task into service or queues it behind its priority level
func (bs *bootScheduler) joinQueue(evtMgr *evtm.EventManager, task *bootTask) bool {
	if bs.slots > 0 && bs.inservice >= bs.slots {
		if _, present := bs.waiting[task.pri]; !present {
			bs.waiting[task.pri] = make([]*bootTask, 0)
			bs.priorities = append(bs.priorities, task.pri)
			sort.Sort(sort.Reverse(sort.IntSlice(bs.priorities)))
		}
		bs.waiting[task.pri] = append(bs.waiting[task.pri], task)
		bs.numWaiting++
		return false
	}

	execute := task.req
	task.finish = true
	if bs.timeslice > 0 && task.req > bs.timeslice {
		execute = bs.timeslice
		task.finish = false
	}
	bs.inservice++

	evtMgr.Schedule(bs, task, bootSliceComplete, vrtime.SecondsToTime(execute))
	if task.finish {
		evtMgr.Schedule(bs.context, task.node, bs.complete, vrtime.SecondsToTime(execute))
	}
	return true
}

// bootSliceComplete is the event handler for the end of a slice of boot service.
// It frees the slot, pulls the next waiting task in, and resubmits an unfinished task.
func bootSliceComplete(evtMgr *evtm.EventManager, context any, data any) any {
	bs := context.(*bootScheduler)
	task := data.(*bootTask)
	bs.inservice--

	bs.scheduleNxtTask(evtMgr)

	if !task.finish {
		task.req -= bs.timeslice
		bs.joinQueue(evtMgr, task)
	}
	return nil
}

func (bs *bootScheduler) scheduleNxtTask(evtMgr *evtm.EventManager) bool {
	for _, pri := range bs.priorities {
		if len(bs.waiting[pri]) > 0 {
			task := bs.waiting[pri][0]
			bs.waiting[pri] = bs.waiting[pri][1:]
			bs.numWaiting--
			bs.joinQueue(evtMgr, task)
			return true
		}
	}
	return false
}
