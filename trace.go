package netsplit

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"strconv"

	"github.com/iti/evt/vrtime"
	"gopkg.in/yaml.v3"
)

type TraceInst struct {
	TraceTime string
	TraceType string
	TraceStr  string
}

// NameType is a an entry in a dictionary created for a trace
// that maps object id numbers to a (name,type) pair
type NameType struct {
	Name string
	Type string
}

// TraceManager gathers the records of a launch dry run, keyed by sub-network index
type TraceManager struct {
	// trace is being gathered
	InUse bool `json:"inuse" yaml:"inuse"`

	// name of experiment
	ExpName string `json:"expname" yaml:"expname"`

	// text name associated with each objID
	NameByID map[int]NameType `json:"namebyid" yaml:"namebyid"`

	// all trace records for this experiment
	Traces map[int][]TraceInst `json:"traces" yaml:"traces"`
}

// CreateTraceManager is a constructor.  It saves the name of the experiment
// and a flag indicating whether the trace manager is active.  By testing this
// flag we can inhibit the activity of gathering a trace when we don't want it,
// while embedding calls to its methods everywhere we need them when it is
func CreateTraceManager(expName string, active bool) *TraceManager {
	tm := new(TraceManager)
	tm.InUse = active
	tm.ExpName = expName
	tm.NameByID = make(map[int]NameType)
	tm.Traces = make(map[int][]TraceInst)
	return tm
}

// Active tells the caller whether the Trace Manager is actively being used
func (tm *TraceManager) Active() bool {
	return tm != nil && tm.InUse
}

// AddTrace stores a trace record under the object it concerns
func (tm *TraceManager) AddTrace(objID int, trace TraceInst) {
	if !tm.Active() {
		return
	}
	tm.Traces[objID] = append(tm.Traces[objID], trace)
}

// AddName is used to add an element to the id -> (name,type) dictionary for the trace file
func (tm *TraceManager) AddName(id int, name string, objDesc string) error {
	if !tm.Active() {
		return nil
	}
	if _, present := tm.NameByID[id]; present {
		return fmt.Errorf("duplicated id %d in trace dictionary", id)
	}
	tm.NameByID[id] = NameType{Name: name, Type: objDesc}
	return nil
}

// Ordered returns every trace record, sorted by time
func (tm *TraceManager) Ordered() []TraceInst {
	all := []TraceInst{}
	for _, valueList := range tm.Traces {
		all = append(all, valueList...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		v1, _ := strconv.ParseFloat(all[i].TraceTime, 64)
		v2, _ := strconv.ParseFloat(all[j].TraceTime, 64)
		return v1 < v2
	})
	return all
}

// WriteToFile stores the Traces struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
// With globalOrder set all records are merged into one time-ordered list under key 0.
func (tm *TraceManager) WriteToFile(filename string, globalOrder bool) error {
	if !tm.Active() {
		return nil
	}
	out := tm
	if globalOrder {
		out = CreateTraceManager(tm.ExpName, tm.InUse)
		for key, value := range tm.NameByID {
			out.NameByID[key] = value
		}
		out.Traces[0] = tm.Ordered()
	}

	var bytes []byte
	var merr error
	switch path.Ext(filename) {
	case ".yaml", ".YAML", ".yml":
		bytes, merr = yaml.Marshal(*out)
	case ".json", ".JSON":
		bytes, merr = json.MarshalIndent(*out, "", "\t")
	default:
		return fmt.Errorf("file %s: extension must be .yaml, .yml or .json", filename)
	}
	if merr != nil {
		return merr
	}
	return os.WriteFile(filename, bytes, 0o644)
}

// LaunchTrace records one step in the start-up of a sub-network process
type LaunchTrace struct {
	Time    float64
	Network string
	Index   int
	Op      string // "start", "ready"
	Waited  []int  `yaml:",omitempty"`
}

func (lt *LaunchTrace) Serialize() (string, error) {
	bytes, err := yaml.Marshal(*lt)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// addLaunchTrace creates a record of a launch step and stores it
func addLaunchTrace(tm *TraceManager, vrt vrtime.Time, ln *launchNode, op string) error {
	if !tm.Active() {
		return nil
	}
	lt := &LaunchTrace{Time: vrt.Seconds(), Network: ln.name, Index: ln.index, Op: op, Waited: ln.waitsFor}
	ltStr, err := lt.Serialize()
	if err != nil {
		return err
	}
	traceTime := strconv.FormatFloat(vrt.Seconds(), 'f', -1, 64)
	tm.AddTrace(ln.index, TraceInst{TraceTime: traceTime, TraceType: "launch", TraceStr: ltStr})
	return nil
}
