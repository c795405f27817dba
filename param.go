package netsplit

// file param.go holds the parameter structs that shape the built-in topologies,
// their defaults, and the code that reads and validates them

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	// validate is shared by every params and description check
	validate *validator.Validate

	ns3RatePattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?([KkMGT])?bps$`)
)

func init() {
	validate = validator.New()
	tags := map[string]validator.Func{
		"ns3time": func(fl validator.FieldLevel) bool {
			_, err := ParseNs3Time(fl.Field().String())
			return err == nil
		},
		"ns3rate": func(fl validator.FieldLevel) bool {
			return ns3RatePattern.MatchString(fl.Field().String())
		},
	}
	for tag, fn := range tags {
		if err := validate.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("registering validation %s: %v", tag, err))
		}
	}
}

// FatTreeParams shape a data-center fat tree
type FatTreeParams struct {
	SpineSwitches int    `json:"nspinesw" yaml:"nspinesw" validate:"min=1"`
	AggBlocks     int    `json:"naggbl" yaml:"naggbl" validate:"min=1"`
	AggSwitches   int    `json:"naggsw" yaml:"naggsw" validate:"min=1"`
	AggRacks      int    `json:"naggracks" yaml:"naggracks" validate:"min=1"`
	HostsPerRack  int    `json:"hperrack" yaml:"hperrack" validate:"min=0"`
	MTU           string `json:"mtu" yaml:"mtu" validate:"required,numeric"`
	QueueType     string `json:"queuetype" yaml:"queuetype" validate:"required"`

	SpineLinkDelay string `json:"spinelinkdelay" yaml:"spinelinkdelay" validate:"required,ns3time"`
	SpineLinkRate  string `json:"spinelinkrate" yaml:"spinelinkrate" validate:"required,ns3rate"`
	SpineLinkQueue string `json:"spinelinkqueue" yaml:"spinelinkqueue" validate:"required"`
	AggLinkDelay   string `json:"agglinkdelay" yaml:"agglinkdelay" validate:"required,ns3time"`
	AggLinkRate    string `json:"agglinkrate" yaml:"agglinkrate" validate:"required,ns3rate"`
	AggLinkQueue   string `json:"agglinkqueue" yaml:"agglinkqueue" validate:"required"`

	// attributes given to hosts wrapping an external NIC simulator
	SimbricksEthLatency string `json:"sbhostethlatency" yaml:"sbhostethlatency" validate:"required,ns3time"`
	SimbricksSyncDelay  string `json:"sbhostsyncdelay" yaml:"sbhostsyncdelay" validate:"required,ns3time"`
}

// DefaultFatTreeParams returns the parameters of the standard experiment fat tree
func DefaultFatTreeParams() FatTreeParams {
	return FatTreeParams{
		SpineSwitches:       1,
		AggBlocks:           5,
		AggSwitches:         1,
		AggRacks:            6,
		HostsPerRack:        40,
		MTU:                 "1448",
		QueueType:           "ns3::PTPQueue",
		SpineLinkDelay:      "1us",
		SpineLinkRate:       "100Gbps",
		SpineLinkQueue:      "512KB",
		AggLinkDelay:        "1us",
		AggLinkRate:         "100Gbps",
		AggLinkQueue:        "512KB",
		SimbricksEthLatency: "500ns",
		SimbricksSyncDelay:  "100ns",
	}
}

// HomaParams shape a two-level Homa benchmark cluster
type HomaParams struct {
	AggSwitches  int    `json:"naggsw" yaml:"naggsw" validate:"min=1"`
	AggRacks     int    `json:"naggracks" yaml:"naggracks" validate:"min=1"`
	HostsPerRack int    `json:"hperrack" yaml:"hperrack" validate:"min=0"`
	Remotes      int    `json:"nremotes" yaml:"nremotes" validate:"min=0"`
	MTU          string `json:"mtu" yaml:"mtu" validate:"required,numeric"`

	AggLinkDelay     string `json:"agglinkdelay" yaml:"agglinkdelay" validate:"required,ns3time"`
	AggLinkRate      string `json:"agglinkrate" yaml:"agglinkrate" validate:"required,ns3rate"`
	AggLinkQueueType string `json:"agglinkqueuetype" yaml:"agglinkqueuetype" validate:"required"`
	AggLinkQueueSize string `json:"agglinkqueuesize" yaml:"agglinkqueuesize" validate:"required"`
	TorLinkDelay     string `json:"torlinkdelay" yaml:"torlinkdelay" validate:"required,ns3time"`
	TorLinkRate      string `json:"torlinkrate" yaml:"torlinkrate" validate:"required,ns3rate"`
	TorLinkQueueType string `json:"torlinkqueuetype" yaml:"torlinkqueuetype" validate:"required"`
	TorLinkQueueSize string `json:"torlinkqueuesize" yaml:"torlinkqueuesize" validate:"required"`

	HostLinkQueueType string `json:"hostlinkqueuetype" yaml:"hostlinkqueuetype" validate:"required"`
	HostLinkQueueSize string `json:"hostlinkqueuesize" yaml:"hostlinkqueuesize" validate:"required"`
	PfifoNumBands     string `json:"pfifonumbands" yaml:"pfifonumbands" validate:"required,numeric"`

	NetworkLoad     string `json:"networkload" yaml:"networkload" validate:"required,numeric"`
	StartTime       string `json:"starttime" yaml:"starttime" validate:"required,ns3time"`
	StopTime        string `json:"stoptime" yaml:"stoptime" validate:"required,ns3time"`
	MsgSizeDistFile string `json:"msgsizedistfile" yaml:"msgsizedistfile"`
}

// DefaultHomaParams returns the parameters of the standard Homa cluster
func DefaultHomaParams() HomaParams {
	return HomaParams{
		AggSwitches:       1,
		AggRacks:          9,
		HostsPerRack:      16,
		Remotes:           4,
		MTU:               "1500",
		AggLinkDelay:      "250ns",
		AggLinkRate:       "160Gbps",
		AggLinkQueueType:  "ns3::HomaPFifoQueue",
		AggLinkQueueSize:  "500000p",
		TorLinkDelay:      "250ns",
		TorLinkRate:       "10Gbps",
		TorLinkQueueType:  "ns3::DropTailQueue<Packet>",
		TorLinkQueueSize:  "500000p",
		HostLinkQueueType: "ns3::HomaPFifoQueue",
		HostLinkQueueSize: "500000p",
		PfifoNumBands:     "8",
		NetworkLoad:       "0.8",
		StartTime:         "3s",
		StopTime:          "23s",
	}
}

// DumbbellParams shape the two-switch dumbbell
type DumbbellParams struct {
	MTU       string `json:"mtu" yaml:"mtu" validate:"required,numeric"`
	DataRate  string `json:"datarate" yaml:"datarate" validate:"required,ns3rate"`
	QueueSize string `json:"queuesize" yaml:"queuesize" validate:"required"`
	Delay     string `json:"delay" yaml:"delay" validate:"required,ns3time"`
}

func DefaultDumbbellParams() DumbbellParams {
	return DumbbellParams{MTU: "1500", DataRate: "10Gbps", QueueSize: "512KB", Delay: "1us"}
}

// BackgroundParams configure the bulk-transfer background hosts added by AddContigBackground
type BackgroundParams struct {
	Subnet            string `json:"subnet" yaml:"subnet" validate:"required,cidr"`
	LinkRate          string `json:"linkrate" yaml:"linkrate" validate:"required,ns3rate"`
	LinkDelay         string `json:"linkdelay" yaml:"linkdelay" validate:"required,ns3time"`
	LinkQueueSize     string `json:"linkqueuesize" yaml:"linkqueuesize" validate:"required"`
	LinkQueueType     string `json:"linkqueuetype" yaml:"linkqueuetype" validate:"required"`
	CongestionControl string `json:"congestioncontrol" yaml:"congestioncontrol" validate:"required"`
	AppStopTime       string `json:"appstoptime" yaml:"appstoptime" validate:"required,ns3time"`
}

func DefaultBackgroundParams() BackgroundParams {
	return BackgroundParams{
		Subnet:            "10.42.0.0/16",
		LinkRate:          "5Gbps",
		LinkDelay:         "1us",
		LinkQueueSize:     "512KB",
		LinkQueueType:     "ns3::PTPQueue",
		CongestionControl: "ns3::TcpCubic",
		AppStopTime:       "60s",
	}
}

// HomaBackgroundParams configure the message-generator hosts added by AddHomaBackground
type HomaBackgroundParams struct {
	Subnet        string `json:"subnet" yaml:"subnet" validate:"required,cidr"`
	LinkRate      string `json:"linkrate" yaml:"linkrate" validate:"required,ns3rate"`
	LinkDelay     string `json:"linkdelay" yaml:"linkdelay" validate:"required,ns3time"`
	LinkQueueSize string `json:"linkqueuesize" yaml:"linkqueuesize" validate:"required"`
	LinkQueueType string `json:"linkqueuetype" yaml:"linkqueuetype" validate:"required"`
	AppStopTime   string `json:"appstoptime" yaml:"appstoptime" validate:"required,ns3time"`
	AppProto      string `json:"appproto" yaml:"appproto" validate:"oneof=tcp homa"`
	ExpName       string `json:"expname" yaml:"expname"`
	Remotes       int    `json:"nremotes" yaml:"nremotes" validate:"min=1"`
}

func DefaultHomaBackgroundParams() HomaBackgroundParams {
	return HomaBackgroundParams{
		Subnet:        "10.2.0.0/16",
		LinkRate:      "20Gbps",
		LinkDelay:     "500ns",
		LinkQueueSize: "512KB",
		LinkQueueType: "ns3::HomaPFifoQueue",
		AppStopTime:   "60s",
		AppProto:      "homa",
		Remotes:       10,
	}
}

// ValidateParams checks any of the params structs (or a topology description)
// against its validate tags
func ValidateParams(params any) error {
	if params == nil {
		return errors.New("nil parameters")
	}
	if err := validate.Struct(params); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError turns validator errors into one error naming every failed field
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			errs = append(errs, fmt.Errorf("%s: field is required", fe.Namespace()))
		case "min":
			errs = append(errs, fmt.Errorf("%s: must be at least %s", fe.Namespace(), fe.Param()))
		case "ns3time":
			errs = append(errs, fmt.Errorf("%s: %q is not an ns-3 time", fe.Namespace(), fe.Value()))
		case "ns3rate":
			errs = append(errs, fmt.Errorf("%s: %q is not an ns-3 data rate", fe.Namespace(), fe.Value()))
		default:
			errs = append(errs, fmt.Errorf("%s: validation failed (%s)", fe.Namespace(), fe.Tag()))
		}
	}
	return ReportErrs(errs)
}

// ReadParams fills out (a pointer to one of the params structs, usually pre-loaded with defaults)
// from a YAML or JSON serialization and validates the result.
// If dict is empty the file whose name is given is read to acquire the bytes.
func ReadParams(filename string, useYAML bool, dict []byte, out any) error {
	var err error
	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return err
		}
	}

	if useYAML {
		err = yaml.Unmarshal(dict, out)
	} else {
		err = json.Unmarshal(dict, out)
	}
	if err != nil {
		return err
	}
	return ValidateParams(out)
}

// ParseNs3Time converts an ns-3 time string ("500ns", "1us", "3s") into a duration
func ParseNs3Time(s string) (time.Duration, error) {
	if s == "" {
		return 0, errors.New("empty time string")
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("ns-3 time %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("ns-3 time %q is negative", s)
	}
	return d, nil
}

// FormatNs3Time writes a duration in the largest ns-3 unit that represents it exactly
func FormatNs3Time(d time.Duration) string {
	switch {
	case d == 0:
		return "0ns"
	case d%time.Second == 0:
		return strconv.FormatInt(int64(d/time.Second), 10) + "s"
	case d%time.Millisecond == 0:
		return strconv.FormatInt(int64(d/time.Millisecond), 10) + "ms"
	case d%time.Microsecond == 0:
		return strconv.FormatInt(int64(d/time.Microsecond), 10) + "us"
	}
	return strconv.FormatInt(int64(d), 10) + "ns"
}
