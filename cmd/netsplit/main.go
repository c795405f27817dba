package main

// netsplit builds or reads a network topology, splits it into sub-networks joined by
// bridge pairs, writes the membership manifest, and dry-runs the launch order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"

	"github.com/iti/netsplit"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type topoOpts struct {
	topoFile   string
	kind       string
	paramsFile string
	fill       bool
}

func (to *topoOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&to.topoFile, "topo", "", "topology description file (.yaml or .json)")
	cmd.Flags().StringVar(&to.kind, "kind", "fattree", "built-in topology when --topo is not given: fattree, homa or dumbbell")
	cmd.Flags().StringVar(&to.paramsFile, "params", "", "parameters for the built-in topology (.yaml or .json)")
	cmd.Flags().BoolVar(&to.fill, "fill", true, "populate the built-in topology with hosts")
}

// builtTopology is a topology plus the name and named partitionings that go with it
type builtTopology struct {
	name    string
	topo    netsplit.Topology
	schemes map[string]netsplit.StaticAssignment
}

func (to *topoOpts) build() (*builtTopology, error) {
	if to.topoFile != "" {
		if err := netsplit.CheckReadableFiles([]string{to.topoFile}); err != nil {
			return nil, err
		}
		td, err := netsplit.ReadTopologyDesc(to.topoFile, netsplit.IsYAMLFile(to.topoFile), nil)
		if err != nil {
			return nil, err
		}
		dt, err := netsplit.BuildTopology(td)
		if err != nil {
			return nil, err
		}
		return &builtTopology{name: td.Name, topo: dt}, nil
	}

	readParams := func(out any) error {
		if to.paramsFile == "" {
			return nil
		}
		return netsplit.ReadParams(to.paramsFile, netsplit.IsYAMLFile(to.paramsFile), nil, out)
	}

	switch to.kind {
	case "fattree":
		params := netsplit.DefaultFatTreeParams()
		if err := readParams(&params); err != nil {
			return nil, err
		}
		ft, err := netsplit.CreateFatTree("", params)
		if err != nil {
			return nil, err
		}
		if to.fill {
			if _, err := netsplit.AddContigBackground(ft, netsplit.DefaultBackgroundParams()); err != nil {
				return nil, err
			}
		}
		return &builtTopology{name: "fattree", topo: ft, schemes: netsplit.FatTreePartitions(ft)}, nil

	case "homa":
		params := netsplit.DefaultHomaParams()
		if err := readParams(&params); err != nil {
			return nil, err
		}
		ht, err := netsplit.CreateHomaTopology("", params)
		if err != nil {
			return nil, err
		}
		if to.fill {
			if err := ht.AddHomaHosts("10.2.0.0/16"); err != nil {
				return nil, err
			}
			if err := ht.AddHomaApps("MsgGen", nil, -1); err != nil {
				return nil, err
			}
		}
		return &builtTopology{name: "homa", topo: ht, schemes: netsplit.HomaPartitions(ht)}, nil

	case "dumbbell":
		params := netsplit.DefaultDumbbellParams()
		if err := readParams(&params); err != nil {
			return nil, err
		}
		db, err := netsplit.CreateDumbbell(params)
		if err != nil {
			return nil, err
		}
		if to.fill {
			if err := db.AddLeftComponent(netsplit.CreateHost("h_left")); err != nil {
				return nil, err
			}
			if err := db.AddRightComponent(netsplit.CreateHost("h_right")); err != nil {
				return nil, err
			}
		}
		return &builtTopology{name: "dumbbell", topo: db}, nil
	}
	return nil, fmt.Errorf("unknown topology kind %q", to.kind)
}

func newPlanCmd() *cobra.Command {
	var (
		to         topoOpts
		parts      int
		scheme     string
		syncFactor float64
		seed       uint64
		outFile    string
		dotFile    string
		traceFile  string
		routes     bool
		verbose    bool
		metrics    bool
	)

	cmd := &cobra.Command{
		Use:          "plan",
		Short:        "Split a topology into sub-networks",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := netsplit.NewLogger(verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if err := netsplit.CheckOutputFiles([]string{outFile, dotFile, traceFile}); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			bt, err := to.build()
			if err != nil {
				return err
			}
			if syncFactor > 0 {
				if err := netsplit.ScaleSyncDelays(bt.topo, syncFactor); err != nil {
					return err
				}
			}

			m := netsplit.NewMetrics(nil)
			planner := netsplit.NewPlanner(&netsplit.ModularityPartitioner{Seed: seed},
				netsplit.WithLogger(logger),
				netsplit.WithMetrics(m),
				netsplit.WithDotFile(dotFile))

			var plan *netsplit.Plan
			if scheme != "" {
				sa, present := bt.schemes[scheme]
				if !present {
					return fmt.Errorf("topology %s has no scheme %q", bt.name, scheme)
				}
				plan, err = planner.Instantiate(cmd.Context(), bt.topo, sa)
			} else {
				plan, err = planner.Plan(cmd.Context(), bt.topo, parts)
			}
			if metrics {
				defer func() { _ = m.WriteText(out) }()
			}
			if err != nil {
				return err
			}

			if outFile != "" {
				pd := plan.Transform(bt.name)
				if err := pd.WriteToFile(outFile); err != nil {
					return err
				}
			}

			fmt.Fprintf(out, "plan %s: %d sub-networks, %d nodes, %d plain links, %d bridges, edge cut %d, load balance %.3f\n",
				plan.ID, plan.Stats.Parts, plan.Stats.Nodes, plan.Stats.PlainLinks, plan.Stats.Bridges,
				plan.Stats.TotalCut, plan.Stats.LoadBalance)
			for _, net := range plan.Networks {
				fmt.Fprintf(out, "  %s: %d switches, %d hosts, %d links, peers %v\n",
					net.Name, len(net.Switches()), len(net.Hosts()), len(net.Links()), net.Peers())
			}

			tm := netsplit.CreateTraceManager(bt.name, traceFile != "")
			sched, err := netsplit.SimulateLaunch(plan.Networks, netsplit.DefaultLaunchParams(), tm)
			if err != nil {
				logger.Error("launch dry run failed", zap.Error(err))
				return err
			}
			fmt.Fprintf(out, "launch order %v, all ready after %.3fs\n", sched.Order(), sched.Makespan)
			if err := tm.WriteToFile(traceFile, true); err != nil {
				return err
			}

			if routes {
				printRoutes(out, netsplit.NewRouteFinder(plan).AppRoutes())
			}
			return nil
		},
	}
	to.register(cmd)
	cmd.Flags().IntVar(&parts, "parts", 1, "number of sub-networks")
	cmd.Flags().StringVar(&scheme, "scheme", "", "named partitioning of the built-in topology, overrides --parts")
	cmd.Flags().Float64Var(&syncFactor, "sync-factor", 0, "set every link's sync delay to this multiple of its delay")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "seed of the community detection")
	cmd.Flags().StringVar(&outFile, "out", "", "plan manifest file (.yaml or .json)")
	cmd.Flags().StringVar(&dotFile, "dot", "", "DOT rendering of the partition")
	cmd.Flags().StringVar(&traceFile, "trace", "", "launch trace file (.yaml or .json)")
	cmd.Flags().BoolVar(&routes, "routes", false, "report bridge crossings on application routes")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "debug logging")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "print the planner metrics in the Prometheus text format")
	return cmd
}

func printRoutes(w io.Writer, routes []netsplit.AppRoute) {
	if len(routes) == 0 {
		fmt.Fprintln(w, "no application routes")
		return
	}
	hist := map[int]int{}
	for _, r := range routes {
		hist[r.Crossings]++
	}
	crossings := make([]int, 0, len(hist))
	for c := range hist {
		crossings = append(crossings, c)
	}
	sort.Ints(crossings)
	fmt.Fprintf(w, "%d application routes\n", len(routes))
	for _, c := range crossings {
		fmt.Fprintf(w, "  %d bridge crossings: %d routes\n", c, hist[c])
	}
}

func newSchemesCmd() *cobra.Command {
	var to topoOpts
	cmd := &cobra.Command{
		Use:          "schemes",
		Short:        "List the named partitionings of a built-in topology",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bt, err := to.build()
			if err != nil {
				return err
			}
			for _, name := range netsplit.SchemeNames(bt.schemes) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d sub-networks\n", name, bt.schemes[name].Parts)
			}
			return nil
		},
	}
	to.register(cmd)
	return cmd
}

func newDescribeCmd() *cobra.Command {
	var (
		to      topoOpts
		outFile string
	)
	cmd := &cobra.Command{
		Use:          "describe",
		Short:        "Write the description of a topology",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			if outFile == "" {
				return errors.New("--out is required")
			}
			if err := netsplit.CheckOutputFiles([]string{outFile}); err != nil {
				return err
			}
			bt, err := to.build()
			if err != nil {
				return err
			}
			td := netsplit.TransformTopology(bt.name, bt.topo)
			return td.WriteToFile(outFile)
		},
	}
	to.register(cmd)
	cmd.Flags().StringVar(&outFile, "out", "", "description file (.yaml or .json)")
	return cmd
}

func newLaunchCmd() *cobra.Command {
	var (
		planFile string
		startup  float64
		slots    int
	)
	cmd := &cobra.Command{
		Use:          "launch",
		Short:        "Dry-run the launch order of a plan manifest",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := netsplit.CheckReadableFiles([]string{planFile}); err != nil {
				return err
			}
			pd, err := netsplit.ReadPlanDesc(planFile, netsplit.IsYAMLFile(planFile), nil)
			if err != nil {
				return err
			}
			lp := netsplit.DefaultLaunchParams()
			lp.Startup = startup
			lp.Slots = slots
			sched, err := netsplit.SimulateLaunchDesc(pd, lp, nil)
			if err != nil {
				return err
			}
			for _, step := range sched.Steps {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s start %8.3fs ready %8.3fs waits for %v\n", step.Network, step.Start, step.Ready, step.WaitsFor)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&planFile, "plan", "", "plan manifest (.yaml or .json)")
	cmd.Flags().Float64Var(&startup, "startup", 1.0, "seconds a sub-network process needs to get ready")
	cmd.Flags().IntVar(&slots, "slots", 0, "processes booted at once, 0 for no limit")
	return cmd
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "netsplit",
		Short: "Partition simulated network topologies into bridged sub-networks",
	}
	root.AddCommand(newPlanCmd(), newSchemesCmd(), newDescribeCmd(), newLaunchCmd())
	return root
}

func main() {
	root := newRootCmd()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
