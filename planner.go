package netsplit

// file planner.go orchestrates one planning run: topology -> identity map and
// partition graph -> partition assignment -> sub-networks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Plan is the outcome of a successful planning run
type Plan struct {
	ID        string
	CreatedAt time.Time
	Networks  []*SubNetwork

	// partition per node index, as returned by the partitioner
	Assignment []int

	// partition each node is realized in; hosts follow their switch
	Placement []int

	Graph *PartitionGraph
	IDs   *IdentityMap
	Stats PartitionStats
}

// PartitionOf reports the sub-network a node was placed in
func (pl *Plan) PartitionOf(n TopoNode) (int, bool) {
	idx, present := pl.IDs.Lookup(n)
	if !present {
		return -1, false
	}
	return pl.Placement[idx], true
}

// Planner splits topologies into sub-networks
type Planner struct {
	partitioner GraphPartitioner
	logger      *zap.Logger
	metrics     *Metrics
	dotFile     string
}

type PlannerOption func(*Planner)

func WithLogger(logger *zap.Logger) PlannerOption {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) PlannerOption {
	return func(p *Planner) { p.metrics = m }
}

// WithDotFile has every successful run write a DOT rendering of its partition to path
func WithDotFile(path string) PlannerOption {
	return func(p *Planner) { p.dotFile = path }
}

// NewPlanner is a constructor.  The partitioner is consulted only for more than one part.
func NewPlanner(partitioner GraphPartitioner, opts ...PlannerOption) *Planner {
	p := &Planner{partitioner: partitioner, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// claimable is implemented by the nodes a planning run writes to
type claimable interface {
	claim() bool
	release()
}

// claimNodes marks every node of the graph as being planned.  If any node is already
// held by another run, the nodes claimed so far are released and ErrConcurrentPlan is
// returned.  The returned function releases the claim.
func claimNodes(ids *IdentityMap) (func(), error) {
	held := []claimable{}
	release := func() {
		for _, c := range held {
			c.release()
		}
	}
	for _, entry := range ids.Entries() {
		c, ok := entry.Node.(claimable)
		if !ok {
			continue
		}
		if !c.claim() {
			release()
			return nil, ErrConcurrentPlan
		}
		held = append(held, c)
	}
	return release, nil
}

// Plan splits topo into n sub-networks.  Either every sub-network is built and every link
// realized, or an error is returned and topo is left as it was.  A run that overlaps
// another run on any of the same nodes fails with ErrConcurrentPlan.
func (p *Planner) Plan(ctx context.Context, topo Topology, n int) (*Plan, error) {
	start := time.Now()
	plan, err := p.plan(ctx, p.partitioner, topo, n)
	elapsed := time.Since(start)

	if err != nil {
		p.logger.Error("planning failed", zap.Int("parts", n), zap.Error(err))
		if p.metrics != nil {
			p.metrics.RecordFailure(err, elapsed)
		}
		return nil, err
	}

	p.logger.Info("partitioned topology",
		zap.String("plan", plan.ID),
		zap.Int("parts", n),
		zap.Int("nodes", plan.Stats.Nodes),
		zap.Int("edgeCut", plan.Stats.TotalCut),
		zap.Int("bridges", plan.Stats.Bridges),
		zap.Float64("loadBalance", plan.Stats.LoadBalance),
		zap.Duration("elapsed", elapsed))
	for _, net := range plan.Networks {
		p.logger.Debug("sub-network",
			zap.String("name", net.Name),
			zap.Strings("switches", compNames(net.Switches())),
			zap.Int("hosts", len(net.Hosts())),
			zap.Int("links", len(net.Links())),
			zap.Int("initiators", len(net.Initiators())),
			zap.Int("responders", len(net.Responders())))
	}

	if p.dotFile != "" {
		if err := WriteDot(plan, p.dotFile); err != nil {
			p.logger.Warn("could not write partition graph", zap.String("file", p.dotFile), zap.Error(err))
		}
	}
	if p.metrics != nil {
		p.metrics.RecordPlan(plan.Stats, elapsed)
	}
	return plan, nil
}

// Instantiate plans with a fixed assignment, such as one of the named hierarchical schemes
func (p *Planner) Instantiate(ctx context.Context, topo Topology, sa StaticAssignment) (*Plan, error) {
	fixed := *p
	fixed.partitioner = &StaticPartitioner{Assignment: sa.Of}
	return fixed.Plan(ctx, topo, sa.Parts)
}

func (p *Planner) plan(ctx context.Context, partitioner GraphPartitioner, topo Topology, n int) (*Plan, error) {
	if err := ValidateTopology(topo); err != nil {
		return nil, err
	}
	ids := NewIdentityMap()
	g := BuildPartitionGraph(topo, ids)
	release, err := claimNodes(ids)
	if err != nil {
		return nil, err
	}
	defer release()

	if n < 1 || n > g.NodeCount() {
		return nil, &PartitionError{Requested: n, NodeCount: g.NodeCount()}
	}
	p.logger.Debug("built partition graph",
		zap.Int("nodes", g.NodeCount()),
		zap.Int("linkEdges", g.LinkEdges),
		zap.Int("hostEdges", len(g.Edges)-g.LinkEdges))

	assign, err := partitionGraph(ctx, partitioner, g, n)
	if err != nil {
		return nil, err
	}
	nets, placement, err := assemble(topo, g, ids, assign, n)
	if err != nil {
		return nil, err
	}

	return &Plan{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now(),
		Networks:   nets,
		Assignment: assign,
		Placement:  placement,
		Graph:      g,
		IDs:        ids,
		Stats:      ComputePartitionStats(g, placement, nets),
	}, nil
}
