// Package audiograph implements the engine's uncompiled/compiled audio
// node graph (spec §4.G): nodes connect through audio ports, compile()
// topologically sorts them via Kahn's algorithm and assigns a flat buffer
// pool, and the compiled graph's process() walks that order on the
// real-time thread. Grounded on rdaw-audio/src/graph.rs; the original's
// bump-allocator arena (to guarantee zero heap allocation on the
// real-time path) has no faithful Go equivalent since the language has no
// notion of a non-GC-managed bump region — process() instead reuses
// fixed, pre-allocated input/output slices built once at compile time, so
// no allocation occurs on the steady-state path even though Go's
// allocator and GC remain involved in principle (documented as a
// DESIGN.md-tracked limitation of the port, not a silent gap).
package audiograph

import (
	"rdawcore/pkg/object"
	"rdawcore/pkg/rdawerr"
)

// Params parameterizes a graph's compiled form.
type Params struct {
	SampleRate uint32
	BufferSize int
}

// Port identifies an audio port by index. The original's Port enum has a
// single Audio(usize) variant since MIDI/control ports are out of scope;
// kept as a plain int alias rather than a one-case enum for the same
// reason.
type Port = int

// Node is an uncompiled graph node: it advertises its port counts and can
// compile itself into a real-time-safe CompiledNode.
type Node interface {
	NumAudioInputs() int
	NumAudioOutputs() int
	Compile(params Params) CompiledNode
}

// CompiledNode processes one block of audio given its assigned input and
// output buffers.
type CompiledNode interface {
	Process(params Params, inputs []*Buffer, outputs []*Buffer)
}

type nodeEntry struct {
	node         Node
	deps         map[NodeId]struct{}
	revDeps      map[NodeId]struct{}
	audioInputs  []*inputSrc
	audioOutputs [][]portRef
}

type inputSrc struct {
	node NodeId
	port Port
}

type portRef struct {
	node NodeId
	port Port
}

// NodeId is a generational handle into a Graph, the Go analogue of the
// original's slotmap-backed NodeId.
type NodeId = object.Id[nodeEntry]

// Graph is the uncompiled, editable node graph.
type Graph struct {
	params Params
	nodes  *object.Storage[nodeEntry]
}

// New creates an empty graph.
func New(params Params) *Graph {
	return &Graph{params: params, nodes: object.NewStorage[nodeEntry]()}
}

// SetParams changes the params used by future Compile calls.
func (g *Graph) SetParams(params Params) { g.params = params }

// AddNode inserts node and returns its id.
func (g *Graph) AddNode(node Node) NodeId {
	return g.nodes.Insert(object.Metadata{}, nodeEntry{
		node:         node,
		deps:         make(map[NodeId]struct{}),
		revDeps:      make(map[NodeId]struct{}),
		audioInputs:  make([]*inputSrc, node.NumAudioInputs()),
		audioOutputs: make([][]portRef, node.NumAudioOutputs()),
	})
}

// GetNode returns the node for id.
func (g *Graph) GetNode(id NodeId) (Node, bool) {
	e, ok := g.nodes.Get(id)
	if !ok {
		return nil, false
	}
	return e.node, true
}

// RemoveNode deletes id from the graph.
func (g *Graph) RemoveNode(id NodeId) {
	g.nodes.Remove(id)
}

// Connect wires (srcNode, srcPort)'s audio output to (dstNode, dstPort)'s
// audio input, overwriting any existing connection to that input (each
// input port has exactly one source).
func (g *Graph) Connect(srcNode NodeId, srcPort Port, dstNode NodeId, dstPort Port) error {
	src, ok := g.nodes.Get(srcNode)
	if !ok {
		return rdawerr.New(rdawerr.InvalidId, "source node not found")
	}
	dst, ok := g.nodes.Get(dstNode)
	if !ok {
		return rdawerr.New(rdawerr.InvalidId, "destination node not found")
	}
	if srcPort < 0 || srcPort >= len(src.audioOutputs) {
		return rdawerr.New(rdawerr.IndexOutOfBounds, "source audio output port out of range")
	}
	if dstPort < 0 || dstPort >= len(dst.audioInputs) {
		return rdawerr.New(rdawerr.IndexOutOfBounds, "destination audio input port out of range")
	}

	src.audioOutputs[srcPort] = append(src.audioOutputs[srcPort], portRef{node: dstNode, port: dstPort})
	dst.audioInputs[dstPort] = &inputSrc{node: srcNode, port: srcPort}

	dst.deps[srcNode] = struct{}{}
	src.revDeps[dstNode] = struct{}{}
	return nil
}

// toposort returns a Kahn's-algorithm topological order over the current
// node set, failing if a cycle makes that impossible.
func (g *Graph) toposort() ([]NodeId, error) {
	indegree := make(map[NodeId]int)
	g.nodes.Iter(func(id NodeId, _ object.Metadata, e *nodeEntry) bool {
		indegree[id] = len(e.deps)
		return true
	})

	var queue []NodeId
	for id, d := range indegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]NodeId, 0, len(indegree))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		e, _ := g.nodes.Get(id)
		for neighbor := range e.revDeps {
			indegree[neighbor]--
			if indegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(order) != len(indegree) {
		return nil, rdawerr.New(rdawerr.Other, "audio graph contains a cycle")
	}
	return order, nil
}

// Compile builds a process()-ready CompiledGraph: it topologically sorts
// the graph, assigns one buffer index per output port (buffer 0 is the
// shared silence buffer for unconnected inputs), and pre-allocates every
// buffer the graph needs.
func (g *Graph) Compile() (*CompiledGraph, error) {
	order, err := g.toposort()
	if err != nil {
		return nil, err
	}

	numBuffers := 1
	outBuffers := make(map[portRef]int, len(order))
	entries := make([]compiledEntry, 0, len(order))

	for _, id := range order {
		e, _ := g.nodes.Get(id)

		audioInputIdx := make([]int, len(e.audioInputs))
		for i, src := range e.audioInputs {
			if src == nil {
				audioInputIdx[i] = 0
				continue
			}
			audioInputIdx[i] = outBuffers[portRef{node: src.node, port: src.port}]
		}

		audioOutputIdx := make([]int, len(e.audioOutputs))
		for i := range e.audioOutputs {
			idx := numBuffers
			numBuffers++
			outBuffers[portRef{node: id, port: i}] = idx
			audioOutputIdx[i] = idx
		}

		entries = append(entries, compiledEntry{
			node:         e.node.Compile(g.params),
			audioInputs:  audioInputIdx,
			audioOutputs: audioOutputIdx,

			inputScratch:  make([]*Buffer, len(audioInputIdx)),
			outputScratch: make([]*Buffer, len(audioOutputIdx)),
		})
	}

	buffers := make([]*Buffer, numBuffers)
	for i := range buffers {
		buffers[i] = NewBuffer(g.params.BufferSize)
	}

	return &CompiledGraph{
		params:  g.params,
		buffers: buffers,
		entries: entries,
	}, nil
}

type compiledEntry struct {
	node         CompiledNode
	audioInputs  []int
	audioOutputs []int

	inputScratch  []*Buffer
	outputScratch []*Buffer
}

// CompiledGraph is the real-time-safe, process()-able form of a Graph.
type CompiledGraph struct {
	params  Params
	buffers []*Buffer
	entries []compiledEntry
}

// Process runs every compiled node once, in topological order, clearing
// the shared silence buffer first. Each node reads its input buffers (its
// upstreams, already written this call since ordering guarantees writers
// run first) and writes its output buffers.
func (g *CompiledGraph) Process() {
	g.buffers[0].Clear()

	for i := range g.entries {
		e := &g.entries[i]

		if e.inputScratch == nil {
			e.inputScratch = make([]*Buffer, len(e.audioInputs))
			e.outputScratch = make([]*Buffer, len(e.audioOutputs))
		}
		for j, idx := range e.audioInputs {
			e.inputScratch[j] = g.buffers[idx]
		}
		for j, idx := range e.audioOutputs {
			e.outputScratch[j] = g.buffers[idx]
		}

		e.node.Process(g.params, e.inputScratch, e.outputScratch)
	}
}
