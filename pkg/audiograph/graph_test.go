package audiograph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type passthroughNode struct {
	inputs, outputs int
	gain            float32
}

func (n *passthroughNode) NumAudioInputs() int  { return n.inputs }
func (n *passthroughNode) NumAudioOutputs() int { return n.outputs }
func (n *passthroughNode) Compile(Params) CompiledNode {
	return &compiledPassthrough{gain: n.gain}
}

type compiledPassthrough struct{ gain float32 }

func (c *compiledPassthrough) Process(_ Params, inputs []*Buffer, outputs []*Buffer) {
	for _, out := range outputs {
		for i := range out.Samples {
			in := float32(0)
			if len(inputs) > 0 {
				in = inputs[0].Samples[i]
			}
			out.Samples[i] = in*c.gain + 1
		}
	}
}

func TestCompileOrdersUpstreamBeforeDownstream(t *testing.T) {
	g := New(Params{SampleRate: 48000, BufferSize: 4})

	source := g.AddNode(&passthroughNode{outputs: 1, gain: 1})
	sink := g.AddNode(&passthroughNode{inputs: 1, outputs: 1, gain: 2})

	require.NoError(t, g.Connect(source, 0, sink, 0))

	compiled, err := g.Compile()
	require.NoError(t, err)

	compiled.Process()

	// source writes 1 into its output buffer every sample (it has no
	// inputs, so its input sum is 0); sink reads that and computes
	// in*2 + 1 = 3.
	sinkBuf := compiled.buffers[compiled.entries[1].audioOutputs[0]]
	for _, s := range sinkBuf.Samples {
		assert.Equal(t, float32(3), s)
	}
}

func TestCompileDetectsCycle(t *testing.T) {
	g := New(Params{SampleRate: 48000, BufferSize: 4})

	a := g.AddNode(&passthroughNode{inputs: 1, outputs: 1})
	b := g.AddNode(&passthroughNode{inputs: 1, outputs: 1})

	require.NoError(t, g.Connect(a, 0, b, 0))
	require.NoError(t, g.Connect(b, 0, a, 0))

	_, err := g.Compile()
	require.Error(t, err)
}

func TestUnconnectedInputReadsSilenceBuffer(t *testing.T) {
	g := New(Params{SampleRate: 48000, BufferSize: 4})
	sink := g.AddNode(&passthroughNode{inputs: 1, outputs: 1, gain: 5})

	compiled, err := g.Compile()
	require.NoError(t, err)
	require.Equal(t, 0, compiled.entries[0].audioInputs[0])

	compiled.Process()
	sinkBuf := compiled.buffers[compiled.entries[0].audioOutputs[0]]
	for _, s := range sinkBuf.Samples {
		assert.Equal(t, float32(1), s)
	}
}
