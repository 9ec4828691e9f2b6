package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/absim/internal/ir"
)

func TestBody_Flattens(t *testing.T) {
	b := Body(Load("x"), WaitNS(2), Op(ir.OpStop, 0))
	assert.Len(t, b, 5)
	assert.Equal(t, ir.OpLoad, b[0].Op)
	assert.Equal(t, ir.IntLit(2), *b[1].Lit)
	assert.Equal(t, ir.OpStop, b[4].Op)
}

func TestModels_AreWellFormed(t *testing.T) {
	for _, m := range []*ir.Model{Ticker(), PingPong(), SingleProcess(Notify("E"))} {
		t.Run(m.Name, func(t *testing.T) {
			for _, p := range m.Processes {
				_, ok := m.Function(p.Function)
				assert.True(t, ok, "process %s", p.Name)
			}
		})
	}
}
