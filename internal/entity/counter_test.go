package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOperation(t *testing.T) {
	tests := []struct {
		in      string
		want    Operation
		wantErr bool
	}{
		{"increment", OpIncrement, false},
		{"decrement", OpDecrement, false},
		{"read", OpRead, false},
		{"", OpRead, false},
		{"reset", "", true},
		{"Increment", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOperation(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNotFound)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOperation_Mutates(t *testing.T) {
	assert.True(t, OpIncrement.Mutates())
	assert.True(t, OpDecrement.Mutates())
	assert.False(t, OpRead.Mutates())
	assert.False(t, Operation("reset").Valid())
}

func TestCounterResult_String(t *testing.T) {
	r := CounterResult{InstanceID: "0192f0c4-7d4e-7a1b-9c1e-3f6a1b2c3d4e", Name: "A", Value: -2}
	assert.Equal(t, "Counter '0192f0c4-7d4e-7a1b-9c1e-3f6a1b2c3d4e', name: 'A', count: -2", r.String())
}
