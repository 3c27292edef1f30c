package menustatus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/webedge/internal/config"
)

func TestStatusOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		signals Signals
		want    StatusMap
	}{
		{
			name:    "no signals",
			signals: Signals{},
			want:    StatusMap{},
		},
		{
			name:    "user locked",
			signals: Signals{UserLocked: true},
			want:    StatusMap{PoolsKey: StatusLockEnd},
		},
		{
			name:    "user unlocked",
			signals: Signals{UserLocked: false, CurrentBlock: 100},
			want:    StatusMap{},
		},
		{
			name: "ifo live without end block",
			signals: Signals{
				CurrentBlock: 100,
				IFO:          config.IFOConfig{Status: "live"},
			},
			want: StatusMap{IFOKey: "live"},
		},
		{
			name: "ifo live before end block",
			signals: Signals{
				CurrentBlock: 100,
				IFO:          config.IFOConfig{Status: "live", EndBlock: 100},
			},
			want: StatusMap{IFOKey: "live"},
		},
		{
			name: "ifo ended",
			signals: Signals{
				CurrentBlock: 101,
				IFO:          config.IFOConfig{Status: "live", EndBlock: 100},
			},
			want: StatusMap{},
		},
		{
			name: "ifo without current block",
			signals: Signals{
				IFO: config.IFOConfig{Status: "soon"},
			},
			want: StatusMap{},
		},
		{
			name: "ifo flag off",
			signals: Signals{
				CurrentBlock: 100,
				IFO:          config.IFOConfig{EndBlock: 200},
			},
			want: StatusMap{},
		},
		{
			name: "both conditions",
			signals: Signals{
				UserLocked:   true,
				CurrentBlock: 5,
				IFO:          config.IFOConfig{Status: "coming_soon"},
			},
			want: StatusMap{PoolsKey: StatusLockEnd, IFOKey: "coming_soon"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := StatusOf(tt.signals)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusOf_Sparse(t *testing.T) {
	t.Parallel()

	got := StatusOf(Signals{UserLocked: true})
	assert.Len(t, got, 1)

	_, ok := got[IFOKey]
	assert.False(t, ok)
}
