package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fastprodman/gumball/internal/services/gumball"
)

func TestParseMachineParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    func(p *gumball.Params)
		wantErr error
	}{
		{
			name: "empty_file_is_defaults",
			raw:  "",
			want: func(*gumball.Params) {},
		},
		{
			name: "partial_override",
			raw: `
price: 250
window:
  max_blocks: 64
`,
			want: func(p *gumball.Params) {
				p.Price = 250
				p.Window.MaxBlocks = 64
			},
		},
		{
			name: "tiers_replace_defaults",
			raw: `
tiers:
  - {from: 50, to: 60}
  - {from: 1000, to: 1500}
  - {from: 5000, to: 9000}
`,
			want: func(p *gumball.Params) {
				p.Tiers = gumball.Schedule{{From: 50, To: 60}, {From: 1000, To: 1500}, {From: 5000, To: 9000}}
			},
		},
		{
			name:    "zero_buffer_rejected",
			raw:     "window: {buffer_blocks: 0}",
			wantErr: gumball.ErrInvalidParams,
		},
		{
			name:    "inverted_thresholds_rejected",
			raw:     "thresholds: {activate_at: 2, deactivate_at: 5}",
			wantErr: gumball.ErrInvalidParams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseMachineParams([]byte(tt.raw))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)

			want := gumball.DefaultParams()
			tt.want(&want)
			require.Equal(t, want, got)
		})
	}
}

func TestParseMachineParams_UnknownKey(t *testing.T) {
	t.Parallel()

	_, err := ParseMachineParams([]byte("prise: 100"))
	require.Error(t, err)
}

func TestLoadMachineParams(t *testing.T) {
	t.Parallel()

	p, err := LoadMachineParams("")
	require.NoError(t, err)
	require.Equal(t, gumball.DefaultParams(), p)

	path := filepath.Join(t.TempDir(), "machine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("custodian: vault\n"), 0o600))

	p, err = LoadMachineParams(path)
	require.NoError(t, err)
	require.Equal(t, gumball.Account("vault"), p.Custodian)

	_, err = LoadMachineParams(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
