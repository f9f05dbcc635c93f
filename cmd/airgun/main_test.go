package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SatelliteQE/airgun-sub001/pkg/navigation"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    navigation.Params
		wantErr bool
	}{
		{name: "none", want: navigation.Params{}},
		{
			name:  "several",
			pairs: []string{"entity_name=web01", "org=Default Organization"},
			want:  navigation.Params{"entity_name": "web01", "org": "Default Organization"},
		},
		{name: "value with equals", pairs: []string{"search=name = foo"}, want: navigation.Params{"search": "name = foo"}},
		{name: "empty value", pairs: []string{"entity_name="}, want: navigation.Params{"entity_name": ""}},
		{name: "missing separator", pairs: []string{"entity_name"}, wantErr: true},
		{name: "missing key", pairs: []string{"=web01"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.pairs)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestStepsCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"steps"})

	require.NoError(t, root.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.True(t, strings.HasPrefix(lines[0], "ENTITY"))
	require.Contains(t, out.String(), "Session.Dashboard > Host.All > Host.New")
}

func TestNavigateCommandArgs(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"navigate", "Host"})

	require.Error(t, root.Execute())
}
