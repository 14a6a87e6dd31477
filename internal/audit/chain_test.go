package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainedPipeline(t *testing.T) (*Pipeline, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit", "chain.jsonl")
	sink, err := OpenChain(path)
	require.NoError(t, err)
	return NewPipeline(Options{}, sink), path
}

func writeInvocations(p *Pipeline, n int) {
	for i := range n {
		inv := p.Before(context.Background(), "execute_sql", "SELECT 1")
		status := StatusSuccess
		if i%2 == 1 {
			status = StatusBlocked
		}
		inv.After("result", status)
	}
}

func TestChainVerifies(t *testing.T) {
	p, path := chainedPipeline(t)
	writeInvocations(p, 3)
	require.NoError(t, p.Close())

	res := Verify(path)
	assert.True(t, res.Valid, res.Error)
	assert.Equal(t, 6, res.Lines)
}

func TestChainResumesAcrossOpens(t *testing.T) {
	p, path := chainedPipeline(t)
	writeInvocations(p, 2)
	require.NoError(t, p.Close())

	sink, err := OpenChain(path)
	require.NoError(t, err)
	p2 := NewPipeline(Options{}, sink)
	writeInvocations(p2, 2)
	require.NoError(t, p2.Close())

	res := Verify(path)
	assert.True(t, res.Valid, res.Error)
	assert.Equal(t, 8, res.Lines)
}

func TestChainDetectsTampering(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(lines []string) []string
		wantLine int
	}{
		{
			name: "edited status",
			mutate: func(lines []string) []string {
				lines[3] = strings.Replace(lines[3], `"status":"blocked"`, `"status":"success"`, 1)
				return lines
			},
			wantLine: 5,
		},
		{
			name: "deleted line",
			mutate: func(lines []string) []string {
				return append(lines[:2], lines[3:]...)
			},
			wantLine: 3,
		},
		{
			name: "swapped lines",
			mutate: func(lines []string) []string {
				lines[0], lines[1] = lines[1], lines[0]
				return lines
			},
			wantLine: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, path := chainedPipeline(t)
			writeInvocations(p, 3)
			require.NoError(t, p.Close())

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			lines := tt.mutate(strings.Split(strings.TrimSpace(string(data)), "\n"))
			require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600))

			res := Verify(path)
			assert.False(t, res.Valid)
			assert.Equal(t, tt.wantLine, res.ErrorLine, res.Error)
		})
	}
}

func TestVerifyMissingFile(t *testing.T) {
	res := Verify(filepath.Join(t.TempDir(), "nope.jsonl"))
	assert.False(t, res.Valid)
	assert.Contains(t, res.Error, "open")
}
