package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/rolo/internal/domain"
)

func TestReorderMovesFlagsFirst(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"c1", "-name", "Ann"}, []string{"-name", "Ann", "c1"}},
		{[]string{"-name=Ann", "c1"}, []string{"-name=Ann", "c1"}},
		{[]string{"cards.vcf", "-remote"}, []string{"-remote", "cards.vcf"}},
		{[]string{"-concurrency", "8", "cards.vcf"}, []string{"-concurrency", "8", "cards.vcf"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, reorder(tt.in))
	}
}

func TestParseFlagsChecksPositionalCount(t *testing.T) {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	name := fs.String("name", "", "")

	pos, err := parseFlags(fs, reorder([]string{"c1", "-name", "Ann"}), "<id>")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, pos)
	assert.Equal(t, "Ann", *name)

	fs = flag.NewFlagSet("rm", flag.ContinueOnError)
	_, err = parseFlags(fs, nil, "<id>")
	assert.Error(t, err)
}

func TestErrorHint(t *testing.T) {
	assert.Contains(t, errorHint(domain.ErrAuthExpired), "rolo login")
	assert.Contains(t, errorHint(domain.ErrNetwork), "server.url")
	assert.Contains(t, errorHint(errNotLoggedIn), "rolo login")
	assert.Empty(t, errorHint(domain.ErrNotFound))
}
