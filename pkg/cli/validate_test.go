package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/hashserver/pkg/config"
	"github.com/getmockd/hashserver/pkg/page"
)

func TestRunValidate(t *testing.T) {
	path := writePages(t, `
pages:
  /: home
  /old:
    redirect: /
`)

	var out bytes.Buffer
	require.NoError(t, runValidate(&out, []string{path}))
	assert.Contains(t, out.String(), "content   / ")
	assert.Contains(t, out.String(), "redirect  /old ")
	assert.Contains(t, out.String(), "ok: 2 pages")
}

func TestRunValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"bad header", "pages:\n  /a:\n    content: x\n    header: nocolon", page.ErrConfiguration},
		{"bad status", "pages:\n  /a:\n    content: x\n    status: 1000", page.ErrConfiguration},
		{"bad charset", "pages:\n  /a:\n    content: x\n    charset: nope", config.ErrUnknownCharset},
		{"bad auth", "pages:\n  /a:\n    content: x\n    auth: nocolon", page.ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := runValidate(&out, []string{writePages(t, tt.content)})
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, out.String(), "invalid:")
		})
	}
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	require.NoError(t, versionCmd.RunE(versionCmd, nil))
	assert.Contains(t, out.String(), "hashserver ")
}
