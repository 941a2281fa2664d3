package pages

import (
	"testing"

	"github.com/smallbiznis/periodpay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSuccess(t *testing.T) {
	r := NewRenderer(config.Config{ClientReturnURL: "http://localhost:3001/account"})

	html, err := r.Render(KindSuccess)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<title>付款成功</title>")
	assert.Contains(t, string(html), `href="http://localhost:3001/account"`)
}

func TestRenderFailedIsDefault(t *testing.T) {
	r := NewRenderer(config.Config{ClientReturnURL: "http://localhost:3001"})

	html, err := r.Render(Kind("unknown"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "付款失敗")
	assert.Contains(t, string(html), `class="failed"`)
}

func TestRenderEscapesReturnURL(t *testing.T) {
	r := NewRenderer(config.Config{ClientReturnURL: `javascript:alert(1)`})

	html, err := r.Render(KindSuccess)
	require.NoError(t, err)
	assert.NotContains(t, string(html), "javascript:alert")
}
