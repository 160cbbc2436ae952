package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHTML_RendersFormatting(t *testing.T) {
	r := NewRenderer()

	out, err := r.ToHTML("Merhaba **dünya**")
	require.NoError(t, err)
	assert.Equal(t, "<p>Merhaba <strong>dünya</strong></p>", out)

	out, err = r.ToHTML("- saç\n- makyaj")
	require.NoError(t, err)
	assert.Contains(t, out, "<li>saç</li>")
	assert.Contains(t, out, "<li>makyaj</li>")
}

func TestToHTML_HardWrapsChatLines(t *testing.T) {
	r := NewRenderer()

	out, err := r.ToHTML("Randevunuz oluşturuldu.\nNumaranız: RND-2026-0042")
	require.NoError(t, err)
	assert.Contains(t, out, "<br>")
}

func TestToHTML_DropsRawHTML(t *testing.T) {
	r := NewRenderer()

	out, err := r.ToHTML("merhaba <script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}

func TestToHTML_EmptyInput(t *testing.T) {
	r := NewRenderer()

	out, err := r.ToHTML("   ")
	require.NoError(t, err)
	assert.Empty(t, out)
}
