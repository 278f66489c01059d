package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextRendererRender(t *testing.T) {
	r := NewTextRenderer()

	t.Run("substitutes placeholders", func(t *testing.T) {
		out, err := r.Render(
			"Certificate {{number}} for {{instrument}}",
			map[string]string{"number": "CAL-2026-00001", "instrument": "scale-7"},
		)
		require.NoError(t, err)
		assert.Equal(t, "Certificate CAL-2026-00001 for scale-7", string(out))
	})

	t.Run("tolerates whitespace inside delimiters", func(t *testing.T) {
		out, err := r.Render("{{ number }}", map[string]string{"number": "X"})
		require.NoError(t, err)
		assert.Equal(t, "X", string(out))
	})

	t.Run("unresolved tokens stay verbatim", func(t *testing.T) {
		out, err := r.Render("{{number}} by {{technician}}", map[string]string{"number": "X"})
		require.NoError(t, err)
		assert.Equal(t, "X by {{technician}}", string(out))
	})

	t.Run("repeated placeholder resolves everywhere", func(t *testing.T) {
		out, err := r.Render("{{n}}-{{n}}", map[string]string{"n": "7"})
		require.NoError(t, err)
		assert.Equal(t, "7-7", string(out))
	})

	t.Run("unterminated placeholder is malformed", func(t *testing.T) {
		_, err := r.Render("Report {{number", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("body without placeholders passes through", func(t *testing.T) {
		out, err := r.Render("static body", map[string]string{"unused": "v"})
		require.NoError(t, err)
		assert.Equal(t, "static body", string(out))
	})
}

func TestFields(t *testing.T) {
	names := Fields("{{a}} {{b}} {{a}} {{ c }}")
	assert.Equal(t, []string{"a", "b", "c"}, names)

	assert.Empty(t, Fields("no placeholders here"))
}

func TestMissingFields(t *testing.T) {
	missing := MissingFields("{{a}} {{b}} {{c}}", map[string]string{"b": "x"})
	assert.Equal(t, []string{"a", "c"}, missing)

	assert.Empty(t, MissingFields("{{a}}", map[string]string{"a": "x"}))
}
