package kb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mivar/internal/script"
)

func newTestKB(t *testing.T) *KnowledgeBase {
	t.Helper()
	return New(script.NewGojaEngine())
}

func TestClass_Uniqueness(t *testing.T) {
	k := newTestKB(t)

	tri, err := k.NewClass("Triangle", "a triangle")
	require.NoError(t, err)

	t.Run("root class", func(t *testing.T) {
		_, err := k.NewClass("Triangle", "again")
		assert.ErrorIs(t, err, ErrNameAlreadyExists)
		assert.Len(t, k.Classes(), 1)
	})

	t.Run("child class", func(t *testing.T) {
		_, err := tri.NewClass("Sides", "")
		require.NoError(t, err)
		_, err = tri.NewClass("Sides", "")
		assert.ErrorIs(t, err, ErrNameAlreadyExists)
		assert.Len(t, tri.Classes(), 1)
	})

	t.Run("parameter", func(t *testing.T) {
		_, err := tri.NewParameter("kind", "")
		require.NoError(t, err)
		_, err = tri.NewParameter("kind", "")
		assert.ErrorIs(t, err, ErrNameAlreadyExists)
		assert.Len(t, tri.Parameters(), 1)
	})

	t.Run("class and parameter namespaces are independent", func(t *testing.T) {
		_, err := tri.NewParameter("Sides", "")
		assert.NoError(t, err)
	})
}

func TestClass_InvalidNames(t *testing.T) {
	k := newTestKB(t)
	c, err := k.NewClass("Root", "")
	require.NoError(t, err)

	for _, name := range []string{"", "  ", "a/b"} {
		_, err := k.NewClass(name, "")
		assert.ErrorIs(t, err, ErrInvalidName, "class %q", name)
		_, err = c.NewParameter(name, "")
		assert.ErrorIs(t, err, ErrInvalidName, "parameter %q", name)
	}
}

func TestParameter_FullNameAndDefault(t *testing.T) {
	k := newTestKB(t)
	tri, err := k.NewClass("Triangle", "")
	require.NoError(t, err)
	params, err := tri.NewClass("Parametres", "")
	require.NoError(t, err)

	s, err := params.NewParameter("S", "area", WithDefault(0))
	require.NoError(t, err)
	assert.Equal(t, "Triangle/Parametres/S", s.FullName())
	assert.Equal(t, "Triangle/Parametres", s.Class().FullName())
	assert.Same(t, tri, s.Class().Parent())

	def, ok := s.Default()
	require.True(t, ok)
	assert.Equal(t, float64(0), def)

	p, err := params.NewParameter("P", "")
	require.NoError(t, err)
	_, ok = p.Default()
	assert.False(t, ok)

	_, err = params.NewParameter("bad", "", WithDefault(func() {}))
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestKnowledgeBase_NewRelation(t *testing.T) {
	k := newTestKB(t)

	r, err := k.NewRelation("function half(x) { return x / 2 }", "half of x")
	require.NoError(t, err)
	assert.Equal(t, "half", r.Name())
	assert.Equal(t, 1, r.ArgCount())
	assert.Equal(t, "half of x", r.Description())
	assert.NotNil(t, r.Unit())

	t.Run("zero arguments", func(t *testing.T) {
		_, err := k.NewRelation("function f() { return 1 }", "")
		assert.ErrorIs(t, err, ErrBadCode)
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := k.NewRelation("function f(x) { return 1 }", "")
		require.NoError(t, err)
		_, err = k.NewRelation("function f(x, y) { return 2 }", "")
		assert.ErrorIs(t, err, ErrNameAlreadyExists)
		got, ok := k.Relation("f")
		require.True(t, ok)
		assert.Equal(t, 1, got.ArgCount())
	})

	t.Run("syntax error", func(t *testing.T) {
		_, err := k.NewRelation("function g(x { return x }", "")
		assert.ErrorIs(t, err, ErrBadCode)
		var codeErr *CodeError
		require.ErrorAs(t, err, &codeErr)
		assert.Equal(t, "function g(x { return x }", codeErr.Source)
	})

	t.Run("no declaration", func(t *testing.T) {
		_, err := k.NewRelation("var x = 1", "")
		assert.ErrorIs(t, err, ErrBadCode)
	})

	assert.Len(t, k.Relations(), 2)
}

func TestKnowledgeBase_NewRelationRunsTopLevel(t *testing.T) {
	k := New(script.NewGojaEngine(script.WithLoadTimeout(50 * time.Millisecond)))

	tests := []struct {
		name   string
		source string
	}{
		{"runtime error", "function bad(v) { return v }\nnoSuchThing.field = 1"},
		{"endless loop", "function spin(v) { return v }\nwhile (true) {}"},
		{"name rebound", "function f(x) { return x }\nf = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := k.NewRelation(tt.source, "")
			assert.ErrorIs(t, err, ErrBadCode)
			var codeErr *CodeError
			require.ErrorAs(t, err, &codeErr)
			assert.Equal(t, tt.source, codeErr.Source)
		})
	}
	assert.Empty(t, k.Relations())
}

type fixedParser struct {
	name string
	args int
}

func (p fixedParser) ParseSignature(string) (string, int, bool) {
	return p.name, p.args, p.name != ""
}

func TestKnowledgeBase_WithSignatureParser(t *testing.T) {
	k := New(script.NewGojaEngine(), WithSignatureParser(fixedParser{name: "custom", args: 2}))
	r, err := k.NewRelation("function custom(a) { return a }", "")
	require.NoError(t, err)
	assert.Equal(t, "custom", r.Name())
	assert.Equal(t, 2, r.ArgCount())
}

func TestKnowledgeBase_NewRule(t *testing.T) {
	k := newTestKB(t)
	c, err := k.NewClass("C", "")
	require.NoError(t, err)
	a, err := c.NewParameter("a", "")
	require.NoError(t, err)
	b, err := c.NewParameter("b", "")
	require.NoError(t, err)
	sum, err := k.NewRelation("function sum(x, y) { return x + y }", "")
	require.NoError(t, err)

	t.Run("arity mismatch", func(t *testing.T) {
		_, err := k.NewRule("r", "", sum, []*Parameter{a}, b)
		assert.ErrorIs(t, err, ErrArgCount)
		_, err = k.NewRule("r", "", sum, []*Parameter{a, a, a}, b)
		assert.ErrorIs(t, err, ErrArgCount)
		assert.Empty(t, k.Rules())
	})

	t.Run("foreign relation", func(t *testing.T) {
		other := newTestKB(t)
		foreign, err := other.NewRelation("function sum(x, y) { return x + y }", "")
		require.NoError(t, err)
		_, err = k.NewRule("r", "", foreign, []*Parameter{a, a}, b)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ok", func(t *testing.T) {
		r, err := k.NewRule("double", "", sum, []*Parameter{a, a}, b)
		require.NoError(t, err)
		assert.Equal(t, []*Parameter{a, a}, r.Args())
		assert.Same(t, b, r.Target())
		assert.Len(t, k.Rules(), 1)
	})
}

func TestKnowledgeBase_PathLookup(t *testing.T) {
	k := newTestKB(t)
	tri, err := k.NewClass("Triangle", "")
	require.NoError(t, err)
	sides, err := tri.NewClass("Sides", "")
	require.NoError(t, err)
	a, err := sides.NewParameter("a", "")
	require.NoError(t, err)

	c, err := k.Class("Triangle/Sides")
	require.NoError(t, err)
	assert.Same(t, sides, c)

	p, err := k.Parameter("Triangle/Sides/a")
	require.NoError(t, err)
	assert.Same(t, a, p)

	for _, path := range []string{"", "a", "Triangle/a", "Triangle/Sides/b", "Square/Sides/a"} {
		_, err := k.Parameter(path)
		assert.ErrorIs(t, err, ErrNotFound, path)
	}
	_, err = k.Class("Triangle/Angles")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []*Parameter{a}, k.Parameters())
}
