// Package kbtest provides knowledge bases shared by tests.
package kbtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mivar/internal/kb"
	"mivar/internal/script"
)

const (
	SideA     = "Triangle/Sides/a"
	SideB     = "Triangle/Sides/b"
	SideC     = "Triangle/Sides/c"
	Perimeter = "Triangle/Parametres/P"
	HalfPer   = "Triangle/Parametres/p"
	Area      = "Triangle/Parametres/S"
)

// Triangle builds Triangle/Sides{a,b,c} and Triangle/Parametres{P,p,S} with
// the rules three_sum(a,b,c)->P, half(P)->p and heron(a,b,c,p)->S.
func Triangle(t testing.TB) *kb.KnowledgeBase {
	t.Helper()
	k := kb.New(script.NewGojaEngine())

	tri, err := k.NewClass("Triangle", "a triangle")
	require.NoError(t, err)
	sides, err := tri.NewClass("Sides", "side lengths")
	require.NoError(t, err)
	params, err := tri.NewClass("Parametres", "derived measures")
	require.NoError(t, err)

	a := newParam(t, sides, "a")
	b := newParam(t, sides, "b")
	c := newParam(t, sides, "c")
	P := newParam(t, params, "P")
	p := newParam(t, params, "p")
	S := newParam(t, params, "S")

	threeSum, err := k.NewRelation("function three_sum(a, b, c) { return a + b + c }", "sum of three values")
	require.NoError(t, err)
	half, err := k.NewRelation("function half(x) { return x / 2 }", "half of a value")
	require.NoError(t, err)
	heron, err := k.NewRelation(
		"function heron(a, b, c, p) { return Math.sqrt(p * (p - a) * (p - b) * (p - c)) }",
		"area by Heron's formula")
	require.NoError(t, err)

	_, err = k.NewRule("perimeter", "", threeSum, []*kb.Parameter{a, b, c}, P)
	require.NoError(t, err)
	_, err = k.NewRule("semi-perimeter", "", half, []*kb.Parameter{P}, p)
	require.NoError(t, err)
	_, err = k.NewRule("area", "", heron, []*kb.Parameter{a, b, c, p}, S)
	require.NoError(t, err)

	return k
}

// Param resolves path or fails the test.
func Param(t testing.TB, k *kb.KnowledgeBase, path string) *kb.Parameter {
	t.Helper()
	p, err := k.Parameter(path)
	require.NoError(t, err)
	return p
}

// Known builds a known value for path.
func Known(t testing.TB, k *kb.KnowledgeBase, path string, v any) kb.Known {
	t.Helper()
	return kb.Known{Param: Param(t, k, path), Value: v}
}

func newParam(t testing.TB, c *kb.Class, name string) *kb.Parameter {
	t.Helper()
	p, err := c.NewParameter(name, "")
	require.NoError(t, err)
	return p
}
