package xenonpath_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xenon/xenonpath"
)

func TestNewAndString(t *testing.T) {
	tests := map[string]struct {
		raw  string
		want string
	}{
		"absolute":        {raw: "/a/b/c", want: "/a/b/c"},
		"relative":        {raw: "a/b", want: "a/b"},
		"trailing slash":  {raw: "/a/b/", want: "/a/b"},
		"doubled slashes": {raw: "/a//b", want: "/a/b"},
		"root":            {raw: "/", want: "/"},
		"empty":           {raw: "", want: "."},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			p := xenonpath.New("/", test.raw)
			assert.Equal(t, test.want, p.String())
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]struct {
		raw  string
		want string
	}{
		"dot":             {raw: "/a/./b", want: "/a/b"},
		"dotdot collapse": {raw: "/a/b/../c", want: "/a/c"},
		"leading dotdot relative": {raw: "../a", want: "../a"},
		"absolute dotdot above root does not escape": {raw: "/../a", want: "/a"},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			p := xenonpath.New("/", test.raw).Normalize()
			assert.Equal(t, test.want, p.String())
		})
	}
}

func TestResolve(t *testing.T) {
	base := xenonpath.New("/", "/a/b")
	rel := xenonpath.New("/", "c/d")
	got := base.Resolve(rel)
	assert.Equal(t, "/a/b/c/d", got.String())

	abs := xenonpath.New("/", "/x/y")
	got = base.Resolve(abs)
	assert.Equal(t, "/x/y", got.String())
}

func TestParentAndFileName(t *testing.T) {
	p := xenonpath.New("/", "/a/b/c.txt")
	assert.Equal(t, "c.txt", p.FileName())
	assert.Equal(t, "/a/b", p.Parent().String())

	root := xenonpath.New("/", "/a")
	assert.Equal(t, "/", root.Parent().String())
}

func TestRelativize(t *testing.T) {
	a := xenonpath.New("/", "/root/sub")
	b := xenonpath.New("/", "/root/sub/dir/file.txt")

	rel, ok := a.Relativize(b)
	require.True(t, ok)
	assert.Equal(t, "dir/file.txt", rel.String())

	back, ok := b.Relativize(a)
	require.True(t, ok)
	assert.Equal(t, "..", back.String())

	_, ok = a.Relativize(xenonpath.New(":", "x"))
	assert.False(t, ok, "mismatched separators should fail")
}

func TestEqual(t *testing.T) {
	a := xenonpath.New("/", "/a/b")
	b := xenonpath.New("/", "/a/b/")
	assert.True(t, a.Equal(b))

	c := xenonpath.New("/", "/a/b/c")
	assert.False(t, a.Equal(c))
}

func TestJoin(t *testing.T) {
	p := xenonpath.New("/", "/a").Join("b", "c")
	assert.Equal(t, "/a/b/c", p.String())
}
