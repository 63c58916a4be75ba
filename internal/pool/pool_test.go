package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kingrea/histostack/internal/wrp"
)

func group(name string, members ...*wrp.Wrapper) *wrp.Wrapper {
	return &wrp.Wrapper{Kind: wrp.KindGroup, Name: name, Analyzer: "sel", Renderers: members}
}

func TestStoreSameWrapperTwiceIsIdempotent(t *testing.T) {
	p := New()
	a := &wrp.Wrapper{Name: "a"}
	w := group("pt", a)
	key := Key("plots", w)
	require.Equal(t, "plots/sel/pt", key)

	require.NoError(t, p.Store(key, w))
	require.NoError(t, p.Store(key, w))
	require.NoError(t, p.Store(key, group("pt", a)))
	require.Equal(t, 1, p.Len())

	got, ok := p.Lookup(key)
	require.True(t, ok)
	require.Same(t, w, got)
}

func TestStrictPolicyRejectsDifferentWrapper(t *testing.T) {
	p := New()
	require.NoError(t, p.Store("k", group("pt", &wrp.Wrapper{Name: "a"})))
	err := p.Store("k", group("pt", &wrp.Wrapper{Name: "b"}))
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestOverwritePolicyReplaces(t *testing.T) {
	p := New(WithPolicy(PolicyOverwrite))
	first := group("pt", &wrp.Wrapper{Name: "a"})
	second := group("pt", &wrp.Wrapper{Name: "b"})
	require.NoError(t, p.Store("k", first))
	require.NoError(t, p.Store("k", second))
	got, _ := p.Lookup("k")
	require.Same(t, second, got)
}

func TestClearKeysAndEmptyKey(t *testing.T) {
	p := New()
	require.Error(t, p.Store("", group("x")))
	require.NoError(t, p.Store("b", group("b")))
	require.NoError(t, p.Store("a", group("a")))
	require.Equal(t, []string{"a", "b"}, p.Keys())
	require.Equal(t, 2, p.Clear())
	require.Zero(t, p.Len())
	_, ok := p.Lookup("a")
	require.False(t, ok)
}

func TestConcurrentStores(t *testing.T) {
	p := New(WithPolicy(PolicyOverwrite))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = p.Store(string(rune('a'+i)), group("x"))
		}(i)
	}
	wg.Wait()
	require.Equal(t, 16, p.Len())
}

func TestParsePolicy(t *testing.T) {
	got, err := ParsePolicy("")
	require.NoError(t, err)
	require.Equal(t, PolicyStrict, got)
	got, err = ParsePolicy("overwrite")
	require.NoError(t, err)
	require.Equal(t, PolicyOverwrite, got)
	_, err = ParsePolicy("merge")
	require.Error(t, err)
}
