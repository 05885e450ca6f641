package leads

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

func TestCanonicalizeStripsTrackingParams(t *testing.T) {
	got, dom, err := CanonicalizeURL("https://example.com/products?utm_source=google&size=42#top")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/products?size=42#top", got)
	assert.Equal(t, "example.com", dom)
}

func TestCanonicalizeStripsExactParamSet(t *testing.T) {
	raw := "https://example.com/?utm_source=a&utm_medium=b&utm_campaign=c&utm_term=d&utm_content=e&gclid=f&fbclid=g&msclkid=h&keep=1&utm_custom=stays"
	got, _, err := CanonicalizeURL(raw)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/?keep=1&utm_custom=stays", got)
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"https://Example.COM/Path?b=2&a=1&gclid=xyz#frag",
		"https://www.example.com/products?utm_source=google&size=42#top",
		"http://example.com:8080/a?fbclid=1",
		"https://example.com/plain",
	}
	for _, raw := range inputs {
		once, dom1, err := CanonicalizeURL(raw)
		require.NoError(t, err, raw)
		twice, dom2, err := CanonicalizeURL(once)
		require.NoError(t, err, once)
		assert.Equal(t, once, twice, "canon(canon(u)) must equal canon(u) for %s", raw)
		assert.Equal(t, dom1, dom2)
	}
}

func TestCanonicalizeLowercasesHostAndStripsWWW(t *testing.T) {
	got, dom, err := CanonicalizeURL("https://WWW.Example.Com/About")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/About", got)
	assert.Equal(t, "example.com", dom)
}

func TestCanonicalizePreservesPathAndFragment(t *testing.T) {
	got, _, err := CanonicalizeURL("https://example.com/a/b/c?utm_medium=email#section-2")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a/b/c#section-2", got)
}

func TestCanonicalizeRejectsBadInput(t *testing.T) {
	for _, raw := range []string{"", "   ", "ftp://example.com", "javascript:alert(1)", "/relative/only"} {
		_, _, err := CanonicalizeURL(raw)
		require.Error(t, err, raw)
		assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err), raw)
	}
}
