package urltemplates

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikepea/extids/pkg/extids/errs"
)

func TestRenderStoreURL(t *testing.T) {
	values := Values{
		Identifier: "gid://shopify/Product/456",
		Model:      "product.product",
		Name:       "Widget",
		Code:       "shopify",
		Base:       "https://x.com",
	}
	got, err := Render("{base}/admin/products/{id}", values.Map())
	require.NoError(t, err)
	assert.Equal(t, "https://x.com/admin/products/456", got)

	got, err = Render("{base}/search?q={gid}&m={model}&n={name}&c={code}", values.Map())
	require.NoError(t, err)
	assert.Equal(t, "https://x.com/search?q=gid://shopify/Product/456&m=product.product&n=Widget&c=shopify", got)
}

func TestValidateRejectsUnknownToken(t *testing.T) {
	err := Validate("https://example.com/{foo}")
	var terr *errs.TemplateError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "foo", terr.Token)
	assert.Contains(t, err.Error(), "foo")
	assert.Equal(t, Allowed, terr.Allowed)
}

func TestValidateAcceptsAllowedTokens(t *testing.T) {
	assert.NoError(t, Validate("{base}/{id}/{gid}/{model}/{name}/{code}"))
	assert.NoError(t, Validate("https://static.example.com/no-tokens"))
	assert.NoError(t, Validate(""))
}

func TestParseMalformed(t *testing.T) {
	for _, source := range []string{"{base", "base}", "{}", "{ id }", "{id:>5}", "{a{b}"} {
		_, err := Parse(source)
		var terr *errs.TemplateError
		assert.True(t, errors.As(err, &terr), "expected TemplateError for %q", source)
	}
}

func TestEscapedBraces(t *testing.T) {
	got, err := Render("{{literal}} {id} }}", map[string]string{"id": "7"})
	require.NoError(t, err)
	assert.Equal(t, "{literal} 7 }", got)
}

func TestTokens(t *testing.T) {
	tmpl, err := Parse("{base}/{id}/{base}")
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "id"}, tmpl.Tokens())
}

func TestRenderMissingValue(t *testing.T) {
	_, err := Render("{id}/{name}", map[string]string{"id": "1"})
	var terr *errs.TemplateError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "name", terr.Token)
}

func TestNumericID(t *testing.T) {
	tests := map[string]string{
		"gid://shopify/Product/456": "456",
		"123456789":                 "123456789",
		"Product/456/variants":      "Product/456/variants",
		"abc/12x":                   "abc/12x",
		"":                          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NumericID(in), in)
	}
}

func TestSanitizeCode(t *testing.T) {
	tests := map[string]string{
		"Store":             "store",
		"Admin Panel":       "admin_panel",
		"  --Back-Office--": "back_office",
		"Café Crème":        "cafe_creme",
		"a!b@c#":            "abc",
		"under_score":       "under_score",
		"!!!":               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeCode(in), in)
	}
}
