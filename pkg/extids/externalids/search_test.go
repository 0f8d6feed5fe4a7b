package externalids

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikepea/extids/pkg/extids/errs"
	"github.com/mikepea/extids/pkg/extids/models"
	"github.com/mikepea/extids/pkg/extids/systems"
)

func identifiers(rows []models.ExternalID) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Identifier
	}
	return out
}

func TestSearchSystemAndIdentifier(t *testing.T) {
	f := setup(t)
	f.link(t, "res.partner", 1, f.discord, "123")
	f.link(t, "res.partner", 2, f.discord, "456")
	f.link(t, "res.partner", 1, f.shopify, "123")

	rows, err := f.svc.SearchByText(f.ctx, "disc:123", OpContains, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "discord", rows[0].System.Code)
	assert.Equal(t, "123", rows[0].Identifier)

	rows, err = f.svc.SearchByText(f.ctx, "DISCORD:", OpContains, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"123", "456"}, identifiers(rows))
}

func TestSearchIdentifierOnly(t *testing.T) {
	f := setup(t)
	f.link(t, "res.partner", 1, f.discord, "123")
	f.link(t, "res.partner", 2, f.discord, "4123")
	f.link(t, "product.product", 1, f.shopify, "Product/123")

	rows, err := f.svc.SearchByText(f.ctx, "123", OpContains, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = f.svc.SearchByText(f.ctx, "123", OpEquals, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"123"}, identifiers(rows))

	rows, err = f.svc.SearchByText(f.ctx, "product/", OpStartsWith, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Product/123"}, identifiers(rows))

	rows, err = f.svc.SearchByText(f.ctx, "123", OpContains, 2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSearchSkipsArchived(t *testing.T) {
	f := setup(t)
	row := f.link(t, "res.partner", 1, f.discord, "123")
	f.link(t, "res.partner", 1, f.shopify, "123")
	_, err := f.svc.Archive(f.ctx, row.ID)
	require.NoError(t, err)

	rows, err := f.svc.SearchByText(f.ctx, "123", OpEquals, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "shopify", rows[0].System.Code)

	_, err = f.systems.Archive(f.ctx, f.shopify.ID)
	require.NoError(t, err)
	rows, err = f.svc.SearchByText(f.ctx, "shop:123", OpEquals, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSearchEscapesWildcards(t *testing.T) {
	f := setup(t)
	other, err := f.systems.Create(f.ctx, systems.Input{Code: "legacy", Name: "Legacy"})
	require.NoError(t, err)
	f.link(t, "res.partner", 1, other, "a_b")
	f.link(t, "res.partner", 2, other, "axb")

	rows, err := f.svc.SearchByText(f.ctx, "a_b", OpContains, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a_b"}, identifiers(rows))
}

func TestSearchRejectsUnknownOperator(t *testing.T) {
	f := setup(t)
	_, err := f.svc.SearchByText(f.ctx, "x", "like", 0)
	var verr *errs.ValidationError
	assert.True(t, errors.As(err, &verr))
}
