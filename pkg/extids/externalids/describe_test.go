package externalids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikepea/extids/pkg/extids/models"
	"github.com/mikepea/extids/pkg/extids/records"
)

func TestDisplayLabelWithPrefix(t *testing.T) {
	f := setup(t)
	row := f.link(t, "product.product", 1, f.shopify, "Product/456")

	view, err := f.svc.DescribeOne(f.ctx, *row)
	require.NoError(t, err)
	assert.Equal(t, "Shopify: gid://shopify/Product/456 (Widget)", view.DisplayLabel)
	assert.Contains(t, view.DisplayLabel, "gid://shopify/Product/456")
	assert.Contains(t, view.DisplayLabel, "Widget")
	assert.Equal(t, records.Live, view.RecordStatus)
}

func TestDescribeDeletedRecord(t *testing.T) {
	f := setup(t)
	row := f.link(t, "res.partner", 2, f.discord, "42")
	f.partners.Remove(2)

	view, err := f.svc.DescribeOne(f.ctx, *row)
	require.NoError(t, err)
	assert.Equal(t, "[Deleted res.partner]", view.RecordLabel)
	assert.Equal(t, records.Deleted, view.RecordStatus)
	assert.Nil(t, view.OwningCompany)
	assert.Equal(t, "Discord: 42 ([Deleted res.partner])", view.DisplayLabel)
}

func TestDescribeInvalidRecordType(t *testing.T) {
	f := setup(t)
	stray := models.ExternalID{RecordType: "x.gone", RecordID: 7, SystemID: f.discord.ID, Identifier: "7", Active: true}
	require.NoError(t, f.db.Create(&stray).Error)

	rows, err := f.svc.List(f.ctx, Filter{RecordType: "x.gone"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	views, err := f.svc.Describe(f.ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, "[Invalid x.gone]", views[0].RecordLabel)
	assert.Equal(t, records.Invalid, views[0].RecordStatus)
}

func TestDescribeLooksUpEachTypeOnce(t *testing.T) {
	f := setup(t)
	f.link(t, "res.partner", 1, f.discord, "1")
	f.link(t, "res.partner", 2, f.discord, "2")
	f.link(t, "res.partner", 3, f.discord, "3")
	before := f.partners.Calls()

	rows, err := f.svc.List(f.ctx, Filter{})
	require.NoError(t, err)
	views, err := f.svc.Describe(f.ctx, rows)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, before+1, f.partners.Calls())
	require.NotNil(t, views[0].OwningCompany)
	assert.Equal(t, uint(1), *views[0].OwningCompany)
	assert.Nil(t, views[2].OwningCompany)
}

func TestDisplayLabelFallsBack(t *testing.T) {
	assert.Equal(t, "abc", DisplayLabel(nil, "abc", "Acme"))
	assert.Equal(t, "", DisplayLabel(&models.ExternalSystem{ID: 1, Name: "Discord"}, "", "Acme"))
	assert.Equal(t, "Discord: 1", DisplayLabel(&models.ExternalSystem{ID: 1, Name: "Discord"}, "1", ""))
}
