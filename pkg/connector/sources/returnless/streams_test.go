package returnless

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-returnless/pkg/connector/rest"
	"github.com/ajitpratap0/tap-returnless/pkg/models"
)

func TestDefinitionsCatalogOrder(t *testing.T) {
	catalog, err := rest.NewCatalog(Definitions())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"attachments", "categories", "countries", "depreciations", "forms",
		"form_return_reasons", "form_shipping_methods", "return_reasons",
		"request_statuses", "return_statuses", "request_orders", "return_orders",
		"return_addresses", "sales_orders", "shipments", "tags", "giftcards",
		"products", "refunds", "notes",
	}, catalog.Names())
	assert.Len(t, catalog.TopLevel(), 18)
}

func TestDefinitionsReplicationKeys(t *testing.T) {
	byUpdatedAt := map[string]bool{
		"depreciations":  true,
		"request_orders": true,
		"return_orders":  true,
		"shipments":      true,
	}
	for _, def := range Definitions() {
		t.Run(def.Name, func(t *testing.T) {
			require.NoError(t, def.Validate())
			assert.Equal(t, []string{"id"}, def.PrimaryKeys)
			assert.Equal(t, rest.DefaultRecordsPath, def.RecordsPath)
			if byUpdatedAt[def.Name] {
				assert.Equal(t, "updated_at", def.ReplicationKey)
			} else {
				assert.Equal(t, "id", def.ReplicationKey)
			}
		})
	}
}

func TestDefinitionsIncludes(t *testing.T) {
	catalog, err := rest.NewCatalog(Definitions())
	require.NoError(t, err)

	tests := map[string]string{
		"forms":          "locale,locales",
		"request_orders": "customer,form,customer_address,return_question_answers,notes,return_order_items",
		"return_orders":  "customer,form,customer_address,return_question_answers,notes,shipments",
		"shipments":      "customer_address,return_address",
		"tags":           "",
	}
	for name, include := range tests {
		def, ok := catalog.Stream(name)
		require.True(t, ok, name)
		assert.Equal(t, include, def.QueryParams(nil, nil).Get("include"), name)
	}
}

func TestDefinitionsFormChildren(t *testing.T) {
	catalog, err := rest.NewCatalog(Definitions())
	require.NoError(t, err)

	children := catalog.Children("forms")
	require.Len(t, children, 2)
	assert.Equal(t, "form_return_reasons", children[0].Name)
	assert.Equal(t, "form_shipping_methods", children[1].Name)
	for _, c := range children {
		assert.True(t, c.IgnoreParentReplicationKey)
		assert.True(t, tracksBookmark(c))
	}

	forms, _ := catalog.Stream("forms")
	rec := models.NewRecord()
	rec.Set("id", "f-1")
	rec.Set("name", "Default")
	sctx, err := forms.ChildContext(rec, nil)
	require.NoError(t, err)
	assert.Equal(t, rest.Context{"form_id": "f-1"}, sctx)

	path, err := rest.ResolvePath(children[0].Path, sctx)
	require.NoError(t, err)
	assert.Equal(t, "/forms/f-1/return-reasons", path)
}

func TestTracksBookmark(t *testing.T) {
	assert.True(t, tracksBookmark(&rest.StreamDefinition{Name: "tags", ReplicationKey: "id"}))
	assert.False(t, tracksBookmark(&rest.StreamDefinition{Name: "tags"}))
	assert.False(t, tracksBookmark(&rest.StreamDefinition{Name: "c", Parent: "p", ReplicationKey: "id"}))
	assert.True(t, tracksBookmark(&rest.StreamDefinition{Name: "c", Parent: "p", ReplicationKey: "id", IgnoreParentReplicationKey: true}))
}
