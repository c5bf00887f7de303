package returnless

import (
	"net/url"

	"github.com/ajitpratap0/tap-returnless/pkg/connector/rest"
)

const (
	includeOrder    = "customer,form,customer_address,return_question_answers,notes"
	includeForms    = "locale,locales"
	includeShipment = "customer_address,return_address"
)

// Definitions returns every Returnless stream in catalog order. A fresh
// slice is built on each call.
func Definitions() []*rest.StreamDefinition {
	return []*rest.StreamDefinition{
		simple("attachments", "/attachments", "id"),
		simple("categories", "/categories", "id"),
		simple("countries", "/countries", "id"),
		simple("depreciations", "/depreciations", "updated_at"),
		{
			Name:           "forms",
			Path:           "/forms",
			RecordsPath:    rest.DefaultRecordsPath,
			PrimaryKeys:    []string{"id"},
			ReplicationKey: "id",
			Params:         url.Values{"include": {includeForms}},
			ChildContext:   rest.ProjectField("id", "form_id"),
		},
		child("form_return_reasons", "/forms/{form_id}/return-reasons", "forms"),
		child("form_shipping_methods", "/forms/{form_id}/shipping-methods", "forms"),
		simple("return_reasons", "/return-reasons", "id"),
		simple("request_statuses", "/request-statuses", "id"),
		simple("return_statuses", "/return-statuses", "id"),
		withInclude(simple("request_orders", "/request-orders", "updated_at"), includeOrder+",return_order_items"),
		withInclude(simple("return_orders", "/return-orders", "updated_at"), includeOrder+",shipments"),
		simple("return_addresses", "/return-addresses", "id"),
		simple("sales_orders", "/sales-orders", "id"),
		withInclude(simple("shipments", "/shipments", "updated_at"), includeShipment),
		simple("tags", "/tags", "id"),
		simple("giftcards", "/giftcards", "id"),
		simple("products", "/products", "id"),
		simple("refunds", "/refunds", "id"),
		simple("notes", "/notes", "id"),
	}
}

func simple(name, path, replicationKey string) *rest.StreamDefinition {
	return &rest.StreamDefinition{
		Name:           name,
		Path:           path,
		RecordsPath:    rest.DefaultRecordsPath,
		PrimaryKeys:    []string{"id"},
		ReplicationKey: replicationKey,
	}
}

func child(name, path, parent string) *rest.StreamDefinition {
	def := simple(name, path, "id")
	def.Parent = parent
	def.IgnoreParentReplicationKey = true
	return def
}

func withInclude(def *rest.StreamDefinition, include string) *rest.StreamDefinition {
	def.Params = url.Values{"include": {include}}
	return def
}
