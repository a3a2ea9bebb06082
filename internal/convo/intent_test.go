package convo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ops-bot/internal/pager"
	"ops-bot/internal/session"
)

func TestParseIntent(t *testing.T) {
	cases := []struct {
		token string
		want  Intent
	}{
		{"cancel", NavIntent{Cancel: true}},
		{" menu:back ", NavIntent{Back: true}},
		{"menu:orders", NavIntent{Menu: MenuOrders}},
		{"menu:elsewhere", UnknownIntent{Raw: "menu:elsewhere"}},
		{"clients:new", StartIntent{Action: StartNewClient}},
		{"inventory", StartIntent{Action: StartInventory}},
		{"pg:cv:::2", PageIntent{Token: pager.Token{Kind: pager.KindClientsView, Page: 2}}},
		{"pg:sf:city:Lima:x", PageIntent{Token: pager.Token{Kind: pager.KindSearchFilter, FilterKey: "city", FilterValue: "Lima"}}},
		{"client:view:c1", EntityIntent{Kind: EntityClientView, ID: "c1"}},
		{"order:repeat:a:b", EntityIntent{Kind: EntityOrderRepeat, ID: "a:b"}},
		{"order:view", EntityIntent{Kind: EntityOrderView}},
		{"new_order:set_qty:p1:3", FlowIntent{Flow: session.FlowNewOrder, Action: "set_qty", Args: []string{"p1", "3"}}},
		{"search:by:city", FlowIntent{Flow: session.FlowSearchClients, Action: "by", Args: []string{"city"}}},
		{"new_client:save", FlowIntent{Flow: session.FlowNewClient, Action: "save", Args: []string{}}},
		{"new_client:", UnknownIntent{Raw: "new_client:"}},
		{"", UnknownIntent{}},
		{"clients_search_select", UnknownIntent{Raw: "clients_search_select"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseIntent(tc.token), tc.token)
	}
}
