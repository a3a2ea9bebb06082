package convo

import (
	"ops-bot/internal/pager"
)

func (e *Engine) menu(id string) *Reply {
	switch id {
	case MenuClients:
		return newReply(msgClientsMenu).
			Row(btn("Nuevo cliente", string(StartNewClient)), btn("Buscar cliente", string(StartSearchClients))).
			Row(pageBtn("Ver clientes", pager.Token{Kind: pager.KindClientsView}), pageBtn("Editar cliente", pager.Token{Kind: pager.KindClientsEdit})).
			Row(btn(lblBack, "menu:back"))
	case MenuProducts:
		return newReply(msgProductsMenu).
			Row(btn("Inventario", string(StartInventory)), pageBtn("Lista de precios", pager.Token{Kind: pager.KindProducts})).
			Row(btn(lblBack, "menu:back"))
	case MenuOrders:
		return newReply(msgOrdersMenu).
			Row(btn("Nuevo pedido", string(StartNewOrder)), btn("Pedidos de hoy", string(StartOrdersToday))).
			Row(btn("Ventas por fecha", string(StartSalesByDate))).
			Row(btn(lblBack, "menu:back"))
	default:
		return newReply(msgMainMenu).
			Row(btn("Clientes", "menu:"+MenuClients), btn("Productos", "menu:"+MenuProducts)).
			Row(btn("Pedidos", "menu:"+MenuOrders))
	}
}

// withFooter appends the navigation row shared by list views.
func withFooter(r *Reply, owner string) *Reply {
	return r.Row(btn(lblBack, "menu:"+owner), btn(lblMain, "menu:"+MenuMain))
}
