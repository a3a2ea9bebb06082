package convo

// User-facing texts.
const (
	msgUnavailable = "Acción no disponible"
	msgBusy        = "Procesando tu mensaje anterior, intenta de nuevo."
	msgFailure     = "Ocurrió un problema al procesar tu solicitud. Intenta de nuevo en unos momentos."
	msgCancelled   = "Operación cancelada."
	msgUseButtons  = "Usa los botones del mensaje anterior para continuar, o escribe /cancel para salir."

	msgMainMenu     = "¿Qué quieres hacer?"
	msgClientsMenu  = "Clientes"
	msgProductsMenu = "Productos"
	msgOrdersMenu   = "Pedidos"

	msgClientNotFound  = "No encontré ese cliente. Puede que haya sido eliminado."
	msgOrderNotFound   = "No encontré ese pedido."
	msgProductNotFound = "Ese producto ya no está disponible."
	msgSearchExpired   = "La búsqueda expiró. Vuelve a buscar."
	msgEmptyList       = "No hay resultados."

	msgAskName     = "Escribe el nombre del cliente."
	msgAskPhone    = "Escribe el teléfono del cliente."
	msgAskCity     = "Escribe la ciudad."
	msgAskRoute    = "Escribe la ruta de reparto."
	msgAskCategory = "Escribe la categoría del cliente (ej. mayorista, minorista)."
	msgNameEmpty   = "El nombre no puede estar vacío."
	msgNameLong    = "El nombre es demasiado largo (máximo 120 caracteres)."
	msgPhoneBad    = "Ese teléfono no parece válido. Usa solo dígitos, espacios, + o -, con al menos 6 dígitos."
	msgValueLong   = "El valor es demasiado largo (máximo 200 caracteres)."
	msgClientSaved = "Cliente guardado."

	msgPickClient   = "Elige el cliente para el pedido."
	msgPickProduct  = "Elige un producto."
	msgAskCode      = "Escribe el código del producto."
	msgAskQty       = "Escribe la cantidad (un número entero mayor que cero)."
	msgQtyInvalid   = "Cantidad inválida. Escribe un número entero mayor que cero."
	msgCartEmpty    = "El carrito está vacío."
	msgNoPending    = "No hay un producto seleccionado. Elige uno de nuevo."
	msgOrderSaved   = "Pedido registrado."
	msgOrderAborted = "Pedido cancelado."

	msgRepeatAdjusted = "%d línea(s) del pedido original tenían cantidad o precio inválido; revisa el carrito."

	msgPickField = "¿Qué dato quieres cambiar?"
	msgUpdated   = "Dato actualizado."

	msgSearchMenu = "¿Cómo quieres buscar clientes?"
	msgAskSearch  = "Escribe parte del nombre o teléfono del cliente."
	msgNoOptions  = "No hay valores registrados para ese campo."

	msgAskDate     = "Escribe la fecha (AAAA-MM-DD o DD/MM/AAAA), o «hoy» / «ayer»."
	msgDateInvalid = "Fecha inválida. Usa AAAA-MM-DD o DD/MM/AAAA, o escribe «hoy» o «ayer»."
)

// Button labels.
const (
	lblBack     = "« Volver"
	lblMain     = "Menú principal"
	lblPrev     = "« Anterior"
	lblNext     = "Siguiente »"
	lblCancel   = "Cancelar"
	lblSkip     = "Omitir"
	lblSave     = "Guardar"
	lblAdd      = "Agregar producto"
	lblCode     = "Ingresar código"
	lblCart     = "Ver carrito"
	lblConfirm  = "Confirmar pedido"
	lblOtherQty = "Otra cantidad"
)

var fieldLabels = map[string]string{
	"name":     "Nombre",
	"phone":    "Teléfono",
	"address":  "Dirección",
	"city":     "Ciudad",
	"route":    "Ruta",
	"category": "Categoría",
	"notes":    "Notas",
}

func fieldLabel(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return field
}
