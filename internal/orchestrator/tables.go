package orchestrator

// Intent categories scored by the keyword classifier, in tie-break order.
// property_search wins ties so the commercial flow keeps the lead.
var intentPriority = []string{
	IntentPropertySearch,
	IntentDocs,
	IntentVisit,
	IntentPrice,
	IntentLocation,
	IntentFinancing,
	IntentAvailability,
	IntentHandoffAgent,
}

const (
	IntentPropertySearch = "property_search"
	IntentDocs           = "docs"
	IntentVisit          = "visit"
	IntentPrice          = "price"
	IntentLocation       = "location"
	IntentFinancing      = "financing"
	IntentAvailability   = "availability"
	IntentHandoffAgent   = "handoff_agent"
	IntentGeneral        = "general"
)

// scoreThreshold is the minimum keyword-hit score for an intent to stay
// relevant after the primary is chosen.
const scoreThreshold = 1.0

var intentKeywords = map[string][]string{
	IntentPropertySearch: {"depto", "departamento", "ambientes", "ambiente", "unidad", "propiedad", "monoambiente"},
	IntentPrice:          {"precio", "valor", "cuanto", "usd", "ars", "$", "presupuesto"},
	IntentLocation:       {"ubicacion", "zona", "barrio", "direccion", "donde", "mapa"},
	IntentVisit:          {"visita", "ver", "recorrer", "tour", "mostrar", "coordinar"},
	IntentDocs:           {"docs", "documentacion", "documentos", "dni", "cuit", "recibo", "ingresos"},
	IntentAvailability:   {"disponible", "hay", "quedan", "stock", "unidades"},
	IntentFinancing:      {"financiacion", "cuotas", "anticipo", "plan", "credito"},
	IntentHandoffAgent:   {"humano", "asesor", "llamar", "contacto", "agente"},
}

// pragmaticsMissingSlots lists the information each intent needs before an
// operator (or the search backend) can act on it.
var pragmaticsMissingSlots = map[string][]string{
	IntentPropertySearch: {"zona", "tipologia", "presupuesto", "moneda", "fecha_mudanza"},
	IntentPrice:          {"currency", "budget", "unit"},
	IntentLocation:       {"project_or_zone"},
	IntentVisit:          {"date_range"},
	IntentDocs:           {"dni", "income_proof"},
	IntentAvailability:   {"unit_type"},
	IntentFinancing:      {"down_payment", "terms"},
	IntentHandoffAgent:   {"contact_method"},
}

// questionTemplates are the clarifying questions per intent. The pipeline
// renders unaccented text so the channel encoding never matters.
var questionTemplates = map[string]string{
	IntentPropertySearch: "Que zona, cantidad de ambientes y presupuesto con moneda buscas?",
	IntentPrice:          "Cual es tu presupuesto y moneda?",
	IntentLocation:       "Que zona o proyecto te interesa?",
	IntentVisit:          "Que rango de fechas preferis para la visita?",
	IntentDocs:           "Podes enviar DNI y comprobante?",
	IntentAvailability:   "Que tipo de unidad buscas?",
	IntentFinancing:      "Preferis cuotas y anticipo estimado?",
	IntentHandoffAgent:   "Queres que te contacte un asesor?",
}

var (
	questionTokens  = []string{"como", "donde", "cuanto"}
	greetingTokens  = []string{"hola", "buenas"}
	urgentTokens    = []string{"ya", "urgente", "hoy", "ahora"}
	complaintTokens = []string{"mal", "no funciona", "nadie responde"}
	requestTokens   = []string{"quiero", "necesito", "solicito"}
)

var commercialSlotPriority = []string{"zona", "tipologia", "presupuesto", "moneda", "fecha_mudanza"}

func intentOrder(name string) int {
	for i, candidate := range intentPriority {
		if candidate == name {
			return i
		}
	}
	return len(intentPriority)
}

// questionForMissing renders the slot-priority question for the commercial
// missing set.
func questionForMissing(missing []string) string {
	slots := make(map[string]bool, len(missing))
	for _, slot := range missing {
		slots[slot] = true
	}
	switch {
	case slots["zona"] && slots["tipologia"]:
		return "En que zona buscas y cuantos ambientes necesitas?"
	case slots["zona"]:
		return "En que zona te interesa buscar?"
	case slots["tipologia"]:
		return "Que tipologia o cantidad de ambientes buscas?"
	case slots["presupuesto"] || slots["moneda"]:
		return "Cual es tu presupuesto y en que moneda?"
	case slots["fecha_mudanza"]:
		return "Para cuando necesitas mudarte?"
	default:
		return "Que dato adicional podes compartir para avanzar?"
	}
}
