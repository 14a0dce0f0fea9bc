package shared

// Trade product domains. Each domain carries view/create/edit/delete
// permission tokens of the form "<domain>:<verb>".
const (
	DomainFormM        = "form_m"
	DomainFormA        = "form_a"
	DomainFormNXP      = "form_nxp"
	DomainPAAR         = "paar"
	DomainImportLC     = "import_lc"
	DomainBillsForColl = "bills_for_collection"
	DomainShippingDocs = "shipping_docs"
	DomainFXSales      = "fx_sales"
	DomainTradeLoan    = "trade_loan"
	DomainInwardPay    = "inward_payment"
	DomainOutwardPay   = "outward_payment"
)

// Verbs granted per trade domain.
const (
	VerbView   = "view"
	VerbCreate = "create"
	VerbEdit   = "edit"
	VerbDelete = "delete"
)

// TradeDomains lists every trade product domain.
func TradeDomains() []string {
	return []string{
		DomainFormM,
		DomainFormA,
		DomainFormNXP,
		DomainPAAR,
		DomainImportLC,
		DomainBillsForColl,
		DomainShippingDocs,
		DomainFXSales,
		DomainTradeLoan,
		DomainInwardPay,
		DomainOutwardPay,
	}
}

// TradeVerbs lists the verbs every trade domain grants.
func TradeVerbs() []string {
	return []string{VerbView, VerbCreate, VerbEdit, VerbDelete}
}

// Perm composes a permission token from a domain and a verb.
func Perm(domain, verb string) string {
	return domain + ":" + verb
}

// TradeScopes lists all permissions across every trade domain.
func TradeScopes() []string {
	domains := TradeDomains()
	verbs := TradeVerbs()
	scopes := make([]string, 0, len(domains)*len(verbs))
	for _, d := range domains {
		for _, v := range verbs {
			scopes = append(scopes, Perm(d, v))
		}
	}
	return scopes
}

// TradeScopesForVerb lists one verb's token across every trade domain.
func TradeScopesForVerb(verb string) []string {
	domains := TradeDomains()
	scopes := make([]string, 0, len(domains))
	for _, d := range domains {
		scopes = append(scopes, Perm(d, verb))
	}
	return scopes
}
