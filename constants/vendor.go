package constants

// Vendor keys used to register strategies and to link templates to them.
const (
	VendorCostco     = "costco"
	VendorWalmart    = "walmart"
	VendorKeyFood    = "key_food"
	VendorHMart      = "h_mart"
	VendorTraderJoes = "trader_joes"
	VendorTarget     = "target"
	VendorGeneric    = "generic"
)

// DefaultCurrency is used when a receipt carries no currency evidence.
const DefaultCurrency = "USD"
