package domain

import "strings"

// InstrumentInfo describes a tradable security
type InstrumentInfo struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Sector string `json:"sector"`
}

// instrumentCatalog is the static universe of supported instruments.
// A small fixed universe keeps validation cheap; adding an instrument
// is a code change, not configuration.
var instrumentCatalog = map[string]InstrumentInfo{
	"SBER": {Symbol: "SBER", Name: "Sberbank", Sector: "Financials"},
	"GAZP": {Symbol: "GAZP", Name: "Gazprom", Sector: "Energy"},
	"YNDX": {Symbol: "YNDX", Name: "Yandex", Sector: "Technology"},
	"LKOH": {Symbol: "LKOH", Name: "Lukoil", Sector: "Energy"},
	"ROSN": {Symbol: "ROSN", Name: "Rosneft", Sector: "Energy"},
	"NVTK": {Symbol: "NVTK", Name: "Novatek", Sector: "Energy"},
	"GMKN": {Symbol: "GMKN", Name: "Norilsk Nickel", Sector: "Materials"},
}

// GetInstrumentInfo returns catalog info for a symbol, or false if unsupported
func GetInstrumentInfo(symbol string) (InstrumentInfo, bool) {
	info, ok := instrumentCatalog[strings.ToUpper(strings.TrimSpace(symbol))]
	return info, ok
}

// IsSupportedInstrument reports whether the symbol is in the catalog
func IsSupportedInstrument(symbol string) bool {
	_, ok := GetInstrumentInfo(symbol)
	return ok
}

// SupportedInstruments returns all catalog symbols
func SupportedInstruments() []string {
	symbols := make([]string, 0, len(instrumentCatalog))
	for symbol := range instrumentCatalog {
		symbols = append(symbols, symbol)
	}
	return symbols
}
