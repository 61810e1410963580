package handlers

import "strings"

// RareGoodsPremium is the fixed markup applied over the observed buy
// price to derive a rare commodity's sell price (SPEC_FULL.md Open
// Question Decision: illustrative rare-commodity table).
const RareGoodsPremium = 300

// RareCommodities is the static table of commodities with capped supply
// at a single market, bundled with the binary and never updated from the
// upstream feed (spec.md §9 "Rare-commodity override table"). Keys are
// lower-cased commodity symbols.
var RareCommodities = map[string]struct{}{
	"leestianeveningale":     {},
	"eraninpearlwhisky":      {},
	"centaurimegagin":        {},
	"albinoquechuamammoth":   {},
	"alienbiologicalsamples": {},
	"alyabodysoap":           {},
	"anyvideogame":           {},
	"apawideeyedlooksauce":   {},
	"aroucariaexcavatedgems": {},
	"azuremilk":              {},
	"bakedgreebles":          {},
	"ceremonialheiketea":     {},
	"chateaudeaegaeon":       {},
	"deltaphoenicispalms":    {},
	"eleuthermals":           {},
	"gilyasignatureweapons":  {},
	"haidneblackbrew":        {},
	"honestypills":           {},
	"karsukilocustas":        {},
	"kinagoviolins":          {},
	"koromaakaipanpaste":     {},
	"onionheadalphastrain":   {},
	"rajukrumultistoves":     {},
	"vanayequiceratomorphafur": {},
	"wolfiandairyproducts":   {},
}

// IsRareCommodity reports whether a commodity name (case-insensitive,
// symbol form) is subject to the rare-goods override in C8.
func IsRareCommodity(name string) bool {
	_, ok := RareCommodities[normalizeSymbol(name)]
	return ok
}

func normalizeSymbol(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", ""))
}
