package scoring

import "strings"

// Tag is a property of an institution that features select on
type Tag string

const (
	TagBank            Tag = "bank"
	TagTierOne         Tag = "tier-one"
	TagState           Tag = "state"
	TagCooperative     Tag = "cooperative"
	TagConsumerFinance Tag = "consumer-finance"
	TagCardIssuer      Tag = "card-issuer"
)

type institution struct {
	key        string
	substrings []string
	tags       []Tag
}

// institutions maps an institution key to the name substrings that identify it.
// Substrings are matched against the upper-cased entity name and are kept
// verbatim from the risk model, overlaps included.
var institutions = []institution{
	{key: "scotiabank", substrings: []string{"SCOTIABANK"}, tags: []Tag{TagBank, TagTierOne}},
	{key: "brou", substrings: []string{"BROU", "REPUBLICA ORIENTAL"}, tags: []Tag{TagBank, TagTierOne, TagState}},
	{key: "santander", substrings: []string{"SANTANDER"}, tags: []Tag{TagBank, TagTierOne}},
	{key: "itau", substrings: []string{"ITAU", "ITAÚ"}, tags: []Tag{TagBank, TagTierOne}},
	{key: "bbva", substrings: []string{"BBVA"}, tags: []Tag{TagBank}},
	{key: "hsbc", substrings: []string{"HSBC"}, tags: []Tag{TagBank}},
	{key: "heritage", substrings: []string{"HERITAGE"}, tags: []Tag{TagBank}},
	{key: "cooperative", substrings: []string{"COOPERATIVA", "COOP.", "FUCAC", "ANDA"}, tags: []Tag{TagCooperative}},
	{key: "consumer-finance", substrings: []string{"CREDITEL", "OCA", "PRONTO", "CREDITOS DIRECTOS", "CASH", "CREDISOL"}, tags: []Tag{TagConsumerFinance}},
	{key: "card-issuer", substrings: []string{"CABAL", "MASTERCARD", "VISA", "TARJETA D"}, tags: []Tag{TagCardIssuer}},
}

// Match is the result of looking an entity name up in the institution table
type Match struct {
	Keys []string
	Tags map[Tag]bool
}

// Is reports whether the name matched the given institution key
func (m Match) Is(key string) bool {
	for _, k := range m.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Has reports whether any matched institution carries the tag
func (m Match) Has(t Tag) bool {
	return m.Tags[t]
}

// LookupInstitution returns every institution whose substrings occur in name
func LookupInstitution(name string) Match {
	upper := strings.ToUpper(name)
	m := Match{Tags: map[Tag]bool{}}
	for _, inst := range institutions {
		for _, sub := range inst.substrings {
			if strings.Contains(upper, sub) {
				m.Keys = append(m.Keys, inst.key)
				for _, t := range inst.tags {
					m.Tags[t] = true
				}
				break
			}
		}
	}
	return m
}
