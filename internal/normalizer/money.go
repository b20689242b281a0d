package normalizer

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/Dan9191/bureau-scoring/internal/models"
	"github.com/shopspring/decimal"
)

var (
	localAmountRe   = regexp.MustCompile(`(?i)local:\s*([-+]?[0-9][0-9.,]*)`)
	foreignAmountRe = regexp.MustCompile(`(?i)foreign:\s*([-+]?[0-9][0-9.,]*)`)
)

// ParseMoneyString reads a combined amount such as "local: 123.45 foreign: 67".
// Each component is extracted independently; a missing or non-numeric one is 0.
func ParseMoneyString(s string) models.Money {
	return models.NewMoney(extractAmount(localAmountRe, s), extractAmount(foreignAmountRe, s))
}

func extractAmount(re *regexp.Regexp, s string) decimal.Decimal {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return decimal.Zero
	}
	return parseDecimal(m[1])
}

func parseDecimal(s string) decimal.Decimal {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// amount decodes a JSON number or a numeric string. Anything else decodes to 0.
type amount decimal.Decimal

func (a *amount) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*a = amount(parseDecimal(n.String()))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = amount(parseDecimal(s))
		return nil
	}
	*a = amount(decimal.Zero)
	return nil
}

func (a amount) decimal() decimal.Decimal {
	return decimal.Decimal(a)
}

// flag decodes booleans sent as true/false, "S"/"N", "Y"/"N", "true"/"false" or 1/0.
type flag bool

func (f *flag) UnmarshalJSON(b []byte) error {
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flag(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		switch strings.ToUpper(strings.TrimSpace(s)) {
		case "S", "SI", "Y", "YES", "TRUE", "1":
			*f = true
		default:
			*f = false
		}
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = n != 0
		return nil
	}
	*f = false
	return nil
}
