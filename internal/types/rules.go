// internal/types/rules.go
package types

/*
 * Wire format for location scoping of a scraping task.
 *
 * LocationRule flattens one Path into a backend-consumable record.
 * LocationRules groups rules in one of two shapes:
 *   - inclusion: base=[], include=[...]  (nothing unless included)
 *   - exclusion: base=[{country}], exclude=[...]  (everything except excluded)
 * An empty selection serializes as {"base": []} with no include/exclude keys,
 * which is why both optional arrays use omitempty and Base is never nil.
 */

// RuleType names the granularity of a LocationRule.
type RuleType string

const (
	RuleTypeCountry RuleType = "country"
	RuleTypeState   RuleType = "state"
	RuleTypeCounty  RuleType = "county"
	RuleTypeCity    RuleType = "city"
	RuleTypeZip     RuleType = "zip"
)

// LocationRule is one flattened path.
type LocationRule struct {
	Type    RuleType `json:"type"`
	Name    string   `json:"name,omitempty"`
	State   string   `json:"state,omitempty"`
	County  string   `json:"county,omitempty"`
	ZipCode string   `json:"zip_code,omitempty"`
}

// LocationRules is the serialized selection sent with a task.
type LocationRules struct {
	Base    []LocationRule `json:"base"`
	Include []LocationRule `json:"include,omitempty"`
	Exclude []LocationRule `json:"exclude,omitempty"`
}

// Encoding identifies which shape a LocationRules value has.
type Encoding string

const (
	EncodingEmpty   Encoding = "empty"
	EncodingInclude Encoding = "include"
	EncodingExclude Encoding = "exclude"
)

// Encoding reports the shape of r.
func (r LocationRules) Encoding() Encoding {
	switch {
	case len(r.Exclude) > 0:
		return EncodingExclude
	case len(r.Include) > 0:
		return EncodingInclude
	default:
		return EncodingEmpty
	}
}

// RuleCount returns the number of rules carried in base, include and exclude.
func (r LocationRules) RuleCount() int {
	return len(r.Base) + len(r.Include) + len(r.Exclude)
}
