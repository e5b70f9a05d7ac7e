// Package taxonomy holds the fixed region/market/theme tag sets and the
// rule-based classifier that assigns them to headlines.
package taxonomy

import "strings"

type Region string

const (
	RegionAmericas    Region = "AMERICAS"
	RegionEurope      Region = "EUROPE"
	RegionAsiaPacific Region = "ASIA_PACIFIC"
	RegionMiddleEast  Region = "MIDDLE_EAST"
	RegionAfrica      Region = "AFRICA"
	RegionGlobal      Region = "GLOBAL"
)

type Market string

const (
	MarketEquities    Market = "EQUITIES"
	MarketFixedIncome Market = "FIXED_INCOME"
	MarketFX          Market = "FX"
	MarketCommodities Market = "COMMODITIES"
	MarketCrypto      Market = "CRYPTO"
	MarketDerivatives Market = "DERIVATIVES"
	MarketCredit      Market = "CREDIT"
)

type Theme string

const (
	ThemeMonetaryPolicy  Theme = "MONETARY_POLICY"
	ThemeFiscalPolicy    Theme = "FISCAL_POLICY"
	ThemeEconomicData    Theme = "ECONOMIC_DATA"
	ThemeEarnings        Theme = "EARNINGS"
	ThemeMAndA           Theme = "M_AND_A"
	ThemeCorporateAction Theme = "CORPORATE_ACTION"
	ThemeGeopolitics     Theme = "GEOPOLITICS"
	ThemeRiskEvent       Theme = "RISK_EVENT"
	ThemeRegulation      Theme = "REGULATION"
	ThemeMarketStructure Theme = "MARKET_STRUCTURE"
	// ThemeEnergy is never assigned by the classifier but is accepted in
	// sound preferences.
	ThemeEnergy Theme = "ENERGY"
)

var (
	Regions = []Region{RegionAmericas, RegionEurope, RegionAsiaPacific, RegionMiddleEast, RegionAfrica, RegionGlobal}
	Markets = []Market{MarketEquities, MarketFixedIncome, MarketFX, MarketCommodities, MarketCrypto, MarketDerivatives, MarketCredit}
	Themes  = []Theme{
		ThemeMonetaryPolicy, ThemeFiscalPolicy, ThemeEconomicData, ThemeEarnings, ThemeMAndA,
		ThemeCorporateAction, ThemeGeopolitics, ThemeRiskEvent, ThemeRegulation, ThemeMarketStructure,
	}
)

func ValidRegion(s string) bool {
	for _, r := range Regions {
		if string(r) == s {
			return true
		}
	}
	return false
}

func ValidMarket(s string) bool {
	for _, m := range Markets {
		if string(m) == s {
			return true
		}
	}
	return false
}

func ValidTheme(s string) bool {
	for _, th := range Themes {
		if string(th) == s {
			return true
		}
	}
	return false
}

// ValidSoundTheme accepts every classifier theme plus ENERGY.
func ValidSoundTheme(s string) bool {
	return ValidTheme(s) || s == string(ThemeEnergy)
}

// Category identifies which of the three tag sets a Tag belongs to.
type Category string

const (
	CategoryRegion Category = "region"
	CategoryMarket Category = "market"
	CategoryTheme  Category = "theme"
)

// Tag is a single display tag. SoundEnabled is derived from the category:
// only themes may trigger an audio alert.
type Tag struct {
	Category     Category `json:"type"`
	Value        string   `json:"value"`
	SoundEnabled bool     `json:"soundEnabled"`
}

// SettingsKey is the key used for per-tag preference lookups.
func (t Tag) SettingsKey() string {
	return SettingsKey(t.Value)
}

// SettingsKey lowercases a tag value and joins whitespace runs with '-'.
func SettingsKey(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), "-")
}

// Tags is the classification result stored on a news item.
type Tags struct {
	Region  Region
	Markets []Market
	Themes  []Theme
}

// List flattens the classification into display tags, region first.
func (t Tags) List() []Tag {
	tags := make([]Tag, 0, 1+len(t.Markets)+len(t.Themes))
	tags = append(tags, Tag{Category: CategoryRegion, Value: string(t.Region)})
	for _, m := range t.Markets {
		tags = append(tags, Tag{Category: CategoryMarket, Value: string(m)})
	}
	for _, th := range t.Themes {
		tags = append(tags, Tag{Category: CategoryTheme, Value: string(th), SoundEnabled: true})
	}
	return tags
}
