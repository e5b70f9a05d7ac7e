package taxonomy

import "regexp"

// RulesVersion must be bumped whenever a pattern or the order of the tables
// below changes; stored classifications are only comparable within a version.
const RulesVersion = 1

type rule[T ~string] struct {
	pattern *regexp.Regexp
	tag     T
}

func words(alternatives string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(` + alternatives + `)\b`)
}

// Order is significant in every table.
var regionRules = []rule[Region]{
	{words(`US|USA|United States|U\.S\.|American|NYSE|NASDAQ|S&P|Canada|Mexico|Brazil`), RegionAmericas},
	{words(`Europe|European|EU|Eurozone|ECB|DAX|CAC|EuroStoxx|Paris|Frankfurt|Amsterdam|UK|United Kingdom|London|FTSE|British`), RegionEurope},
	{words(`Asia|Asian|Hong Kong|Singapore|Tokyo|Shanghai|KOSPI|Nikkei|Hang Seng|JSX|China|Chinese|CNY|India|Australia`), RegionAsiaPacific},
	{words(`Middle East|Saudi|UAE|Dubai|Israel|Gulf|OPEC|Oil`), RegionMiddleEast},
	{words(`Africa|African|South Africa|Lagos|Cairo`), RegionAfrica},
	{words(`Global|Worldwide|International|World`), RegionGlobal},
}

var marketRules = []rule[Market]{
	{words(`stock|equity|equities|shares|equity market|SP500|DAX|FTSE|ASX`), MarketEquities},
	{words(`bond|bonds|fixed income|treasury|yield|curve|credit|debt|corporate bond`), MarketFixedIncome},
	{words(`forex|FX|currency|exchange rate|dollar|euro|pound|yen|sterling`), MarketFX},
	{words(`commodity|commodities|oil|gold|copper|wheat|natural gas|crude|precious metal`), MarketCommodities},
	{words(`crypto|cryptocurrency|bitcoin|ethereum|digital asset|BTC|ETH|blockchain`), MarketCrypto},
	{words(`derivative|derivatives|futures|options|swaps|forward`), MarketDerivatives},
	{words(`credit|credit market|CDS|spreads|high yield|junk bond|corporate credit`), MarketCredit},
}

var themeRules = []rule[Theme]{
	{words(`Fed|Federal Reserve|interest rate|rate hike|monetary policy|QE|quantitative easing`), ThemeMonetaryPolicy},
	{words(`fiscal stimulus|government spending|tax|budget|stimulus|infrastructure|spending bill`), ThemeFiscalPolicy},
	{words(`GDP|inflation|CPI|PPI|employment|jobless|unemployment|economic data|manufacturing`), ThemeEconomicData},
	{words(`earnings|profit|revenue|guidance|EPS|Q[1-4] result`), ThemeEarnings},
	{words(`merger|acquisition|M&A|buyout|takeover|deal|IPO|spin-off|divestiture`), ThemeMAndA},
	{words(`dividend|buyback|stock split|corporate action|shareholder`), ThemeCorporateAction},
	{words(`geopolitics|geopolitical|war|sanctions|conflict|trade war|tariff|political risk|crisis|oil crisis|OPEC|crude oil|natural gas|renewable|green energy`), ThemeGeopolitics},
	{words(`risk|crisis|crash|correction|drawdown|systemic|contagion|stress test|default`), ThemeRiskEvent},
	{words(`regulation|regulatory|compliance|SEC|banking|antitrust|deregulation`), ThemeRegulation},
	{words(`market structure|circuit breaker|trading halt|exchange|settlement|clearing|volatility surface`), ThemeMarketStructure},
}
