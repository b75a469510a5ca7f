package sectors

import "github.com/trogers1052/portfolio-tracker/internal/models"

func equity(name, sector string) models.Classification {
	return models.Classification{Name: name, Sector: sector, AssetClass: models.AssetClassEquity}
}

func fund(name, sector, class string) models.Classification {
	return models.Classification{Name: name, Sector: sector, AssetClass: class}
}

var defaults = map[models.Ticker]models.Classification{
	"AAPL":  equity("Apple Inc.", "Technology"),
	"MSFT":  equity("Microsoft Corp.", "Technology"),
	"NVDA":  equity("NVIDIA Corp.", "Technology"),
	"AVGO":  equity("Broadcom Inc.", "Technology"),
	"ORCL":  equity("Oracle Corp.", "Technology"),
	"CRM":   equity("Salesforce Inc.", "Technology"),
	"ADBE":  equity("Adobe Inc.", "Technology"),
	"AMD":   equity("Advanced Micro Devices", "Technology"),
	"INTC":  equity("Intel Corp.", "Technology"),
	"CSCO":  equity("Cisco Systems", "Technology"),
	"IBM":   equity("IBM", "Technology"),
	"GOOG":  equity("Alphabet Inc.", "Communication Services"),
	"GOOGL": equity("Alphabet Inc.", "Communication Services"),
	"META":  equity("Meta Platforms", "Communication Services"),
	"NFLX":  equity("Netflix Inc.", "Communication Services"),
	"DIS":   equity("Walt Disney Co.", "Communication Services"),
	"T":     equity("AT&T Inc.", "Communication Services"),
	"VZ":    equity("Verizon Communications", "Communication Services"),
	"AMZN":  equity("Amazon.com Inc.", "Consumer Discretionary"),
	"TSLA":  equity("Tesla Inc.", "Consumer Discretionary"),
	"HD":    equity("Home Depot", "Consumer Discretionary"),
	"MCD":   equity("McDonald's Corp.", "Consumer Discretionary"),
	"NKE":   equity("Nike Inc.", "Consumer Discretionary"),
	"SBUX":  equity("Starbucks Corp.", "Consumer Discretionary"),
	"WMT":   equity("Walmart Inc.", "Consumer Staples"),
	"PG":    equity("Procter & Gamble", "Consumer Staples"),
	"KO":    equity("Coca-Cola Co.", "Consumer Staples"),
	"PEP":   equity("PepsiCo Inc.", "Consumer Staples"),
	"COST":  equity("Costco Wholesale", "Consumer Staples"),
	"JPM":   equity("JPMorgan Chase", "Financials"),
	"BAC":   equity("Bank of America", "Financials"),
	"WFC":   equity("Wells Fargo", "Financials"),
	"GS":    equity("Goldman Sachs", "Financials"),
	"MS":    equity("Morgan Stanley", "Financials"),
	"V":     equity("Visa Inc.", "Financials"),
	"MA":    equity("Mastercard Inc.", "Financials"),
	"JNJ":   equity("Johnson & Johnson", "Health Care"),
	"UNH":   equity("UnitedHealth Group", "Health Care"),
	"PFE":   equity("Pfizer Inc.", "Health Care"),
	"MRK":   equity("Merck & Co.", "Health Care"),
	"ABBV":  equity("AbbVie Inc.", "Health Care"),
	"LLY":   equity("Eli Lilly", "Health Care"),
	"XOM":   equity("Exxon Mobil", "Energy"),
	"CVX":   equity("Chevron Corp.", "Energy"),
	"COP":   equity("ConocoPhillips", "Energy"),
	"BA":    equity("Boeing Co.", "Industrials"),
	"CAT":   equity("Caterpillar Inc.", "Industrials"),
	"GE":    equity("General Electric", "Industrials"),
	"UPS":   equity("United Parcel Service", "Industrials"),
	"NEE":   equity("NextEra Energy", "Utilities"),
	"DUK":   equity("Duke Energy", "Utilities"),
	"AMT":   equity("American Tower", "Real Estate"),
	"PLD":   equity("Prologis Inc.", "Real Estate"),
	"LIN":   equity("Linde plc", "Materials"),

	"SPY": fund("SPDR S&P 500 ETF", "Broad Market", models.AssetClassETF),
	"VOO": fund("Vanguard S&P 500 ETF", "Broad Market", models.AssetClassETF),
	"VTI": fund("Vanguard Total Stock Market ETF", "Broad Market", models.AssetClassETF),
	"QQQ": fund("Invesco QQQ Trust", "Technology", models.AssetClassETF),
	"IWM": fund("iShares Russell 2000 ETF", "Broad Market", models.AssetClassETF),
	"VEA": fund("Vanguard Developed Markets ETF", "International", models.AssetClassETF),
	"VWO": fund("Vanguard Emerging Markets ETF", "International", models.AssetClassETF),
	"XLK": fund("Technology Select Sector SPDR", "Technology", models.AssetClassETF),
	"XLF": fund("Financial Select Sector SPDR", "Financials", models.AssetClassETF),
	"XLE": fund("Energy Select Sector SPDR", "Energy", models.AssetClassETF),
	"BND": fund("Vanguard Total Bond Market ETF", "Fixed Income", models.AssetClassBond),
	"AGG": fund("iShares Core US Aggregate Bond ETF", "Fixed Income", models.AssetClassBond),
	"TLT": fund("iShares 20+ Year Treasury Bond ETF", "Fixed Income", models.AssetClassBond),
	"IEF": fund("iShares 7-10 Year Treasury Bond ETF", "Fixed Income", models.AssetClassBond),
	"LQD": fund("iShares Investment Grade Corporate Bond ETF", "Fixed Income", models.AssetClassBond),
	"GLD": fund("SPDR Gold Shares", "Precious Metals", models.AssetClassCommodity),
	"IAU": fund("iShares Gold Trust", "Precious Metals", models.AssetClassCommodity),
	"SLV": fund("iShares Silver Trust", "Precious Metals", models.AssetClassCommodity),
	"USO": fund("United States Oil Fund", "Energy", models.AssetClassCommodity),
	"DBC": fund("Invesco DB Commodity Index", "Broad Commodities", models.AssetClassCommodity),
}
