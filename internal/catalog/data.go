package catalog

import m "tradesim-engine/internal/model"

func inst(sym, name, sector string, class m.AssetClass, vol m.Volatility, tier m.Tier) m.Instrument {
	return m.Instrument{Symbol: sym, Name: name, Sector: sector, Class: class, Volatility: vol, Tier: tier}
}

// builtin is the fixed training catalog in display order.
var builtin = []m.Instrument{
	// Stocks
	inst("SMBY", "SmartBuy", "Retail Electronics", m.ClassStock, m.VolMedium, m.TierFree),
	inst("PRTC", "PearTech", "Consumer Tech", m.ClassStock, m.VolMedium, m.TierFree),
	inst("VLTR", "Voltra Motors", "EV / Auto", m.ClassStock, m.VolHigh, m.TierGold),
	inst("RNBX", "RainBox", "E-comm / Cloud", m.ClassStock, m.VolMedium, m.TierGold),
	inst("STRM", "Streamly", "Streaming", m.ClassStock, m.VolMedium, m.TierGold),
	inst("NRCP", "NeuroChip", "Semiconductors", m.ClassStock, m.VolHigh, m.TierPremium),
	inst("FNDT", "FindIt", "Search / Ads", m.ClassStock, m.VolLow, m.TierPremium),
	inst("FNLK", "FaceLink", "Social", m.ClassStock, m.VolMedium, m.TierPremium),
	inst("CLND", "CloudNest", "Cloud", m.ClassStock, m.VolMedium, m.TierPremium),
	inst("PYWV", "PayWave", "Fintech", m.ClassStock, m.VolMedium, m.TierPremium),
	inst("MDCR", "MediCore", "Healthcare", m.ClassStock, m.VolLow, m.TierPremium),
	inst("ARLF", "AeroLift", "Logistics", m.ClassStock, m.VolMedium, m.TierPremium),
	inst("BLDF", "BuildForge", "Industrial", m.ClassStock, m.VolLow, m.TierPremium),
	inst("FRCT", "FreshCart", "Delivery", m.ClassStock, m.VolMedium, m.TierPremium),
	inst("HMHV", "HomeHaven", "Home Goods", m.ClassStock, m.VolLow, m.TierPremium),
	inst("BYTS", "ByteShield", "Cybersecurity", m.ClassStock, m.VolHigh, m.TierPremium),
	inst("SLRG", "Solaris Grid", "Clean Energy", m.ClassStock, m.VolHigh, m.TierPremium),
	inst("NVBK", "NovaBank", "Banking", m.ClassStock, m.VolLow, m.TierPremium),
	inst("MTRL", "MetroRail", "Transport", m.ClassStock, m.VolLow, m.TierPremium),
	inst("CPOP", "CinePop", "Entertainment", m.ClassStock, m.VolMedium, m.TierPremium),

	// Crypto
	inst("BTN", "BitNova", "Store of Value", m.ClassCrypto, m.VolHigh, m.TierFree),
	inst("ETHA", "Ethera", "Smart Contracts", m.ClassCrypto, m.VolHigh, m.TierGold),
	inst("SOLR", "Solari", "Fast L1", m.ClassCrypto, m.VolVeryHigh, m.TierGold),
	inst("LUMT", "LunaMint", "Payments", m.ClassCrypto, m.VolHigh, m.TierGold),
	inst("RPLX", "RippleX", "Transfers", m.ClassCrypto, m.VolMedium, m.TierGold),
	inst("PUPC", "PupCoin", "Meme", m.ClassCrypto, m.VolVeryHigh, m.TierPremium),
	inst("CLAF", "ChainLeaf", "Green Chain", m.ClassCrypto, m.VolMedium, m.TierPremium),
	inst("VLT", "VoltToken", "Utility", m.ClassCrypto, m.VolHigh, m.TierPremium),
	inst("ASTR", "AstraCoin", "L2", m.ClassCrypto, m.VolHigh, m.TierPremium),
	inst("NBYT", "NeoByte", "Compute", m.ClassCrypto, m.VolMedium, m.TierPremium),
	inst("ORBT", "Orbit", "Interop", m.ClassCrypto, m.VolHigh, m.TierPremium),
	inst("GLCR", "Glacier", "Privacy", m.ClassCrypto, m.VolMedium, m.TierPremium),
	inst("KOI", "Koi", "Community", m.ClassCrypto, m.VolMedium, m.TierPremium),
	inst("SAFF", "Saffron", "DeFi", m.ClassCrypto, m.VolHigh, m.TierPremium),
	inst("COBL", "Cobalt", "Gaming", m.ClassCrypto, m.VolHigh, m.TierPremium),

	// Forex
	inst("USXEUR", "USX / EURX", "FX Major", m.ClassForex, m.VolLow, m.TierGold),
	inst("USXYNK", "USX / YENK", "FX Major", m.ClassForex, m.VolLow, m.TierGold),
	inst("GBPZUSX", "GBPZ / USX", "FX Major", m.ClassForex, m.VolLow, m.TierGold),
	inst("CADYUSX", "CADY / USX", "FX Major", m.ClassForex, m.VolLow, m.TierPremium),
	inst("AUSYUSX", "AUSY / USX", "FX Major", m.ClassForex, m.VolLow, m.TierPremium),
	inst("EURXYNK", "EURX / YENK", "FX Cross", m.ClassForex, m.VolMedium, m.TierPremium),
	inst("CHFQUSX", "CHFQ / USX", "FX Major", m.ClassForex, m.VolLow, m.TierPremium),
	inst("USXNGNX", "USX / NGNX", "FX Exotic", m.ClassForex, m.VolMedium, m.TierPremium),
	inst("USXBRLX", "USX / BRLX", "FX Exotic", m.ClassForex, m.VolMedium, m.TierPremium),
	inst("USXINRX", "USX / INRX", "FX Exotic", m.ClassForex, m.VolMedium, m.TierPremium),

	// Indices
	inst("TOP500", "Top500", "Index", m.ClassIndex, m.VolLow, m.TierGold),
	inst("TCH100", "Tech100", "Index", m.ClassIndex, m.VolMedium, m.TierGold),
	inst("MEGA30", "Mega30", "Index", m.ClassIndex, m.VolLow, m.TierPremium),
	inst("GE20", "GreenEnergy20", "Index", m.ClassIndex, m.VolMedium, m.TierPremium),
	inst("GLB40", "Global40", "Index", m.ClassIndex, m.VolLow, m.TierPremium),
}
