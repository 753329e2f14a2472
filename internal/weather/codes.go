package weather

// wmoConditions maps WMO weather interpretation codes, as reported by the
// Open-Meteo daily weathercode field, to display labels.
var wmoConditions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Foggy",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// ConditionsLabel returns the display label for a WMO weather code,
// or "Unknown" for codes outside the table.
func ConditionsLabel(code int) string {
	if label, ok := wmoConditions[code]; ok {
		return label
	}
	return "Unknown"
}
