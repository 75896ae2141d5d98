// Package weather implements the time-aware weather access layer: the hourly
// table, sub-hour interpolation, historical/forecast range splitting, and the
// caching facade.
package weather

// FieldWeatherCode is the categorical field resolved by floor-hour lookup
// instead of interpolation.
const FieldWeatherCode = "Weather Code"

// apiVariables maps field display names to Open-Meteo hourly variable names.
var apiVariables = map[string]string{
	"Temperature":          "temperature_2m",
	"Humidity":             "relative_humidity_2m",
	"Dew Point":            "dew_point_2m",
	"Apparent Temperature": "apparent_temperature",
	"Precipitation":        "precipitation",
	"Rain":                 "rain",
	"Snowfall":             "snowfall",
	FieldWeatherCode:       "weather_code",
	"Cloud Cover":          "cloud_cover",
	"Wind Speed":           "wind_speed_10m",
	"Wind Direction":       "wind_direction_10m",
	"Wind Gusts":           "wind_gusts_10m",
}

// codeLabels maps WMO weather codes to display labels.
var codeLabels = map[int]string{
	0:  "Clear Sky",
	1:  "Mainly Clear",
	2:  "Partly Cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing Rime Fog",
	51: "Light Drizzle",
	53: "Moderate Drizzle",
	55: "Dense Drizzle",
	56: "Light Freezing Drizzle",
	57: "Dense Freezing Drizzle",
	61: "Slight Rain",
	63: "Moderate Rain",
	65: "Heavy Rain",
	66: "Light Freezing Rain",
	67: "Heavy Freezing Rain",
	71: "Slight Snow Fall",
	73: "Moderate Snow Fall",
	75: "Heavy Snow Fall",
	77: "Snow Grains",
	80: "Slight Rain Showers",
	81: "Moderate Rain Showers",
	82: "Violent Rain Showers",
	85: "Slight Snow Showers",
	86: "Heavy Snow Showers",
}

// APIVariable returns the Open-Meteo hourly variable for a field display name.
func APIVariable(field string) (string, bool) {
	v, ok := apiVariables[field]
	return v, ok
}

// CodeLabel returns the display label for a weather code. Unknown codes map
// to "Unknown".
func CodeLabel(code int) string {
	if label, ok := codeLabels[code]; ok {
		return label
	}
	return "Unknown"
}

// FieldDecimals returns the presentation precision for a field: 3 decimals
// for precipitation-like amounts, 1 for everything else.
func FieldDecimals(field string) int {
	switch field {
	case "Precipitation", "Rain", "Snowfall":
		return 3
	default:
		return 1
	}
}
