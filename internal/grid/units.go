package grid

// KelvinToFahrenheit converts kelvin to degrees Fahrenheit.
func KelvinToFahrenheit(k float64) float64 {
	return k*1.8 - 459.67
}

// RateToInches converts a precipitation rate in kg m-2 s-1 (mm/s) to inches per day.
func RateToInches(rate float64) float64 {
	return rate * 86400 * 0.03937008
}

// RateToHourlyInches converts a precipitation rate in kg m-2 s-1 to inches per hour.
func RateToHourlyInches(rate float64) float64 {
	return rate * 86400 / 24 * 0.0393701
}
