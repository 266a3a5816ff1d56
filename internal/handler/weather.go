package handler

import (
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

var summaries = []string{
	"Freezing", "Bracing", "Chilly", "Cool", "Mild", "Warm", "Balmy", "Hot", "Sweltering", "Scorching",
}

// WeatherForecast is the payload of the Admin-only sample endpoint.
type WeatherForecast struct {
	Date         string `json:"date"`
	TemperatureC int    `json:"temperatureC"`
	TemperatureF int    `json:"temperatureF"`
	Summary      string `json:"summary"`
}

// Forecast returns five days of random weather.  Mounted behind
// RequireRole(Admin) to exercise role checks end to end.
func Forecast(c echo.Context) error {
	today := time.Now().UTC()
	out := make([]WeatherForecast, 0, 5)
	for i := 1; i <= 5; i++ {
		tc := rand.IntN(75) - 20
		out = append(out, WeatherForecast{
			Date:         today.AddDate(0, 0, i).Format(time.DateOnly),
			TemperatureC: tc,
			TemperatureF: 32 + int(float64(tc)/0.5556),
			Summary:      summaries[rand.IntN(len(summaries))],
		})
	}
	return c.JSON(http.StatusOK, out)
}
