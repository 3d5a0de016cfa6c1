package tado

// MeResponse is the account metadata returned by the /me endpoint.
type MeResponse struct {
	Homes []Home `json:"homes"`
}

// Home identifies a home attached to the account.
type Home struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Zone is a heating/cooling zone within a home.
type Zone struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Temperature is a reading reported in both units.
type Temperature struct {
	Celsius    float64 `json:"celsius"`
	Fahrenheit float64 `json:"fahrenheit"`
}

// Percentage is a reading reported as a percentage value.
type Percentage struct {
	Percentage float64 `json:"percentage"`
}

// ZoneSetting is the configured target for a zone.
type ZoneSetting struct {
	Type        string       `json:"type"`
	Temperature *Temperature `json:"temperature"`
}

// OpenWindow reports an open window detection for a zone.
type OpenWindow struct {
	DetectedTime           string `json:"detectedTime"`
	DurationInSeconds      int    `json:"durationInSeconds"`
	Expiry                 string `json:"expiry"`
	RemainingTimeInSeconds int    `json:"remainingTimeInSeconds"`
}

// ACPower reports the air conditioning activity for a zone.
type ACPower struct {
	Value string `json:"value"`
}

// ActivityDataPoints carries the heating/cooling activity of a zone.
type ActivityDataPoints struct {
	HeatingPower *Percentage `json:"heatingPower"`
	ACPower      *ACPower    `json:"acPower"`
}

// SensorDataPoints carries the sensor readings of a zone.
type SensorDataPoints struct {
	InsideTemperature *Temperature `json:"insideTemperature"`
	Humidity          *Percentage  `json:"humidity"`
}

// ZoneState is the full state of a zone as returned by the state endpoint.
type ZoneState struct {
	Setting            ZoneSetting        `json:"setting"`
	OpenWindow         *OpenWindow        `json:"openWindow"`
	ActivityDataPoints ActivityDataPoints `json:"activityDataPoints"`
	SensorDataPoints   SensorDataPoints   `json:"sensorDataPoints"`
}

// ZoneStateRecord pairs a zone name with its retrieved state.
type ZoneStateRecord struct {
	Name  string
	State ZoneState
}

// Weather is the outside weather report for a home.
type Weather struct {
	SolarIntensity     Percentage  `json:"solarIntensity"`
	OutsideTemperature Temperature `json:"outsideTemperature"`
}
