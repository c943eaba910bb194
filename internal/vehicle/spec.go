// Package vehicle turns raw user-entered fields into a validated,
// canonical description of a vehicle and the service to perform on it.
package vehicle

import "strings"

// Raw field names accepted by Build.
const (
	FieldYear        = "year"
	FieldMake        = "make"
	FieldModel       = "model"
	FieldEngine      = "engine"
	FieldDrivetrain  = "drivetrain"
	FieldServiceType = "service_type"
)

// Drivetrain is the optional drive layout of a vehicle.
type Drivetrain string

const (
	FWD          Drivetrain = "FWD"
	RWD          Drivetrain = "RWD"
	AWD          Drivetrain = "AWD"
	FourWD       Drivetrain = "4WD"
	NoDrivetrain Drivetrain = ""
)

// Drivetrains lists the accepted drivetrain values in display order.
var Drivetrains = []Drivetrain{FWD, RWD, AWD, FourWD}

// Spec is a validated vehicle + service description. It is a value type;
// once built it is never modified.
type Spec struct {
	Year        string     `json:"year"`
	Make        string     `json:"make"`
	Model       string     `json:"model"`
	Engine      string     `json:"engine,omitempty"`
	Drivetrain  Drivetrain `json:"drivetrain,omitempty"`
	ServiceType string     `json:"service_type"`
}

// Build normalizes raw form fields into a Spec. Every field is trimmed;
// year, make, model and service_type must be non-empty and drivetrain, when
// given, must be one of FWD, RWD, AWD or 4WD (case-insensitive).
func Build(raw map[string]string) (Spec, error) {
	get := func(key string) string {
		return strings.TrimSpace(raw[key])
	}

	s := Spec{
		Year:        get(FieldYear),
		Make:        get(FieldMake),
		Model:       get(FieldModel),
		Engine:      get(FieldEngine),
		ServiceType: get(FieldServiceType),
	}

	required := []struct {
		field string
		value string
	}{
		{FieldYear, s.Year},
		{FieldMake, s.Make},
		{FieldModel, s.Model},
		{FieldServiceType, s.ServiceType},
	}
	for _, r := range required {
		if r.value == "" {
			return Spec{}, newValidationError(r.field, "", ErrRequired)
		}
	}

	if dt := get(FieldDrivetrain); dt != "" {
		d, ok := ParseDrivetrain(dt)
		if !ok {
			return Spec{}, newValidationError(FieldDrivetrain, dt, ErrInvalidDrivetrain)
		}
		s.Drivetrain = d
	}

	return s, nil
}

// ParseDrivetrain matches s against the accepted drivetrains, ignoring case.
func ParseDrivetrain(s string) (Drivetrain, bool) {
	for _, d := range Drivetrains {
		if strings.EqualFold(s, string(d)) {
			return d, true
		}
	}
	return NoDrivetrain, false
}

// Vehicle renders the "YEAR MAKE MODEL" line.
func (s Spec) Vehicle() string {
	return s.Year + " " + s.Make + " " + s.Model
}

// Fields renders the spec back into raw form fields; Build(s.Fields())
// reproduces s.
func (s Spec) Fields() map[string]string {
	m := map[string]string{
		FieldYear:        s.Year,
		FieldMake:        s.Make,
		FieldModel:       s.Model,
		FieldServiceType: s.ServiceType,
	}
	if s.Engine != "" {
		m[FieldEngine] = s.Engine
	}
	if s.Drivetrain != NoDrivetrain {
		m[FieldDrivetrain] = string(s.Drivetrain)
	}
	return m
}
