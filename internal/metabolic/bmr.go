package metabolic

import (
	"math"
	"strings"
)

type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

// ParseGender treats anything that is not recognisably female as male,
// which selects the male coefficient sets.
func ParseGender(raw string) Gender {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "female", "f", "woman":
		return Female
	default:
		return Male
	}
}

type ActivityLevel string

const (
	Sedentary        ActivityLevel = "sedentary"
	ModeratelyActive ActivityLevel = "moderately_active"
	VeryActive       ActivityLevel = "very_active"
)

var activityMultipliers = map[ActivityLevel]float64{
	Sedentary:        1.2,
	ModeratelyActive: 1.55,
	VeryActive:       1.725,
}

// ParseActivityLevel returns ModeratelyActive for unknown input.
func ParseActivityLevel(raw string) (ActivityLevel, bool) {
	level := ActivityLevel(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := activityMultipliers[level]; ok {
		return level, true
	}
	return ModeratelyActive, false
}

// Multiplier returns the TDEE multiplier for level.
func Multiplier(level ActivityLevel) float64 {
	if m, ok := activityMultipliers[level]; ok {
		return m
	}
	return activityMultipliers[ModeratelyActive]
}

// bmrCoefficients: kcal = w*weightKg + h*heightCm + c
type bmrCoefficients struct {
	w, h, c float64
}

var (
	male18to30   = bmrCoefficients{14.4, 3.13, 113}
	male30to60   = bmrCoefficients{11.4, 5.41, -137}
	male60plus   = bmrCoefficients{11.4, 5.41, -256}
	female18to30 = bmrCoefficients{10.4, 6.15, -282}
	female30to60 = bmrCoefficients{8.18, 5.02, -11.6}
	female60plus = bmrCoefficients{8.52, 4.21, 10.7}
)

func coefficientsFor(age int, gender Gender) bmrCoefficients {
	if gender == Female {
		switch {
		case age < 30:
			return female18to30
		case age < 60:
			return female30to60
		default:
			return female60plus
		}
	}
	switch {
	case age < 30:
		return male18to30
	case age < 60:
		return male30to60
	default:
		return male60plus
	}
}

// ComputeBMR returns basal metabolic rate in kcal using the Henry/Oxford
// age-banded equations. Ages under 18 use the youngest band.
func ComputeBMR(weightKg, heightCm float64, age int, gender Gender) float64 {
	c := coefficientsFor(age, gender)
	return c.w*weightKg + c.h*heightCm + c.c
}

// ComputeTDEE multiplies bmr by the activity multiplier. Unknown levels count
// as moderately active.
func ComputeTDEE(bmr float64, level ActivityLevel) float64 {
	return bmr * Multiplier(level)
}

func round(v float64) int {
	return int(math.Round(v))
}
