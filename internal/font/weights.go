package font

import (
	"regexp"
	"strconv"
)

// Weight is a CSS font weight, 100 through 900 in steps of 100.
type Weight int

const (
	Thin       Weight = 100
	ExtraLight Weight = 200
	Light      Weight = 300
	Regular    Weight = 400
	Medium     Weight = 500
	SemiBold   Weight = 600
	Bold       Weight = 700
	ExtraBold  Weight = 800
	Black      Weight = 900
)

var numericWeight = regexp.MustCompile(`^[1-9]00$`)

func (w Weight) Valid() bool {
	return w >= Thin && w <= Black && w%100 == 0
}

// Token is the variant name a font directory uses for the weight.
func (w Weight) Token() string {
	if w == Regular {
		return "regular"
	}
	return strconv.Itoa(int(w))
}

// ParseWeight maps a weight token ("100".."900" or "regular") to a Weight.
// Tokens are matched exactly: no case folding, whitespace, signs or padding.
func ParseWeight(token string) (Weight, error) {
	if token == "regular" {
		return Regular, nil
	}
	if !numericWeight.MatchString(token) {
		return 0, &UnknownWeightError{Token: token}
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, &UnknownWeightError{Token: token}
	}
	return Weight(n), nil
}
