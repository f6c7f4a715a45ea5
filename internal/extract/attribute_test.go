package extract

import (
	"testing"

	"github.com/ppiankov/factgate/internal/model"
)

var testKeywords = map[string]string{
	"gdp":             "gdp",
	"gdp per capita":  "gdp_per_capita",
	"population":      "population",
	"people":          "population",
	"life expectancy": "life_expectancy",
	"area":            "area",
}

func firstClaim(t *testing.T, text string) model.NumericClaim {
	t.Helper()
	claims := NumericOnly(ExtractClaims(text))
	if len(claims) == 0 {
		t.Fatalf("No numeric claim in %q", text)
	}
	return claims[0]
}

func TestInferAttribute(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Japan's GDP per capita is 33,000 dollars", "gdp_per_capita"},
		{"Japan's GDP is 4.2 trillion", "gdp"},
		{"home to 125 million people", "population"},
		{"Its surface area is 377,975 km2", "area"},
		{"Life expectancy: 84 years", "life_expectancy"},
	}

	for _, tt := range tests {
		got, ok := InferAttribute(firstClaim(t, tt.text), testKeywords)
		if !ok {
			t.Errorf("%q: expected %q, got none", tt.text, tt.want)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.text, tt.want, got)
		}
	}
}

func TestInferAttribute_None(t *testing.T) {
	for _, text := range []string{
		"it has 47 prefectures",
		"in many areas 40 schools closed", // "areas" is not "area"
	} {
		if got, ok := InferAttribute(firstClaim(t, text), testKeywords); ok {
			t.Errorf("%q: expected none, got %q", text, got)
		}
	}
}

func TestInferAttribute_MultiWordSubstring(t *testing.T) {
	claim := model.NumericClaim{Value: "84", LeftContext: "average life expectancy:", RightContext: " years"}
	got, ok := InferAttribute(claim, testKeywords)
	if !ok || got != "life_expectancy" {
		t.Errorf("Expected life_expectancy, got %q (ok=%v)", got, ok)
	}
}
