package config

import (
	"encoding/json"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/verify"
)

// DefaultEntities is the built-in list of canonical entity names
func DefaultEntities() []string {
	return []string{
		"Argentina", "Australia", "Austria", "Bangladesh", "Belgium", "Brazil",
		"Canada", "Chad", "Chile", "China", "Colombia", "Denmark", "Egypt",
		"Ethiopia", "Finland", "France", "Germany", "Greece", "India",
		"Indonesia", "Iran", "Ireland", "Israel", "Italy", "Japan", "Kenya",
		"Mexico", "Netherlands", "New Zealand", "Nigeria", "Norway", "Pakistan",
		"Philippines", "Poland", "Portugal", "Russia", "Saudi Arabia",
		"South Africa", "South Korea", "Spain", "Sweden", "Switzerland",
		"Thailand", "Turkey", "Ukraine", "United Kingdom", "United States",
		"Vietnam",
	}
}

// DefaultAliases maps common alternative names and demonyms to entities
func DefaultAliases() map[string]string {
	return map[string]string{
		"USA":                      "United States",
		"U.S.":                     "United States",
		"United States of America": "United States",
		"UK":                       "United Kingdom",
		"U.K.":                     "United Kingdom",
		"Britain":                  "United Kingdom",
		"Great Britain":            "United Kingdom",
		"British":                  "United Kingdom",
		"Korea":                    "South Korea",
		"Republic of Korea":        "South Korea",
		"Holland":                  "Netherlands",
		"Dutch":                    "Netherlands",
		"German":                   "Germany",
		"French":                   "France",
		"Japanese":                 "Japan",
		"Chinese":                  "China",
		"PRC":                      "China",
		"Russian Federation":       "Russia",
		"Türkiye":                  "Turkey",
		"Viet Nam":                 "Vietnam",
	}
}

// DefaultAttributes maps context keywords to attributes
func DefaultAttributes() map[string]string {
	return map[string]string{
		"population":      "population",
		"inhabitants":     "population",
		"people":          "population",
		"residents":       "population",
		"gdp":             "gdp",
		"gross domestic":  "gdp",
		"economy":         "gdp",
		"gdp per capita":  "gdp_per_capita",
		"per capita":      "gdp_per_capita",
		"inflation":       "inflation",
		"unemployment":    "unemployment_rate",
		"area":            "area",
		"square km":       "area",
		"square miles":    "area",
		"km2":             "area",
		"life expectancy": "life_expectancy",
		"founded":         "founded_year",
		"independence":    "independence_year",
		"debt":            "public_debt",
	}
}

// DefaultTolerances are percent tolerances per attribute
func DefaultTolerances() verify.ToleranceTable {
	return verify.ToleranceTable{
		"default":           verify.DefaultTolerance,
		"population":        2,
		"gdp":               5,
		"gdp_per_capita":    5,
		"inflation":         10,
		"unemployment_rate": 10,
		"area":              1,
		"life_expectancy":   2,
		"founded_year":      0,
		"independence_year": 0,
	}
}

// DefaultPolicy is the built-in promotion policy
func DefaultPolicy() *model.PromotionPolicy {
	return &model.PromotionPolicy{
		Tiers: map[string]model.RiskTier{
			model.TierHigh: {
				Description: "Headline economic figures quoted in news and policy",
				Criteria: model.Criteria{
					MinSources:            3,
					MinScore:              85,
					MaxAgeDays:            30,
					RequireAssay:          true,
					MinConsensusAgreement: 0.8,
				},
				Attributes: []string{"gdp", "gdp_per_capita", "inflation", "unemployment_rate", "public_debt"},
			},
			model.TierMedium: {
				Description: "Demographic figures that change slowly",
				Criteria: model.Criteria{
					MinSources:            2,
					MinScore:              70,
					MaxAgeDays:            180,
					MinConsensusAgreement: 0.7,
				},
				Attributes: []string{"population", "life_expectancy"},
			},
			model.TierLow: {
				Description: "Stable reference data",
				Criteria: model.Criteria{
					MinSources: 1,
					MinScore:   50,
					MaxAgeDays: 3650,
				},
				Attributes: []string{"area", "founded_year", "independence_year"},
			},
		},
		DefaultTier: model.TierMedium,
		CompensatingControls: map[string]bool{
			"manual_review":  false,
			"source_pinning": true,
		},
	}
}

// WriteDefaults writes the config file and every default table under the
// paths in cfg. Existing files are kept unless overwrite is set.
func WriteDefaults(configPath string, cfg *model.Config, overwrite bool) ([]string, error) {
	files := []struct {
		path  string
		value any
	}{
		{cfg.Tables.Entities, DefaultEntities()},
		{cfg.Tables.Aliases, DefaultAliases()},
		{cfg.Tables.Attributes, DefaultAttributes()},
		{cfg.Tables.Tolerances, DefaultTolerances()},
		{cfg.Tables.Policy, DefaultPolicy()},
	}

	var written []string
	if err := WriteConfig(configPath, cfg, overwrite); err != nil {
		return nil, err
	}
	written = append(written, configPath)

	for _, f := range files {
		data, err := json.MarshalIndent(f.value, "", "  ")
		if err != nil {
			return written, errors.Wrapf(err, "marshal %s", filepath.Base(f.path))
		}
		if err := writeFile(f.path, append(data, '\n'), overwrite); err != nil {
			return written, err
		}
		written = append(written, f.path)
	}
	return written, nil
}
