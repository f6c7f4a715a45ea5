package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/pipeline"
	"github.com/ppiankov/factgate/internal/verify"
)

// Tables are read with encoding/json rather than viper: viper lower-cases
// keys and treats dots as nesting, which would mangle aliases and keywords.

// LoadTables reads every lookup table the verification pipeline needs
func LoadTables(paths model.TablesConfig) (pipeline.Tables, error) {
	var tables pipeline.Tables
	var err error

	if tables.Entities, err = LoadEntities(paths.Entities); err != nil {
		return tables, err
	}
	if tables.Aliases, err = LoadMapping(paths.Aliases); err != nil {
		return tables, err
	}
	if tables.Attributes, err = LoadMapping(paths.Attributes); err != nil {
		return tables, err
	}
	if tables.Tolerances, err = LoadTolerances(paths.Tolerances); err != nil {
		return tables, err
	}
	return tables, nil
}

// LoadEntities reads a JSON array of canonical entity names
func LoadEntities(path string) ([]string, error) {
	var entities []string
	if err := readJSON(path, &entities); err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, errors.Newf("%s: no entities defined", path)
	}
	return entities, nil
}

// LoadMapping reads a JSON object of string to string, such as the alias
// or attribute keyword table
func LoadMapping(path string) (map[string]string, error) {
	mapping := map[string]string{}
	if err := readJSON(path, &mapping); err != nil {
		return nil, err
	}
	for k, v := range mapping {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			return nil, errors.Newf("%s: empty key or value (%q: %q)", path, k, v)
		}
	}
	return mapping, nil
}

// LoadTolerances reads {attribute: percent, "default": percent}
func LoadTolerances(path string) (verify.ToleranceTable, error) {
	table := verify.ToleranceTable{}
	if err := readJSON(path, &table); err != nil {
		return nil, err
	}
	for attr, pct := range table {
		if pct < 0 {
			return nil, errors.Newf("%s: negative tolerance %v for %s", path, pct, attr)
		}
	}
	return table, nil
}

// LoadPolicy reads and validates a promotion policy
func LoadPolicy(path string) (*model.PromotionPolicy, error) {
	var policy model.PromotionPolicy
	if err := readJSON(path, &policy); err != nil {
		return nil, err
	}
	if err := ValidatePolicy(&policy); err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return &policy, nil
}

// ValidatePolicy checks that a policy defines its default tier and that
// every criterion is in range
func ValidatePolicy(policy *model.PromotionPolicy) error {
	if len(policy.Tiers) == 0 {
		return errors.New("policy defines no tiers")
	}
	if _, ok := policy.Tiers[policy.DefaultTier]; !ok {
		return errors.Newf("default tier %q is not defined", policy.DefaultTier)
	}
	for name, tier := range policy.Tiers {
		c := tier.Criteria
		switch {
		case c.MinSources < 0:
			return errors.Newf("tier %s: min_sources must not be negative", name)
		case c.MinScore < 0 || c.MinScore > 100:
			return errors.Newf("tier %s: min_score must be within 0-100", name)
		case c.MaxAgeDays < 0:
			return errors.Newf("tier %s: max_age_days must not be negative", name)
		case c.MinConsensusAgreement < 0 || c.MinConsensusAgreement > 1:
			return errors.Newf("tier %s: min_consensus_agreement must be within 0-1", name)
		}
	}
	return nil
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.WithHint(errors.Wrapf(err, "table %s not found", path), initHint)
		}
		return errors.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	return nil
}
