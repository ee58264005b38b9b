package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/BartekS5/subjectmap/pkg/models"
	"github.com/BartekS5/subjectmap/pkg/utils"
)

// RulesetFileError reports a ruleset that cannot be read, parsed or compiled.
type RulesetFileError struct {
	Path   string
	Reason string
	Err    error
}

func (e *RulesetFileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ruleset '%s': %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("ruleset '%s': %s", e.Path, e.Reason)
}

func (e *RulesetFileError) Unwrap() error { return e.Err }

// LoadCleanRuleset reads and compiles the stage-1 ruleset (YAML or JSON).
func LoadCleanRuleset(filePath string) (*models.CleanRuleset, error) {
	var rs models.CleanRuleset
	if err := readYAML(filePath, &rs); err != nil {
		return nil, err
	}
	if err := CompileCleanRuleset(&rs); err != nil {
		return nil, &RulesetFileError{Path: filePath, Reason: "invalid", Err: err}
	}
	return &rs, nil
}

// LoadGroupRuleset reads the stage-2 ruleset and fills in defaults.
func LoadGroupRuleset(filePath string) (*models.GroupRuleset, error) {
	var rs models.GroupRuleset
	if err := readYAML(filePath, &rs); err != nil {
		return nil, err
	}
	ApplyGroupDefaults(&rs)
	return &rs, nil
}

// CompileCleanRuleset validates operators and types and compiles patterns.
func CompileCleanRuleset(rs *models.CleanRuleset) error {
	if rs.RecordElement == "" {
		rs.RecordElement = defaultRecordElement
	}

	for i := range rs.Retain {
		p := &rs.Retain[i]
		if p.Field == "" {
			return fmt.Errorf("retain[%d]: field is required", i)
		}
		switch p.Op {
		case models.OpPresent, models.OpAbsent, models.OpEquals, models.OpNotEquals, models.OpIn:
		case models.OpMatches:
			re, err := regexp.Compile(p.Value)
			if err != nil {
				return fmt.Errorf("retain[%d]: bad pattern: %w", i, err)
			}
			p.SetRegexp(re)
		default:
			return fmt.Errorf("retain[%d]: unknown op %q", i, p.Op)
		}
	}

	seen := make(map[string]bool, len(rs.Fields))
	for i, f := range rs.Fields {
		if f.From == "" {
			return fmt.Errorf("fields[%d]: from is required", i)
		}
		if !utils.KnownType(f.Type) {
			return fmt.Errorf("fields[%d]: unknown type %q", i, f.Type)
		}
		if seen[f.Target()] {
			return fmt.Errorf("fields[%d]: duplicate output field %q", i, f.Target())
		}
		seen[f.Target()] = true
	}

	if rs.SiteID.From == "" {
		return fmt.Errorf("site_id: from is required")
	}
	if rs.SiteID.To == "" {
		rs.SiteID.To = "site_id"
	}
	if seen[rs.SiteID.To] {
		return fmt.Errorf("site_id: output field %q collides with a mapped field", rs.SiteID.To)
	}
	if rs.SiteID.Pattern != "" {
		re, err := regexp.Compile(rs.SiteID.Pattern)
		if err != nil {
			return fmt.Errorf("site_id: bad pattern: %w", err)
		}
		if re.NumSubexp() < 1 {
			return fmt.Errorf("site_id: pattern needs a capture group")
		}
		rs.SiteID.SetRegexp(re)
	}
	return nil
}

func ApplyGroupDefaults(rs *models.GroupRuleset) {
	if rs.KeyField == "" {
		rs.KeyField = "site_id"
	}
	if rs.GroupElement == "" {
		rs.GroupElement = "site"
	}
	if rs.IDAttribute == "" {
		rs.IDAttribute = "id"
	}
	if rs.RecordElement == "" {
		rs.RecordElement = "subject"
	}
}

func readYAML(filePath string, out interface{}) error {
	bytes, err := os.ReadFile(filePath)
	if err != nil {
		return &RulesetFileError{Path: filePath, Reason: "failed to read", Err: err}
	}
	if err := yaml.Unmarshal(bytes, out); err != nil {
		return &RulesetFileError{Path: filePath, Reason: "failed to parse", Err: err}
	}
	return nil
}
