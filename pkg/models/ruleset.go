package models

import "regexp"

// Predicate operators understood by the retention stage.
const (
	OpPresent   = "present"
	OpAbsent    = "absent"
	OpEquals    = "equals"
	OpNotEquals = "not_equals"
	OpMatches   = "matches"
	OpIn        = "in"
)

// CleanRuleset drives the stage-1 transform: retention, renaming and
// site identifier injection.
type CleanRuleset struct {
	RecordElement string      `yaml:"record_element" json:"record_element"`
	Retain        []Predicate `yaml:"retain" json:"retain"`
	Fields        []FieldRule `yaml:"fields" json:"fields"`
	SiteID        SiteIDRule  `yaml:"site_id" json:"site_id"`
}

type Predicate struct {
	Field  string   `yaml:"field" json:"field"`
	Op     string   `yaml:"op" json:"op"`
	Value  string   `yaml:"value,omitempty" json:"value,omitempty"`
	Values []string `yaml:"values,omitempty" json:"values,omitempty"`

	re *regexp.Regexp
}

// Regexp returns the compiled pattern of a "matches" predicate.
func (p *Predicate) Regexp() *regexp.Regexp { return p.re }

// SetRegexp stores the compiled pattern; called once when the ruleset is loaded.
func (p *Predicate) SetRegexp(re *regexp.Regexp) { p.re = re }

type FieldRule struct {
	From    string `yaml:"from" json:"from"`
	To      string `yaml:"to,omitempty" json:"to,omitempty"`
	Type    string `yaml:"type,omitempty" json:"type,omitempty"`
	Format  string `yaml:"format,omitempty" json:"format,omitempty"`
	Default string `yaml:"default,omitempty" json:"default,omitempty"`
}

// Target is the output field name of the rule.
func (f FieldRule) Target() string {
	if f.To == "" {
		return f.From
	}
	return f.To
}

type SiteIDRule struct {
	From    string `yaml:"from" json:"from"`
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	To      string `yaml:"to,omitempty" json:"to,omitempty"`

	re *regexp.Regexp
}

func (s *SiteIDRule) Regexp() *regexp.Regexp { return s.re }

func (s *SiteIDRule) SetRegexp(re *regexp.Regexp) { s.re = re }

// GroupRuleset drives the stage-2 transform and the artifact layout.
type GroupRuleset struct {
	KeyField      string `yaml:"key_field" json:"key_field"`
	GroupElement  string `yaml:"group_element" json:"group_element"`
	IDAttribute   string `yaml:"id_attribute" json:"id_attribute"`
	RecordElement string `yaml:"record_element" json:"record_element"`
	DropKeyField  bool   `yaml:"drop_key_field" json:"drop_key_field"`
}
