package etl

import (
	"strconv"
	"strings"

	"github.com/BartekS5/subjectmap/pkg/models"
	"github.com/BartekS5/subjectmap/pkg/utils"
)

// Transformer runs the two structural stages over a raw document. Both
// stages are pure functions of their input and the rulesets; the run
// context is only used for logging dropped records.
type Transformer struct {
	CleanRules *models.CleanRuleset
	GroupRules *models.GroupRuleset
}

func NewTransformer(clean *models.CleanRuleset, group *models.GroupRuleset) *Transformer {
	return &Transformer{CleanRules: clean, GroupRules: group}
}

// Transform runs stage 1 and stage 2 back to back.
func (t *Transformer) Transform(rc *RunContext, raw *models.RawRecordSet) (*models.GroupedRecordSet, *models.CleanedRecordSet, error) {
	cleaned, err := t.Clean(rc, raw)
	if err != nil {
		return nil, nil, err
	}
	grouped, err := t.Group(cleaned)
	if err != nil {
		return nil, cleaned, err
	}
	return grouped, cleaned, nil
}

// Clean filters records by the retention predicates, maps fields and
// injects the derived site identifier.
func (t *Transformer) Clean(rc *RunContext, raw *models.RawRecordSet) (*models.CleanedRecordSet, error) {
	rs := t.CleanRules
	records, err := ParseRecords(raw.Data, rs.RecordElement)
	if err != nil {
		return nil, &MalformedInputError{Origin: raw.Origin, Err: err}
	}

	if err := checkReferencedFields(rs, records); err != nil {
		return nil, err
	}

	out := &models.CleanedRecordSet{SiteField: rs.SiteID.To, Total: len(records)}
	for i, rec := range records {
		if !retained(rs.Retain, rec) {
			rc.Log.Debugf("Record %d dropped by retention rules", i)
			out.Dropped++
			continue
		}

		cleaned, err := mapFields(rs.Fields, rec)
		if err != nil {
			rc.Log.Warnf("Record %d dropped: %v", i, err)
			out.Dropped++
			continue
		}

		siteID, ok := deriveSiteID(&rs.SiteID, rec)
		if !ok {
			rc.Log.Warnf("Record %d dropped: no site identifier derivable from field %q", i, rs.SiteID.From)
			out.Dropped++
			continue
		}
		cleaned = cleaned.Without(rs.SiteID.To)
		cleaned.Fields = append(cleaned.Fields, models.Field{Name: rs.SiteID.To, Value: siteID})
		out.Records = append(out.Records, cleaned)
	}
	return out, nil
}

// Group partitions cleaned records by the key field. Groups come out in
// first-seen order and records keep their relative order.
func (t *Transformer) Group(cleaned *models.CleanedRecordSet) (*models.GroupedRecordSet, error) {
	rs := t.GroupRules
	index := make(map[string]int)
	grouped := &models.GroupedRecordSet{}

	for i, rec := range cleaned.Records {
		id, ok := rec.Get(rs.KeyField)
		if !ok || id == "" {
			return nil, &RulesetError{Stage: "group", Field: rs.KeyField, Reason: "cleaned record " + strconv.Itoa(i) + " has no value"}
		}
		if rs.DropKeyField {
			rec = rec.Without(rs.KeyField)
		}
		pos, seen := index[id]
		if !seen {
			pos = len(grouped.Groups)
			index[id] = pos
			grouped.Groups = append(grouped.Groups, models.SiteGroup{SiteID: id})
		}
		grouped.Groups[pos].Records = append(grouped.Groups[pos].Records, rec)
	}
	return grouped, nil
}

// checkReferencedFields fails when a field the ruleset needs is carried by
// none of the input records.
func checkReferencedFields(rs *models.CleanRuleset, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	present := make(map[string]bool)
	for _, rec := range records {
		for _, f := range rec.Fields {
			present[f.Name] = true
		}
	}

	for _, p := range rs.Retain {
		if p.Op != models.OpAbsent && !present[p.Field] {
			return &RulesetError{Stage: "clean", Field: p.Field, Reason: "retention predicate refers to a field no record carries"}
		}
	}
	for _, f := range rs.Fields {
		if f.Default == "" && !present[f.From] {
			return &RulesetError{Stage: "clean", Field: f.From, Reason: "mapped field not found in input"}
		}
	}
	if !present[rs.SiteID.From] {
		return &RulesetError{Stage: "clean", Field: rs.SiteID.From, Reason: "site identifier source not found in input"}
	}
	return nil
}

func retained(preds []models.Predicate, rec models.Record) bool {
	for i := range preds {
		if !holds(&preds[i], rec) {
			return false
		}
	}
	return true
}

func holds(p *models.Predicate, rec models.Record) bool {
	v, ok := rec.Get(p.Field)
	switch p.Op {
	case models.OpPresent:
		return ok && strings.TrimSpace(v) != ""
	case models.OpAbsent:
		return !ok || strings.TrimSpace(v) == ""
	case models.OpEquals:
		return ok && v == p.Value
	case models.OpNotEquals:
		return !ok || v != p.Value
	case models.OpMatches:
		return ok && p.Regexp() != nil && p.Regexp().MatchString(v)
	case models.OpIn:
		if !ok {
			return false
		}
		for _, want := range p.Values {
			if v == want {
				return true
			}
		}
	}
	return false
}

func mapFields(rules []models.FieldRule, rec models.Record) (models.Record, error) {
	if len(rules) == 0 {
		out := models.Record{Fields: make([]models.Field, len(rec.Fields))}
		copy(out.Fields, rec.Fields)
		return out, nil
	}

	out := models.Record{Fields: make([]models.Field, 0, len(rules)+1)}
	for _, r := range rules {
		v, ok := rec.Get(r.From)
		if (!ok || v == "") && r.Default != "" {
			v, ok = r.Default, true
		}
		if !ok {
			continue
		}
		conv, err := utils.ConvertValue(v, r.Type, r.Format)
		if err != nil {
			return out, &RulesetError{Stage: "clean", Field: r.From, Reason: err.Error()}
		}
		out.Fields = append(out.Fields, models.Field{Name: r.Target(), Value: conv})
	}
	return out, nil
}

func deriveSiteID(rule *models.SiteIDRule, rec models.Record) (string, bool) {
	v, ok := rec.Get(rule.From)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if re := rule.Regexp(); re != nil {
		m := re.FindStringSubmatch(v)
		if m == nil {
			return "", false
		}
		v = m[1]
	}
	return v, v != ""
}
