package models

// Field is one named value of a record. Records keep their fields in
// document order.
type Field struct {
	Name  string
	Value string
}

type Record struct {
	Fields []Field
}

// Get returns the value of the first field called name.
func (r Record) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Without returns a copy of the record with every field called name removed.
func (r Record) Without(name string) Record {
	out := Record{Fields: make([]Field, 0, len(r.Fields))}
	for _, f := range r.Fields {
		if f.Name != name {
			out.Fields = append(out.Fields, f)
		}
	}
	return out
}

// RawRecordSet is the unparsed document delivered by a record source.
type RawRecordSet struct {
	Data   []byte
	Origin string
}

// CleanedRecordSet is the stage-1 output.
type CleanedRecordSet struct {
	Records   []Record
	SiteField string
	Total     int
	Dropped   int
}

// SiteGroup holds the records of one site, in input order.
type SiteGroup struct {
	SiteID  string
	Records []Record
}

// GroupedRecordSet is the stage-2 output: groups in first-seen order with
// unique site identifiers.
type GroupedRecordSet struct {
	Groups []SiteGroup
}

// SiteIDs lists the group identifiers in emission order.
func (g *GroupedRecordSet) SiteIDs() []string {
	ids := make([]string, 0, len(g.Groups))
	for _, grp := range g.Groups {
		ids = append(ids, grp.SiteID)
	}
	return ids
}

// GroupArtifact is the persisted form of one SiteGroup.
type GroupArtifact struct {
	SiteID   string
	Path     string
	FileName string
	Size     int64
}
