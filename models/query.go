package models

// EntityType names a collection/table of the case store
type EntityType string

const (
	EntityDTR       EntityType = "dtrs"
	EntityRMA       EntityType = "rmas"
	EntityProjector EntityType = "projectors"
	EntitySite      EntityType = "sites"
	EntityCounter   EntityType = "counters"
)

// AllEntities lists every collection the engine reads or writes.
var AllEntities = []EntityType{EntityDTR, EntityRMA, EntityProjector, EntitySite, EntityCounter}

// Filter is a conjunction of top-level field equalities.
type Filter map[string]interface{}

// FindOptions controls ordering and paging of Find.
type FindOptions struct {
	SortBy   string
	SortDesc bool
	Skip     int
	Limit    int
}

// Condition guards UpdateByID. With IsEmpty the field must be absent or
// empty; otherwise it must currently equal Equals. Every clause in And must
// hold as well.
type Condition struct {
	Field   string
	IsEmpty bool
	Equals  interface{}
	And     []Condition
}

// Clauses flattens c and its And list into single-field checks.
func (c *Condition) Clauses() []Condition {
	if c == nil {
		return nil
	}
	clauses := []Condition{{Field: c.Field, IsEmpty: c.IsEmpty, Equals: c.Equals}}
	for i := range c.And {
		clauses = append(clauses, c.And[i].Clauses()...)
	}
	return clauses
}

// Counter is a named monotonically increasing sequence.
type Counter struct {
	ID    string `json:"id" dynamodbav:"id"`
	Value int64  `json:"value" dynamodbav:"value"`
}
