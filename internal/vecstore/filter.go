package vecstore

import (
	"github.com/qdrant/go-client/qdrant"
)

// Filter expresses the two matches the boundary needs: field equals
// value and field in set.
type Filter struct {
	Must []Condition
}

// Condition matches a payload field. Exactly one of the Match fields
// should be set.
type Condition struct {
	Field string

	MatchInt     *int64
	MatchAnyInt  []int64
	MatchKeyword string
}

// MatchInt builds a "field equals integer" condition.
func MatchInt(field string, value int64) Condition {
	return Condition{Field: field, MatchInt: &value}
}

// MatchAnyInt builds a "field in integer set" condition.
func MatchAnyInt(field string, values []int64) Condition {
	return Condition{Field: field, MatchAnyInt: values}
}

// MatchKeyword builds a "field equals keyword" condition.
func MatchKeyword(field, value string) Condition {
	return Condition{Field: field, MatchKeyword: value}
}

// NewFilter builds a conjunctive filter from conditions.
func NewFilter(conds ...Condition) *Filter {
	return &Filter{Must: conds}
}

func (f *Filter) toQdrant() *qdrant.Filter {
	if f == nil || len(f.Must) == 0 {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(f.Must))
	for _, c := range f.Must {
		if qc := c.toQdrant(); qc != nil {
			must = append(must, qc)
		}
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func (c Condition) toQdrant() *qdrant.Condition {
	field := &qdrant.FieldCondition{Key: c.Field}
	switch {
	case c.MatchInt != nil:
		field.Match = &qdrant.Match{
			MatchValue: &qdrant.Match_Integer{Integer: *c.MatchInt},
		}
	case len(c.MatchAnyInt) > 0:
		field.Match = &qdrant.Match{
			MatchValue: &qdrant.Match_Integers{
				Integers: &qdrant.RepeatedIntegers{Integers: c.MatchAnyInt},
			},
		}
	case c.MatchKeyword != "":
		field.Match = &qdrant.Match{
			MatchValue: &qdrant.Match_Keyword{Keyword: c.MatchKeyword},
		}
	default:
		return nil
	}
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{Field: field},
	}
}
