package mongo

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/query"
)

// missingPrefix names the helper fields the sort pipeline adds.
const missingPrefix = "__listorder_missing_"

// toBSON converts a value for storage. Objects become bson.D with sorted
// keys so that whole-object equality does not depend on map order.
func toBSON(v ir.Value) any {
	switch val := v.(type) {
	case ir.String:
		return string(val)
	case ir.Int:
		return int64(val)
	case ir.Bool:
		return bool(val)
	case ir.Array:
		out := make(bson.A, len(val))
		for i, elem := range val {
			out[i] = toBSON(elem)
		}
		return out
	case ir.Object:
		out := make(bson.D, 0, len(val))
		for _, k := range val.SortedKeys() {
			out = append(out, bson.E{Key: k, Value: toBSON(val[k])})
		}
		return out
	default:
		return nil
	}
}

// fromBSON converts a decoded driver value. Null reports ok=false.
func fromBSON(v any) (ir.Value, bool, error) {
	switch val := v.(type) {
	case bson.D:
		obj, err := objectFromD(val)
		return obj, err == nil, err
	case bson.M:
		obj := make(ir.Object, len(val))
		for k, raw := range val {
			fv, ok, err := fromBSON(raw)
			if err != nil {
				return nil, false, fmt.Errorf("field %q: %w", k, err)
			}
			if ok {
				obj[k] = fv
			}
		}
		return obj, true, nil
	case bson.A:
		arr := make(ir.Array, 0, len(val))
		for i, raw := range val {
			ev, ok, err := fromBSON(raw)
			if err != nil {
				return nil, false, fmt.Errorf("[%d]: %w", i, err)
			}
			if ok {
				arr = append(arr, ev)
			}
		}
		return arr, true, nil
	case bson.Null, bson.Undefined:
		return nil, false, nil
	default:
		return ir.FromAny(v)
	}
}

func objectFromD(d bson.D) (ir.Object, error) {
	obj := make(ir.Object, len(d))
	for _, e := range d {
		v, ok, err := fromBSON(e.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", e.Key, err)
		}
		if ok {
			obj[e.Key] = v
		}
	}
	return obj, nil
}

// toDocument splits a stored document into its identifier and body.
func toDocument(raw bson.D) (*ir.Document, error) {
	doc := &ir.Document{Fields: ir.Object{}}
	for _, e := range raw {
		if e.Key == "_id" {
			id, ok := e.Value.(string)
			if !ok {
				return nil, fmt.Errorf("document _id has type %T, want string", e.Value)
			}
			doc.ID = id
			continue
		}
		v, ok, err := fromBSON(e.Value)
		if err != nil {
			return nil, fmt.Errorf("document %v field %q: %w", doc.ID, e.Key, err)
		}
		if ok {
			doc.Fields[e.Key] = v
		}
	}
	return doc, nil
}

// fromDocument builds the stored form of doc with sorted body keys.
func fromDocument(doc *ir.Document) (bson.D, error) {
	out := bson.D{{Key: "_id", Value: doc.ID}}
	for _, k := range doc.Fields.SortedKeys() {
		if !query.ValidField(k) || k == "_id" {
			return nil, fmt.Errorf("%w: field %q cannot be stored", query.ErrInvalidQuery, k)
		}
		out = append(out, bson.E{Key: k, Value: toBSON(doc.Fields[k])})
	}
	return out, nil
}

// compileFilter translates a predicate into a Mongo filter document.
func compileFilter(p query.Predicate) (bson.D, error) {
	switch pred := p.(type) {
	case nil:
		return bson.D{}, nil
	case query.Equals:
		cond := bson.D{{Key: "$eq", Value: toBSON(pred.Value)}}
		if _, isArray := pred.Value.(ir.Array); !isArray {
			// A scalar $eq also matches arrays containing the scalar.
			cond = append(cond, bson.E{Key: "$not", Value: bson.D{{Key: "$type", Value: "array"}}})
		}
		return bson.D{{Key: pred.Field, Value: cond}}, nil
	case query.Compare:
		return bson.D{{Key: pred.Field, Value: bson.D{{Key: compareOp(pred.Op), Value: pred.Value}}}}, nil
	case query.Exists:
		return bson.D{{Key: pred.Field, Value: bson.D{{Key: "$exists", Value: true}}}}, nil
	case query.NotID:
		return bson.D{{Key: "_id", Value: bson.D{{Key: "$ne", Value: pred.ID}}}}, nil
	case query.And:
		if len(pred.Predicates) == 0 {
			return bson.D{}, nil
		}
		parts := make(bson.A, 0, len(pred.Predicates))
		for _, sub := range pred.Predicates {
			f, err := compileFilter(sub)
			if err != nil {
				return nil, err
			}
			parts = append(parts, f)
		}
		return bson.D{{Key: "$and", Value: parts}}, nil
	default:
		return nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compareOp(op query.Op) string {
	switch op {
	case query.Lt:
		return "$lt"
	case query.Lte:
		return "$lte"
	case query.Gt:
		return "$gt"
	default:
		return "$gte"
	}
}

// pipeline builds an aggregation that filters, sorts with missing fields
// last, and strips the helper fields again. Mongo's own $sort puts missing
// fields first in ascending order.
func pipeline(q query.Query, limit int64) (bson.A, error) {
	filter, err := compileFilter(q.Filter)
	if err != nil {
		return nil, err
	}

	stages := bson.A{bson.D{{Key: "$match", Value: filter}}}
	sortKeys := bson.D{}
	if len(q.Sort) > 0 {
		added := bson.D{}
		removed := bson.D{}
		for i, o := range q.Sort {
			helper := fmt.Sprintf("%s%d", missingPrefix, i)
			added = append(added, bson.E{Key: helper, Value: bson.D{{Key: "$eq", Value: bson.A{
				bson.D{{Key: "$type", Value: "$" + o.Field}}, "missing",
			}}}})
			removed = append(removed, bson.E{Key: helper, Value: 0})
			dir := 1
			if o.Descending {
				dir = -1
			}
			sortKeys = append(sortKeys, bson.E{Key: helper, Value: 1}, bson.E{Key: o.Field, Value: dir})
		}
		stages = append(stages, bson.D{{Key: "$addFields", Value: added}})
		sortKeys = append(sortKeys, bson.E{Key: "_id", Value: 1})
		stages = append(stages, bson.D{{Key: "$sort", Value: sortKeys}})
		if limit > 0 {
			stages = append(stages, bson.D{{Key: "$limit", Value: limit}})
		}
		stages = append(stages, bson.D{{Key: "$project", Value: removed}})
		return stages, nil
	}

	stages = append(stages, bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}})
	if limit > 0 {
		stages = append(stages, bson.D{{Key: "$limit", Value: limit}})
	}
	return stages, nil
}
