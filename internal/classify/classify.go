// Package classify decides how a JSON payload from an unknown REST resource
// should be presented.
//
// Classification is purely structural: it tolerates `{data: ...}` collection
// envelopes and `{id, attributes: {...}}` record envelopes (as produced by
// JSON:API-style servers) without the caller declaring which convention a
// resource follows. It never fails; shapes that match nothing degrade to
// [KindEmpty].
package classify

import (
	"github.com/jpalmerr/resourceboard/internal/jsonvalue"
)

// Kind is the presentation decision for a payload.
type Kind string

const (
	// KindMedia marks a collection of uploaded files (MIME type plus URL).
	KindMedia Kind = "media"

	// KindTabular marks a collection of records rendered as table rows.
	KindTabular Kind = "tabular"

	// KindEmpty marks a payload with nothing to show.
	KindEmpty Kind = "empty"
)

// Payload is the result of classifying a raw payload.
type Payload struct {
	Kind Kind

	// Items holds the effective records in payload order.
	Items []jsonvalue.Value

	// Columns is only set for KindTabular.
	Columns []string
}

// mimeFields are the member names accepted as a MIME type marker.
var mimeFields = []string{"mime", "mimeType", "mime_type"}

// excludedColumns are never shown as regular table columns. Identifier and
// timestamp fields are re-added at fixed positions by InferColumns.
var excludedColumns = map[string]struct{}{
	"id":                 {},
	"documentId":         {},
	"password":           {},
	"resetPasswordToken": {},
	"confirmationToken":  {},
	"createdAt":          {},
	"updatedAt":          {},
	"publishedAt":        {},
	"created_at":         {},
	"updated_at":         {},
	"published_at":       {},
	"localizations":      {},
	"locale":             {},
	"provider":           {},
	"blocked":            {},
	"formats":            {},
}

const (
	idColumn          = "id"
	createdAtColumn   = "createdAt"
	publishedAtColumn = "publishedAt"
)

// Classify inspects a successful payload and decides its presentation.
func Classify(payload jsonvalue.Value) Payload {
	candidates := Candidates(Unwrap(payload))
	if len(candidates) == 0 {
		return Payload{Kind: KindEmpty, Items: []jsonvalue.Value{}}
	}

	items := make([]jsonvalue.Value, len(candidates))
	for i, c := range candidates {
		items[i] = EffectiveRecord(c)
	}

	if IsMedia(items[0]) {
		return Payload{Kind: KindMedia, Items: items}
	}

	return Payload{
		Kind:    KindTabular,
		Items:   items,
		Columns: InferColumns(items[0]),
	}
}

// Unwrap strips at most one `data` envelope: when payload is an object whose
// `data` member is an array or an object, that member is returned; otherwise
// payload itself. A scalar `data` member is a real field, not an envelope, so
// unwrapping an already unwrapped record keeps it.
func Unwrap(payload jsonvalue.Value) jsonvalue.Value {
	if payload.Has("data", jsonvalue.KindArray, jsonvalue.KindObject) {
		data, _ := payload.Field("data")
		return data
	}
	return payload
}

// Candidates turns the working value into candidate items: the elements of
// an array, a single object as a one-element sequence, nothing otherwise.
func Candidates(working jsonvalue.Value) []jsonvalue.Value {
	switch working.Kind() {
	case jsonvalue.KindArray:
		return working.Elements()
	case jsonvalue.KindObject:
		return []jsonvalue.Value{working}
	default:
		return nil
	}
}

// EffectiveRecord flattens one level of per-item envelope. An item with an
// object `attributes` member yields those attributes, led by the item's own
// `id` when the attributes do not carry one. Any other item is its own record.
func EffectiveRecord(item jsonvalue.Value) jsonvalue.Value {
	attrs, ok := item.Field("attributes")
	if !ok || attrs.Kind() != jsonvalue.KindObject {
		return item
	}

	id, hasID := item.Field(idColumn)
	if !hasID || attrs.Has(idColumn) {
		return attrs
	}

	members := make([]jsonvalue.Member, 0, attrs.Len()+1)
	members = append(members, jsonvalue.Member{Key: idColumn, Value: id})
	members = append(members, attrs.Members()...)
	return jsonvalue.NewObject(members...)
}

// IsMedia reports whether a record looks like an uploaded file: a non-empty
// MIME type field together with a non-empty `url`.
func IsMedia(record jsonvalue.Value) bool {
	if !nonEmptyString(record, "url") {
		return false
	}
	for _, f := range mimeFields {
		if nonEmptyString(record, f) {
			return true
		}
	}
	return false
}

func nonEmptyString(record jsonvalue.Value, key string) bool {
	v, ok := record.Field(key)
	if !ok {
		return false
	}
	s, ok := v.AsString()
	return ok && s != ""
}

// InferColumns derives the table columns from a single record: `id` first,
// the record's keys in document order minus the excluded names, then the
// creation and publication timestamps.
func InferColumns(record jsonvalue.Value) []string {
	keys := record.Keys()
	columns := make([]string, 0, len(keys)+3)
	columns = append(columns, idColumn)
	for _, k := range keys {
		if _, skip := excludedColumns[k]; skip {
			continue
		}
		columns = append(columns, k)
	}
	return append(columns, createdAtColumn, publishedAtColumn)
}
