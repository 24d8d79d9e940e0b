package attr

import "fmt"

// Op names the north-bound operation an attribute list is being validated
// for; Create and Set have different mandatory/create-only rules.
type Op uint8

const (
	OpCreate Op = iota
	OpSet
	OpGet
)

// Descriptor is one row of an object type's static attribute-descriptor
// table, published by the object family that owns the attribute namespace.
type Descriptor struct {
	ID                ID
	Kind              Kind
	MandatoryOnCreate bool
	CreateOnly        bool
	Settable          bool
	Gettable          bool
	// MandatoryIf, when non-nil, makes the attribute conditionally mandatory
	// on create — e.g. an encap next hop's tunnel_id is mandatory only when
	// its nh_type attribute is Encap. Called with the full incoming
	// attribute list so it can inspect sibling attributes.
	MandatoryIf func(List) bool
}

// Table is a static attribute-descriptor table indexed by position; lookups
// are linear, which is fine for the small (<30 row) tables every object
// family in this package defines.
type Table []Descriptor

func (t Table) find(id ID) (Descriptor, bool) {
	for _, d := range t {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Code names the kind of validation failure Validate can report. It is
// deliberately narrower than fib.Status: attr has no notion of the broader
// status taxonomy (InsufficientResources, ObjectInUse, ...) that only
// applies once an attribute list has passed validation and reached a store.
type Code uint8

const (
	CodeUnknownAttribute Code = iota
	CodeDuplicateAttribute
	CodeInvalidAttrValue
	CodeMandatoryAttributeMissing
	CodeCreateOnlyAttributeMissing
	CodeNotSettable
	CodeNotGettable
	CodeInvalidParameter
)

// Error reports a single validation failure, with the index of the
// offending attribute in the caller's list (for a missing mandatory
// attribute, the index of its descriptor in the table; -1 when not
// attribute-scoped, e.g. OpSet given zero or more than one attribute).
type Error struct {
	Code  Code
	Index int
	ID    ID
	Msg   string
}

func (e *Error) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("attribute %d (id %d): %s", e.Index, e.ID, e.Msg)
	}
	return e.Msg
}

// Validate checks attrs against table for the given operation:
//   - duplicate attribute ids are rejected, reporting the second occurrence's
//     index;
//   - on Create, every mandatory attribute (static or MandatoryIf) must be
//     present, and no read-only (non-settable, non-create-only) attribute may
//     be present;
//   - on Set, the list must carry exactly one attribute, which must be
//     settable and not create-only;
//   - any attribute id absent from the table is Unknown.
func Validate(op Op, table Table, attrs List) error {
	if op == OpSet && len(attrs) != 1 {
		return &Error{Code: CodeInvalidParameter, Index: -1, Msg: "set requires exactly one attribute"}
	}

	seen := make(map[ID]bool, len(attrs))
	for i, a := range attrs {
		if seen[a.ID] {
			return &Error{Code: CodeDuplicateAttribute, Index: i, ID: a.ID, Msg: "duplicate attribute"}
		}
		seen[a.ID] = true

		d, ok := table.find(a.ID)
		if !ok {
			return &Error{Code: CodeUnknownAttribute, Index: i, ID: a.ID, Msg: "unknown attribute"}
		}
		if a.Value.Kind() != d.Kind {
			return &Error{Code: CodeInvalidAttrValue, Index: i, ID: a.ID, Msg: fmt.Sprintf("expected %s, got %s", d.Kind, a.Value.Kind())}
		}

		switch op {
		case OpCreate:
			if !d.Settable && !d.CreateOnly && !d.MandatoryOnCreate {
				return &Error{Code: CodeNotSettable, Index: i, ID: a.ID, Msg: "attribute is read-only"}
			}
		case OpSet:
			if d.CreateOnly {
				return &Error{Code: CodeNotSettable, Index: i, ID: a.ID, Msg: "attribute is create-only"}
			}
			if !d.Settable {
				return &Error{Code: CodeNotSettable, Index: i, ID: a.ID, Msg: "attribute is not settable"}
			}
		}
	}

	if op == OpCreate {
		for i, d := range table {
			if !d.MandatoryOnCreate && d.MandatoryIf == nil {
				continue
			}
			required := d.MandatoryOnCreate || d.MandatoryIf(attrs)
			if required && !seen[d.ID] {
				return &Error{Code: CodeMandatoryAttributeMissing, Index: i, ID: d.ID, Msg: "mandatory attribute missing"}
			}
		}
	}

	return nil
}
