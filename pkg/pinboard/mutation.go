package pinboard

import "fmt"

// Mutation is an atomic, document-level patch. Stores apply every operation
// of a mutation in one transaction or not at all.
type Mutation struct {
	ID      string
	Ensure  []EnsureOp
	Appends []AppendOp
}

// EnsureOp initializes Path to Default when the field is absent.
type EnsureOp struct {
	Path    string
	Default interface{}
}

// AppendOp inserts Entries at the tail of the list at Path. With Unique set,
// entries already present are skipped: compared by KeyField for object
// entries, or by value when KeyField is empty.
type AppendOp struct {
	Path     string
	Entries  []interface{}
	Unique   bool
	KeyField string
}

// Validate rejects mutations the stores cannot express.
func (m Mutation) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: mutation id is required", ErrInvalidQuery)
	}
	for _, op := range m.Ensure {
		if !fieldPattern.MatchString(op.Path) || op.Path == FieldID || op.Path == FieldType {
			return fmt.Errorf("%w: ensure path %q", ErrInvalidQuery, op.Path)
		}
	}
	for _, op := range m.Appends {
		if !fieldPattern.MatchString(op.Path) || op.Path == FieldID || op.Path == FieldType {
			return fmt.Errorf("%w: append path %q", ErrInvalidQuery, op.Path)
		}
		if op.KeyField != "" && !fieldPattern.MatchString(op.KeyField) {
			return fmt.Errorf("%w: key field %q", ErrInvalidQuery, op.KeyField)
		}
	}
	return nil
}

// Apply runs the mutation against doc in place. Stores that cannot express
// the patch natively read the document, call Apply and write it back inside
// one transaction.
func (m Mutation) Apply(doc Document) error {
	for _, op := range m.Ensure {
		if v, ok := doc[op.Path]; ok && v != nil {
			continue
		}
		def, err := Normalize(op.Default)
		if err != nil {
			return err
		}
		doc[op.Path] = def
	}

	for _, op := range m.Appends {
		var list []interface{}
		switch current := doc[op.Path].(type) {
		case nil:
			list = []interface{}{}
		case []interface{}:
			list = current
		default:
			return fmt.Errorf("field %s is %T, not a list", op.Path, current)
		}

		for _, entry := range op.Entries {
			n, err := Normalize(entry)
			if err != nil {
				return err
			}
			if op.Unique && containsEntry(list, n, op.KeyField) {
				continue
			}
			list = append(list, n)
		}
		doc[op.Path] = list
	}
	return nil
}

// EntryKeys returns the identity of each entry under op's uniqueness rule.
func (op AppendOp) EntryKeys() []interface{} {
	keys := make([]interface{}, 0, len(op.Entries))
	for _, entry := range op.Entries {
		n, err := Normalize(entry)
		if err != nil {
			continue
		}
		keys = append(keys, entryKey(n, op.KeyField))
	}
	return keys
}

func entryKey(v interface{}, keyField string) interface{} {
	if keyField == "" {
		return v
	}
	if m, ok := v.(map[string]interface{}); ok {
		return m[keyField]
	}
	return nil
}

func containsEntry(list []interface{}, entry interface{}, keyField string) bool {
	key := entryKey(entry, keyField)
	if key == nil {
		return false
	}
	for _, el := range list {
		if k := entryKey(el, keyField); k != nil && fmt.Sprint(k) == fmt.Sprint(key) {
			return true
		}
	}
	return false
}
