package pinboard

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout is the fixed-width UTC layout stores use for _createdAt so
// that lexical and chronological order agree.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Document is the store-neutral shape of a stored entity. Values are the
// generic JSON types: string, float64, bool, nil, []interface{} and
// map[string]interface{}.
type Document map[string]interface{}

// ID returns the document id or "".
func (d Document) ID() string {
	s, _ := d[FieldID].(string)
	return s
}

// Type returns the document type or "".
func (d Document) Type() string {
	s, _ := d[FieldType].(string)
	return s
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]interface{}(d)).(map[string]interface{})
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case Document:
		return Document(cloneValue(map[string]interface{}(t)).(map[string]interface{}))
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, val := range t {
			s[i] = cloneValue(val)
		}
		return s
	default:
		return v
	}
}

// Normalize converts an arbitrary JSON-encodable value into the generic
// representation used inside Documents.
func Normalize(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	return out, nil
}

// NormalizeDocument converts a driver-specific map into a Document.
func NormalizeDocument(v interface{}) (Document, error) {
	n, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	m, ok := n.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("normalize document: expected object, got %T", n)
	}
	return Document(m), nil
}

func encode(typ string, v interface{}) (Document, error) {
	doc, err := NormalizeDocument(v)
	if err != nil {
		return nil, err
	}
	doc[FieldType] = typ
	if doc.ID() == "" {
		delete(doc, FieldID)
	}
	return doc, nil
}

func decode(doc Document, v interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// EncodePin converts a pin into a pin document. Store-assigned fields that are
// unset on p are omitted.
func EncodePin(p *Pin) (Document, error) {
	doc, err := encode(TypePin, p)
	if err != nil {
		return nil, err
	}
	if p.CreatedAt.IsZero() {
		delete(doc, FieldCreatedAt)
	}
	return doc, nil
}

// DecodePin converts a pin document into a Pin.
func DecodePin(doc Document) (*Pin, error) {
	if t := doc.Type(); t != "" && t != TypePin {
		return nil, fmt.Errorf("decode pin: document %s has type %q", doc.ID(), t)
	}
	var p Pin
	if err := decode(doc, &p); err != nil {
		return nil, fmt.Errorf("decode pin %s: %w", doc.ID(), err)
	}
	return &p, nil
}

// EncodeUser converts a user into a user document.
func EncodeUser(u *User) (Document, error) {
	return encode(TypeUser, u)
}

// DecodeUser converts a user document into a User.
func DecodeUser(doc Document) (*User, error) {
	if t := doc.Type(); t != "" && t != TypeUser {
		return nil, fmt.Errorf("decode user: document %s has type %q", doc.ID(), t)
	}
	var u User
	if err := decode(doc, &u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", doc.ID(), err)
	}
	return &u, nil
}
