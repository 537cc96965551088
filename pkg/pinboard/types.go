package pinboard

import "time"

// Document types stored in the content store.
const (
	TypePin  = "pin"
	TypeUser = "user"
)

// Reserved and well-known document fields.
const (
	FieldID        = "_id"
	FieldType      = "_type"
	FieldCreatedAt = "_createdAt"

	FieldCategory = "category"
	FieldAuthorID = "authorId"
	FieldComments = "comments"
	FieldSavedBy  = "savedBy"
)

// Status is the lifecycle of a keyed load.
type Status string

// Load status constants.
const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusEmpty   Status = "empty"
	StatusFailed  Status = "failed"
)

// User is a read-only profile record.
type User struct {
	ID               string `json:"_id,omitempty"`
	DisplayName      string `json:"displayName"`
	AvatarRef        string `json:"avatarRef,omitempty"`
	SourceIdentityID string `json:"sourceIdentityId,omitempty"`
}

// AssetReference points at an uploaded binary asset. Once a pin references it
// the asset is owned by that pin and never rewritten.
type AssetReference struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
}

// Comment is one entry of a pin's thread. Position is append order.
type Comment struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	AuthorID string `json:"authorId"`
}

// Pin is a user-authored content item: an image, its metadata and a comment
// thread. After creation it is only mutated by appends to Comments and
// SavedBy.
type Pin struct {
	ID             string         `json:"_id,omitempty"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	DestinationURL string         `json:"destinationUrl"`
	Image          AssetReference `json:"image"`
	AuthorID       string         `json:"authorId"`
	Category       string         `json:"category"`
	Comments       []Comment      `json:"comments,omitempty"`
	SavedBy        []string       `json:"savedBy,omitempty"`
	CreatedAt      time.Time      `json:"_createdAt"`
}

// CollectionMode selects one of the two disjoint profile collections.
type CollectionMode string

// Collection modes.
const (
	ModeAuthored CollectionMode = "created"
	ModeSaved    CollectionMode = "saved"
)

// ParseCollectionMode maps user input onto a CollectionMode.
func ParseCollectionMode(s string) (CollectionMode, error) {
	switch CollectionMode(s) {
	case ModeAuthored, "authored", "":
		return ModeAuthored, nil
	case ModeSaved:
		return ModeSaved, nil
	}
	return "", ErrInvalidMode
}

func clonePin(p *Pin) *Pin {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Comments = append([]Comment(nil), p.Comments...)
	cp.SavedBy = append([]string(nil), p.SavedBy...)
	return &cp
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}
