package pinboard

import (
	"context"
	"fmt"
)

// AuthorIDs returns the distinct user ids that posted pin or commented on it,
// in order of first appearance.
func AuthorIDs(pin *Pin) []string {
	if pin == nil {
		return nil
	}
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	add(pin.AuthorID)
	for _, c := range pin.Comments {
		add(c.AuthorID)
	}
	return ids
}

// LoadAuthors fetches the user records for ids. Users without a document are
// left out of the result.
func LoadAuthors(ctx context.Context, store ContentStore, ids []string) (map[string]*User, error) {
	authors := make(map[string]*User, len(ids))
	for _, id := range ids {
		docs, err := store.Fetch(ctx, NewQuery(TypeUser).Eq(FieldID, id).WithLimit(1))
		if err != nil {
			return nil, fmt.Errorf("load author %s: %w", id, err)
		}
		if len(docs) == 0 {
			continue
		}
		user, err := DecodeUser(docs[0])
		if err != nil {
			return nil, err
		}
		authors[id] = user
	}
	return authors, nil
}

func cloneAuthors(authors map[string]*User) map[string]*User {
	if authors == nil {
		return nil
	}
	out := make(map[string]*User, len(authors))
	for id, u := range authors {
		out[id] = cloneUser(u)
	}
	return out
}
