package pinboard

import (
	"context"
	"fmt"
)

// Session identifies the signed-in user.
type Session struct {
	UserID string
	User   *User
}

// StaticSession is a SessionProvider that always reports the same user.
// A zero StaticSession reports no session.
type StaticSession struct {
	UserID string
}

// Session implements SessionProvider.
func (s StaticSession) Session(ctx context.Context) (Session, bool) {
	if s.UserID == "" {
		return Session{}, false
	}
	return Session{UserID: s.UserID}, true
}

type sessionKey struct{}

// ContextWithSession returns a context carrying sess.
func ContextWithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// ContextSessions is a SessionProvider that reads the session placed on the
// request context by ContextWithSession.
type ContextSessions struct{}

// Session implements SessionProvider.
func (ContextSessions) Session(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(Session)
	if !ok || sess.UserID == "" {
		return Session{}, false
	}
	return sess, true
}

// LoadSessionUser resolves the session's user record. It returns
// ErrUnauthenticated without a session and ErrNotFound when the user
// document is missing.
func LoadSessionUser(ctx context.Context, store ContentStore, sessions SessionProvider) (*User, error) {
	if sessions == nil {
		return nil, ErrUnauthenticated
	}
	sess, ok := sessions.Session(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	if sess.User != nil {
		return cloneUser(sess.User), nil
	}

	docs, err := store.Fetch(ctx, NewQuery(TypeUser).Eq(FieldID, sess.UserID).WithLimit(1))
	if err != nil {
		return nil, fmt.Errorf("load session user %s: %w", sess.UserID, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("session user %s: %w", sess.UserID, ErrNotFound)
	}
	return DecodeUser(docs[0])
}
