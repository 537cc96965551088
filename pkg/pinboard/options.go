package pinboard

import (
	"log/slog"
	"time"
)

// DefaultValidationWindow is how long the missing-fields flag stays raised
// after a rejected submission.
const DefaultValidationWindow = 2 * time.Second

type options struct {
	logger           *slog.Logger
	events           EventSink
	sessions         SessionProvider
	navigator        Navigator
	validationWindow time.Duration
	homePath         string
	relatedLimit     int
	loadAuthors      bool
}

// Option configures an orchestrator.
type Option func(*options)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventSink sets the sink notified after successful writes.
func WithEventSink(sink EventSink) Option {
	return func(o *options) {
		o.events = sink
	}
}

// WithSessions sets the provider used to resolve the current user.
func WithSessions(sessions SessionProvider) Option {
	return func(o *options) {
		o.sessions = sessions
	}
}

// WithSession is shorthand for a StaticSession provider.
func WithSession(userID string) Option {
	return WithSessions(StaticSession{UserID: userID})
}

// WithNavigator sets where the creator navigates after a successful create.
func WithNavigator(nav Navigator) Option {
	return func(o *options) {
		o.navigator = nav
	}
}

// WithValidationWindow overrides DefaultValidationWindow.
func WithValidationWindow(d time.Duration) Option {
	return func(o *options) {
		o.validationWindow = d
	}
}

// WithHomePath overrides the path navigated to after a create. Default "/".
func WithHomePath(path string) Option {
	return func(o *options) {
		o.homePath = path
	}
}

func buildOptions(opts []Option) options {
	o := options{
		validationWindow: DefaultValidationWindow,
		homePath:         "/",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.events == nil {
		o.events = NewNoopEventSink()
	}
	if o.navigator == nil {
		o.navigator = NavigatorFunc(func(string) {})
	}
	if o.validationWindow <= 0 {
		o.validationWindow = DefaultValidationWindow
	}
	return o
}

// WithRelatedLimit caps the related set fetched by a DetailLoader. Zero
// means no limit.
func WithRelatedLimit(n int) Option {
	return func(o *options) {
		o.relatedLimit = n
	}
}

// WithAuthors makes a DetailLoader also resolve the users who posted and
// commented on the pin.
func WithAuthors() Option {
	return func(o *options) {
		o.loadAuthors = true
	}
}
