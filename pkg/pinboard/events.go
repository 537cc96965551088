package pinboard

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// AssetUploaded does nothing and returns nil
func (n *NoopEventSink) AssetUploaded(ctx context.Context, ref *AssetReference) error {
	return nil
}

// PinCreated does nothing and returns nil
func (n *NoopEventSink) PinCreated(ctx context.Context, pin *Pin) error {
	return nil
}

// CommentAppended does nothing and returns nil
func (n *NoopEventSink) CommentAppended(ctx context.Context, pinID string, comment *Comment) error {
	return nil
}

// PinSaved does nothing and returns nil
func (n *NoopEventSink) PinSaved(ctx context.Context, pinID, userID string) error {
	return nil
}

// LoggingEventSink logs events but takes no other action.
// Useful for development and debugging
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

// AssetUploaded logs the upload event
func (l *LoggingEventSink) AssetUploaded(ctx context.Context, ref *AssetReference) error {
	l.logger.InfoContext(ctx, "asset uploaded", "asset_id", ref.ID, "content_type", ref.ContentType)
	return nil
}

// PinCreated logs the pin creation event
func (l *LoggingEventSink) PinCreated(ctx context.Context, pin *Pin) error {
	l.logger.InfoContext(ctx, "pin created", "pin_id", pin.ID, "author_id", pin.AuthorID, "category", pin.Category)
	return nil
}

// CommentAppended logs the comment event
func (l *LoggingEventSink) CommentAppended(ctx context.Context, pinID string, comment *Comment) error {
	l.logger.InfoContext(ctx, "comment appended", "pin_id", pinID, "comment_id", comment.ID, "author_id", comment.AuthorID)
	return nil
}

// PinSaved logs the save event
func (l *LoggingEventSink) PinSaved(ctx context.Context, pinID, userID string) error {
	l.logger.InfoContext(ctx, "pin saved", "pin_id", pinID, "user_id", userID)
	return nil
}

func emit(ctx context.Context, logger *slog.Logger, event string, fn func() error) {
	if err := fn(); err != nil {
		logger.WarnContext(ctx, "event sink failed", "event", event, "err", err)
	}
}
