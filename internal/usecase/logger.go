package usecase

type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// AuditLog is the append-only history file of a destination directory.
type AuditLog interface {
	Append(level, message string) error
}

type Publisher interface {
	Publish(eventType string, data any)
}
