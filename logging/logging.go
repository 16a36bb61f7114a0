package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// FldIP is the client IP a request or vote came from
	FldIP = "ip"
	// FldUser is the ID of the authenticated user
	FldUser = "user"
	// FldEvent is the ID of the event an operation works on
	FldEvent = "event"
	// FldItem is the ID of an item
	FldItem = "item"
	// FldSubject is the ID of a subject
	FldSubject = "subject"
	// FldLocation is the ID of a location filter
	FldLocation = "location"
	// FldMethod is the HTTP method of a request
	FldMethod = "method"
	// FldPath is the request path
	FldPath = "path"
	// FldStatus is the HTTP status written for a request
	FldStatus = "status"
	// FldLatency is the time spent serving a request
	FldLatency = "latency"
	// FldComponent names the subsystem writing the entry
	FldComponent = "component"
)

// Setup configures the global logrus logger. Unknown levels fall back to info.
func Setup(level, format string) {
	logrus.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Component returns an entry tagged with the given subsystem name.
func Component(name string) *logrus.Entry {
	return logrus.WithField(FldComponent, name)
}
