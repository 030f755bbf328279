package logging

import "github.com/sirupsen/logrus"

// sensitiveKeys never make it into a log line verbatim, even if a
// caller accidentally attaches one (e.g. a warehouse DSN or a model
// API key carried in a context value).
var sensitiveKeys = map[string]struct{}{
	"dsn":        {},
	"api_key":    {},
	"password":   {},
	"secret":     {},
	"token":      {},
	"credential": {},
}

// RedactingHook is a logrus.Hook that masks the value of any field
// whose key matches a known-sensitive name. Install once on the root
// logger at startup.
type RedactingHook struct{}

func (RedactingHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (RedactingHook) Fire(entry *logrus.Entry) error {
	for k := range entry.Data {
		if _, sensitive := sensitiveKeys[k]; sensitive {
			entry.Data[k] = "***redacted***"
		}
	}
	return nil
}
