package outbox

import "github.com/sirupsen/logrus"

// logrusNop is the relay's fallback logger when the caller passes none,
// used mostly by the one-shot mode in tests and the -once relay binary.
func logrusNop() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}
