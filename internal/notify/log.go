package notify

import "github.com/yanun0323/logs"

// LogNotifier mirrors every event into the process log.
type LogNotifier struct{}

func NewLogNotifier() LogNotifier { return LogNotifier{} }

func (LogNotifier) Notify(e Event) {
	switch e.Severity {
	case SeverityError:
		logs.Errorf("[%s] %s", e.Category, e.Message)
	default:
		logs.Infof("[%s] %s", e.Category, e.Message)
	}
}
