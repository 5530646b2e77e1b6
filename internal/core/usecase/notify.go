package usecase

import (
	"log/slog"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

type noopNotifier struct{}

func (noopNotifier) Notify(notice domain.Notice) {
	slog.Debug("notice_dropped", "level", string(notice.Level), "message", notice.Message)
}

type noopMetrics struct{}

func (noopMetrics) RecordRevert(string)        {}
func (noopMetrics) RecordUploadProgress(int)   {}
func (noopMetrics) RecordUploadOutcome(string) {}

func notifierOrNoop(n ports.Notifier) ports.Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

func metricsOrNoop(m ports.ViewMetrics) ports.ViewMetrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

func notifyError(n ports.Notifier, message string) {
	n.Notify(domain.Notice{Level: domain.NoticeError, Message: message})
}

func notifyInfo(n ports.Notifier, message string) {
	n.Notify(domain.Notice{Level: domain.NoticeInfo, Message: message})
}

// failureMessage picks what the user sees for a failed call: a transport
// message when the backend was unreachable, otherwise the server's own
// message or fallback.
func failureMessage(err error, fallback, transport string) string {
	if transport != "" && domain.IsKind(err, domain.ErrTemporary) {
		return transport
	}
	return domain.UserMessage(err, fallback)
}
