package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
)

func isTemporaryNATSError(err error) bool {
	return errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrConnectionReconnecting) ||
		errors.Is(err, nats.ErrDisconnected)
}

func wrapTemporaryIfNeeded(err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if isTemporaryNATSError(err) {
		return domain.WrapError(domain.ErrTemporary, "nats subscribe", err)
	}
	return err
}
