package repository

import (
	"context"
	"errors"
	"net"
	"syscall"

	"gorm.io/gorm"

	"github.com/norvik-as/fieldops-api/internal/remote"
)

// classify maps database and transport failures onto the remote error
// contract. The sync engine keys its queue-or-surface decision off the
// kind, so the mapping here must be exact: anything that is genuinely a
// connectivity problem must come out as network or timeout, and nothing
// else may.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var re *remote.Error
	if errors.As(err, &re) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return remote.NewError(remote.KindNotFound, op, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return remote.NewError(remote.KindConflict, op, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return remote.NewError(remote.KindTimeout, op, err)
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH):
		return remote.NewError(remote.KindNetwork, op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return remote.NewError(remote.KindTimeout, op, err)
		}
		return remote.NewError(remote.KindNetwork, op, err)
	}

	return remote.NewError(remote.KindInternal, op, err)
}
