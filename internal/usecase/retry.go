package usecase

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// callCollaborator runs fn once, plus up to retries more attempts with
// exponential backoff. Zero retries is the default.
func callCollaborator[T any](
	ctx context.Context,
	newBackOff func() backoff.BackOff,
	retries int,
	log logrus.FieldLogger,
	op string,
	fn func() (T, error),
) (T, error) {
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), uint64(retries)), ctx)
	return backoff.RetryNotifyWithData(backoff.OperationWithData[T](fn), b, func(err error, next time.Duration) {
		log.WithError(err).WithFields(logrus.Fields{
			"op":       op,
			"retry_in": next.String(),
		}).Warn("collaborator call failed, retrying")
	})
}

func defaultBackOff() backoff.BackOff {
	return backoff.NewExponentialBackOff()
}
