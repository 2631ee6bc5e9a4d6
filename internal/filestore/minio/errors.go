package minio

import (
	"context"
	"errors"
	"net/http"

	"github.com/koustreak/bucketfs/internal/errs"
	minioErr "github.com/minio/minio-go/v7"
)

// mapError translates a MinIO SDK error into a *errs.Error.
// Only not-found and cancellation are singled out; every other failure is
// tagged as a backend error with the SDK error kept as its cause.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindCanceled, msg, err)
	}

	var resp minioErr.ErrorResponse
	if errors.As(err, &resp) {
		if resp.StatusCode == http.StatusNotFound {
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		}

		// S3 not-found codes may arrive without a status (e.g. from a
		// multi-object delete result).
		switch resp.Code {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		}
	}

	return errs.Wrap(errs.ErrKindBackend, msg, err)
}
