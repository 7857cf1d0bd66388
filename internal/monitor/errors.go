package monitor

import (
	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
)

var (
	// ErrPermissionDenied indicates continuous background location is not granted.
	ErrPermissionDenied = ferrors.PermissionError("background location permission not granted").Build()

	// ErrQuotaExceeded indicates the service refuses more active regions.
	ErrQuotaExceeded = ferrors.PlatformError("region quota exceeded").Build()

	// ErrRegistrationFailed indicates the service could not store the region.
	ErrRegistrationFailed = ferrors.PlatformError("region registration failed").Build()

	// ErrUnregistrationFailed indicates the service could not drop the region.
	ErrUnregistrationFailed = ferrors.PlatformError("region unregistration failed").Build()

	// ErrSubscribeFailed indicates the transition stream could not be opened.
	ErrSubscribeFailed = ferrors.NetworkError("transition subscription failed").Build()

	// ErrInvalidTransition indicates a transition payload could not be decoded.
	ErrInvalidTransition = ferrors.ValidationError("invalid transition payload").Build()
)

// IsPermissionDenied reports whether err is a missing-permission rejection.
func IsPermissionDenied(err error) bool {
	return ferrors.HasCategory(err, ferrors.CategoryPermission)
}

// IsPlatformError reports whether err is a service rejection.
func IsPlatformError(err error) bool {
	return ferrors.HasCategory(err, ferrors.CategoryPlatform)
}

func platformError(sentinel *ferrors.ClassifiedError, cause error, zoneID int64) error {
	return ferrors.WrapError(cause, ferrors.CategoryPlatform, sentinel.Message()).
		Warning().
		Retryable().
		WithContext("zone_id", zoneID).
		Build()
}

func subscribeError(cause error, topic string) error {
	return ferrors.WrapError(cause, ferrors.CategoryNetwork, ErrSubscribeFailed.Message()).
		Retryable().
		WithContext("topic", topic).
		Build()
}
