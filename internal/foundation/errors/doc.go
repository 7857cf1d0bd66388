// Package errors provides the classified error primitives used across careradius.
//
// Every failure a caller may need to react to carries a category, a severity and a
// retry strategy. Region monitor rejections, missing location authorization and an
// unknown device position are all recoverable conditions; the categories let the
// coordinator, the CLI and the admin API tell them apart without string matching.
//
// Key features:
//   - ErrorCategory: broad classification (permission, platform, location, storage, ...)
//   - ErrorSeverity: impact level (fatal, error, warning, info)
//   - RetryStrategy: retry behavior (never, immediate, backoff, user action)
//   - ClassifiedError: structured error with category, severity and context
//   - ErrorBuilder: fluent API for creating classified errors
//   - HTTP and CLI adapters for error presentation
//
// Example usage:
//
//	err := errors.PlatformError("region registration rejected").
//		WithContext("zone_id", zoneID).
//		WithCause(originalErr).
//		Build()
package errors
