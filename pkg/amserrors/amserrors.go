// Typed error taxonomy. Every error the engine hands out carries a stable
// machine-readable code and a HTTP status hint so the transport layer can render a
// structured error body without inspecting error strings.
package amserrors

import (
	"errors"
	"fmt"

	"github.com/function61/aitta/pkg/byteshuman"
)

type Error struct {
	Code       string
	HTTPStatus int
	Message    string
	cause      error
}

var _ error = (*Error)(nil)

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// two *Error values are considered the same error when their codes match, so
// errors.Is(err, amserrors.LockingAssetLocked()) works regardless of message payloads
func (e *Error) Is(target error) bool {
	other, is := target.(*Error)
	return is && other.Code == e.Code
}

// resolves the code of an engine error ("" for foreign errors)
func Code(err error) string {
	typed := &Error{}
	if errors.As(err, &typed) {
		return typed.Code
	}

	return ""
}

// HTTP status hint for the transport layer. foreign errors render as 500.
func HTTPStatus(err error) int {
	typed := &Error{}
	if errors.As(err, &typed) {
		return typed.HTTPStatus
	}

	return 500
}

func IsNotFound(err error) bool {
	return HTTPStatus(err) == 404
}

// config errors (fatal at startup)

func ConfigError(message string, cause error) *Error {
	return &Error{"config.invalid", 500, message, cause}
}

func S3ConfigKeyMissing(key string) *Error {
	return &Error{"config.s3-key-missing", 500, fmt.Sprintf("required S3 config %q missing", key), nil}
}

func S3ConfigMalformed(config string, cause error) *Error {
	return &Error{"config.s3-malformed", 500, fmt.Sprintf("malformed S3 destination config %q", config), cause}
}

// not-found errors

func ProviderNotFound(typeName string) *Error {
	return &Error{"provider.not-found", 404, fmt.Sprintf("provider %q not registered with the system", typeName), nil}
}

func DestinationNotFound(name string) *Error {
	return &Error{"destination.not-found", 404, fmt.Sprintf("destination %q not registered with the system", name), nil}
}

func SetNotFound(id string) *Error {
	return &Error{"set.not-found", 404, fmt.Sprintf("set %q not found", id), nil}
}

func AssetNotFound(id string) *Error {
	return &Error{"asset.not-found", 404, fmt.Sprintf("asset %q not found", id), nil}
}

// validation errors

func InvalidStateTransition(fromState string) *Error {
	return &Error{"set.invalid-state-transition", 400, fmt.Sprintf("invalid state transition (state %q)", fromState), nil}
}

func DestinationChangeNotAllowed() *Error {
	return &Error{"set.destination-change-not-allowed", 400, "destination can only be changed in draft state", nil}
}

func DestinationConfigChangeNotAllowed() *Error {
	return &Error{"set.destination-config-change-not-allowed", 400, "destination config can only be changed in draft state", nil}
}

func CannotDeleteActiveSet() *Error {
	return &Error{"set.cannot-delete-active", 400, "can only delete sets that are in draft state, or disabled with no assets", nil}
}

func BinaryNotSupplied() *Error {
	return &Error{"asset.binary-not-supplied", 400, "asset must contain a binary to upload", nil}
}

func AssetUploadToInactiveSet() *Error {
	return &Error{"asset.upload-to-inactive-set", 400, "asset upload is not allowed to an inactive set", nil}
}

func AssetExceedsMaximumSizeForSet(assetSize int64, maxSize int64) *Error {
	return &Error{"asset.exceeds-maximum-size", 400, fmt.Sprintf(
		"asset size (%s) exceeds the maximum size for the set (%s)",
		byteshuman.Humanize(uint64(assetSize)),
		byteshuman.Humanize(uint64(maxSize))), nil}
}

func RenditionDimensionsNotProvided() *Error {
	return &Error{"rendition.dimensions-not-provided", 400, "rendition requires at least one of width/height", nil}
}

func ExternalUserIDNotFound() *Error {
	return &Error{"lock.external-user-id-not-found", 400, "external user ID not found", nil}
}

func ExternalSessionIDNotFound() *Error {
	return &Error{"lock.external-session-id-not-found", 400, "external session ID not found", nil}
}

func ExternalUserIDDoNotMatch() *Error {
	return &Error{"lock.external-user-id-mismatch", 400, "external user ID does not match", nil}
}

func ExternalSessionIDDoNotMatch() *Error {
	return &Error{"lock.external-session-id-mismatch", 400, "external session ID does not match", nil}
}

func LockingAssetLocked() *Error {
	return &Error{"lock.already-locked", 400, "cannot lock an asset which is already locked", nil}
}

func UnlockingAssetUnlocked() *Error {
	return &Error{"lock.already-unlocked", 400, "cannot unlock an asset which is not locked", nil}
}

// backend errors (wrapped so callers never see backend SDK error types)

func S3InvalidEndpoint(cause error) *Error {
	return &Error{"s3.invalid-endpoint", 500, "invalid S3 endpoint URL", cause}
}

func S3InvalidAccessKeyID(cause error) *Error {
	return &Error{"s3.invalid-access-key-id", 500, "invalid AccessKeyId provided", cause}
}

func S3InvalidSecret(cause error) *Error {
	return &Error{"s3.invalid-secret", 500, "invalid secret provided", cause}
}

func S3BucketNotFound(bucket string, cause error) *Error {
	return &Error{"s3.bucket-not-found", 500, fmt.Sprintf("S3 bucket %q not found", bucket), cause}
}

func S3BucketAlreadyExists(bucket string, cause error) *Error {
	return &Error{"s3.bucket-already-exists", 400, fmt.Sprintf("S3 bucket %q already exists", bucket), cause}
}

func S3InvalidBucketName(bucket string, cause error) *Error {
	return &Error{"s3.invalid-bucket-name", 500, fmt.Sprintf("invalid S3 bucket name %q", bucket), cause}
}

func UnknownBackendError(cause error) *Error {
	return &Error{"backend.unknown", 500, "unknown backend error", cause}
}
