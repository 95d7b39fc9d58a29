package amserrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/function61/gokit/assert"
)

func TestCodeAndStatus(t *testing.T) {
	err := SetNotFound("abc123")

	assert.EqualString(t, Code(err), "set.not-found")
	assert.Assert(t, HTTPStatus(err) == http.StatusNotFound)
	assert.Assert(t, IsNotFound(err))

	transition := InvalidStateTransition("usable")

	assert.EqualString(t, Code(transition), "set.invalid-state-transition")
	assert.Assert(t, HTTPStatus(transition) == http.StatusBadRequest)
	assert.Assert(t, !IsNotFound(transition))
}

func TestPlainErrorDefaults(t *testing.T) {
	plain := errors.New("disk exploded")

	assert.EqualString(t, Code(plain), "")
	assert.Assert(t, HTTPStatus(plain) == http.StatusInternalServerError)
	assert.Assert(t, !IsNotFound(plain))
}

func TestIsMatchesOnCode(t *testing.T) {
	assert.Assert(t, errors.Is(AssetNotFound("one"), AssetNotFound("other")))
	assert.Assert(t, !errors.Is(AssetNotFound("one"), SetNotFound("one")))
}

func TestWrappedCauseSurvives(t *testing.T) {
	cause := errors.New("connection refused")
	err := UnknownBackendError(cause)

	assert.Assert(t, errors.Is(err, cause))

	// wrapping with fmt keeps the taxonomy intact
	wrapped := fmt.Errorf("during upload: %w", err)

	assert.EqualString(t, Code(wrapped), "backend.unknown")
}

func TestSizeExceededIsHumanized(t *testing.T) {
	err := AssetExceedsMaximumSizeForSet(3*1048576, 1048576)

	assert.EqualString(t, err.Error(), "asset.exceeds-maximum-size: asset size (3.0 MB) exceeds the maximum size for the set (1.0 MB)")
}
