package amsserver

import (
	"testing"

	"github.com/function61/gokit/assert"
)

func TestStagingPullRemoves(t *testing.T) {
	staging := NewStagingCache()

	staging.Put("req-1", []byte("staged bytes"))
	assert.Assert(t, staging.Len() == 1)

	content, found := staging.Pull("req-1")
	assert.Assert(t, found)
	assert.EqualString(t, string(content), "staged bytes")
	assert.Assert(t, staging.Len() == 0)

	// exactly-once semantics
	_, found = staging.Pull("req-1")
	assert.Assert(t, !found)
}

func TestStagingMissIsNotFound(t *testing.T) {
	staging := NewStagingCache()

	content, found := staging.Pull("never-staged")
	assert.Assert(t, !found)
	assert.Assert(t, content == nil)
}

func TestStagingOverwriteSameRequestID(t *testing.T) {
	staging := NewStagingCache()

	staging.Put("req-1", []byte("first"))
	staging.Put("req-1", []byte("second"))

	content, found := staging.Pull("req-1")
	assert.Assert(t, found)
	assert.EqualString(t, string(content), "second")
}
