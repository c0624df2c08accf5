package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	err := New(CodeStructureMissing, "intake folder not found")
	assert.Equal(t, "STRUCTURE_MISSING: intake folder not found", err.Error())

	wrapped := &Error{Code: CodeUpstreamUnavailable, Message: "list items", Err: errors.New("boom")}
	assert.Equal(t, "UPSTREAM_UNAVAILABLE: list items: boom", wrapped.Error())
}

func TestWrap_NilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(CodeInternal, "nothing", nil))
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{InvalidRequest("missing"), http.StatusBadRequest},
		{AuthRequired("expired"), http.StatusUnauthorized},
		{New(CodeMethodNotAllowed, "PUT"), http.StatusMethodNotAllowed},
		{New(CodeStructureMissing, "intake"), http.StatusConflict},
		{Upstream("box", errors.New("503")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.err), tt.err.Error())
	}
}

func TestIs_ThroughWrapping(t *testing.T) {
	base := AuthRequired("refresh failed")
	err := fmt.Errorf("list folder: %w", base)

	assert.True(t, Is(err, CodeAuthRequired))
	assert.False(t, Is(err, CodeInvalidRequest))
	assert.Equal(t, CodeAuthRequired, CodeOf(err))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("x")))
}
