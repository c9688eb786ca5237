package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestValidator_CollectsAllFailures(t *testing.T) {
	v := NewValidator().
		Field("name", "  ", Required).
		Field("variant", "invoice", OneOf("rfq", "quotation")).
		Field("code", "abcdef", MaxLength(3)).
		Field("limit", 0, Positive).
		Field("ok", "fine", Required, MaxLength(10))

	require.True(t, v.HasErrors())
	require.Len(t, v.Errors(), 4)
	assert.Equal(t,
		"name: is required; variant: must be one of rfq, quotation; code: must be at most 3 characters; limit: must be greater than zero",
		v.ErrorMessage())

	err := v.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Messages(), 4)
}

func TestValidator_NoFailures(t *testing.T) {
	v := NewValidator().Field("name", "ACME", Required).Field("limit", 10, Positive)
	assert.False(t, v.HasErrors())
	assert.NoError(t, v.Err())
}

func TestRequired_Bytes(t *testing.T) {
	assert.NotNil(t, Required("file", []byte(nil)))
	assert.NotNil(t, Required("file", []byte{}))
	assert.Nil(t, Required("file", []byte("%PDF")))
}

func TestInvalidArgumentErrorf(t *testing.T) {
	err := InvalidArgumentErrorf("bad %s", "tenant")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, "bad tenant", status.Convert(err).Message())
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{name: "nil", err: nil, code: codes.OK},
		{name: "validation", err: &ValidationError{Errors: []FieldError{{Field: "items", Message: "is required"}}}, code: codes.InvalidArgument},
		{name: "wrapped not found", err: WrapError(ErrNotFound, "job 42"), code: codes.NotFound},
		{name: "extractor setup", err: WrapError(ErrExtractorSetup, "no api key"), code: codes.FailedPrecondition},
		{name: "unsupported", err: WrapError(ErrUnsupported, "tiff"), code: codes.InvalidArgument},
		{name: "other", err: errors.New("boom"), code: codes.Internal},
		{name: "status passthrough", err: status.Error(codes.Unavailable, "down"), code: codes.Unavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, status.Code(ToStatus(tt.err)))
		})
	}
}
