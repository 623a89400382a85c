package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", GetTraceID(ctx))

	ctx = WithTraceID(ctx, "abc")
	assert.Equal(t, "abc", GetTraceID(ctx))
	assert.Equal(t, ctx, EnsureTraceID(ctx))

	fresh := EnsureTraceID(context.Background())
	assert.NotEmpty(t, GetTraceID(fresh))
	assert.NotEqual(t, GetTraceID(fresh), GetTraceID(EnsureTraceID(context.Background())))
}

func TestInit(t *testing.T) {
	assert.NoError(t, Init("debug", "production"))
	assert.NotNil(t, Get())
	assert.NotNil(t, WithContext(WithTraceID(context.Background(), "t-1")))
}
