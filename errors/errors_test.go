package errors

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestChain(t *testing.T) {
	base := New("worker failed")
	cause := os.ErrProcessDone

	err := Chain(base, cause)
	assert.True(t, Is(err, base))
	assert.True(t, Is(err, cause))
	assert.Equal(t, "worker failed: os: process already finished", err.Error())
}

func TestLogCtx(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := zerolog.New(buf)
	ctx := logger.WithContext(context.Background())

	LogCtx(ctx, nil, "nothing to log")
	assert.Zero(t, buf.Len())

	LogCallErrCtx(ctx, func() error { return New("boom") }, "kill %s", "worker")
	assert.Contains(t, buf.String(), `"error":"boom"`)
	assert.Contains(t, buf.String(), `"message":"kill worker"`)
}
