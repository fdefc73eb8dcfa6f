package logger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/orderdesk/pkg/logger"
)

func TestEnableMongoRejectsBadURIAndKeepsStdout(t *testing.T) {
	before := logger.L

	err := logger.EnableMongo("not-a-mongo-uri", "orderdesk", "logs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logger/mongo")
	assert.Same(t, before, logger.L)

	assert.NotPanics(t, logger.Close)
	assert.NotPanics(t, logger.Close)
}

func TestWithCtx(t *testing.T) {
	assert.Same(t, logger.L, logger.WithCtx(context.Background()))

	scoped := logger.L.With("request_id", "r-1")
	ctx := logger.InjectLogger(context.Background(), scoped)
	assert.Same(t, scoped, logger.WithCtx(ctx))
}
