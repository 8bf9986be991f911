package apm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fd1az/etfkit/internal/logger"
)

func TestNewTraceProvider_Disabled(t *testing.T) {
	tp, err := NewTraceProvider(context.Background(), logger.NewNop(), Disabled())
	require.NoError(t, err)
	require.NoError(t, tp.Stop())
}

func TestNewTraceProvider_UnknownExporter(t *testing.T) {
	_, err := NewTraceProvider(context.Background(), logger.NewNop(), WithExporter("carrier-pigeon", ""))
	require.Error(t, err)
}

func TestNewTraceProvider_Stdout(t *testing.T) {
	tp, err := NewTraceProvider(context.Background(), logger.NewNop(),
		WithServiceName("etfkit-test"),
		WithExporter(StdoutExporter, ""),
	)
	require.NoError(t, err)
	require.NoError(t, tp.Stop())
}
