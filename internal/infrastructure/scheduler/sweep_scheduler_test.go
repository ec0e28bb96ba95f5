package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/infrastructure/config"
)

func TestSweepScheduler_DisabledDoesNotStart(t *testing.T) {
	s := NewSweepScheduler(nil, nil, config.SweepConfig{Enabled: false}, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.isRunning)

	// stopping a never-started scheduler is a no-op
	require.NoError(t, s.Stop(context.Background()))
}

func TestSweepScheduler_StopWithoutStart(t *testing.T) {
	s := NewSweepScheduler(nil, nil, config.SweepConfig{
		Enabled:  true,
		Interval: time.Minute,
	}, zap.NewNop())

	require.NoError(t, s.Stop(context.Background()))
}
