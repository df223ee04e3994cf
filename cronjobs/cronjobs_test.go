package cronjobs

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingSweeper struct {
	calls int
}

func (s *countingSweeper) Sweep() int {
	s.calls++
	return 4
}

type fakeGC struct {
	err   error
	calls int
}

func (g *fakeGC) CollectGarbage() error {
	g.calls++
	return g.err
}

func TestInitCronJobsSchedules(t *testing.T) {
	c, err := InitCronJobs("", &countingSweeper{}, &fakeGC{}, nil)
	require.NoError(t, err)
	defer c.Stop()
	assert.Len(t, c.Entries(), 2)

	noMem, err := InitCronJobs("@every 1h", &countingSweeper{}, nil, nil)
	require.NoError(t, err)
	defer noMem.Stop()
	assert.Len(t, noMem.Entries(), 1)
}

func TestInitCronJobsRejectsBadSchedule(t *testing.T) {
	_, err := InitCronJobs("every tuesday", &countingSweeper{}, nil, nil)
	assert.Error(t, err)
}

func TestJobsCallDependencies(t *testing.T) {
	sweeper := &countingSweeper{}
	sweepFeedCache(sweeper, discardLogger())
	assert.Equal(t, 1, sweeper.calls)

	gc := &fakeGC{err: errors.New("value log busy")}
	collectMemoryGarbage(gc, discardLogger())
	assert.Equal(t, 1, gc.calls)
}
