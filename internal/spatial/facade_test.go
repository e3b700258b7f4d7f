// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package spatial_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/spatial/internal/driver/sim"
	"github.com/relabs-tech/spatial/internal/spatial"
	"github.com/relabs-tech/spatial/internal/vector"
)

const waitFor = 2 * time.Second

func sample(base float64) spatial.Sample {
	return spatial.Sample{
		Acceleration:  vector.New(base, base+1, base+2),
		AngularRate:   vector.New(base+10, base+11, base+12),
		MagneticField: vector.New(base+20, base+21, base+22),
	}
}

func attachedFacade(t *testing.T, rate int) (*spatial.Facade, *sim.Driver) {
	t.Helper()
	drv := sim.New(sim.Options{})
	f := spatial.New(drv)
	require.NoError(t, f.InitializeWith(rate, time.Second))
	t.Cleanup(func() { _ = f.Close() })
	return f, drv
}

func TestInitializeTimesOutWhenDeviceNeverAttaches(t *testing.T) {
	drv := sim.New(sim.Options{NeverAttach: true})
	f := spatial.New(drv)

	err := f.InitializeWith(spatial.DefaultDataRate, time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, spatial.ErrAttachTimeout)
	assert.False(t, f.Attached())

	s := drv.Last()
	require.NotNil(t, s)
	assert.True(t, s.Closed(), "unattached session is closed")
	assert.True(t, s.Released())
	assert.Zero(t, s.DataRate(), "data rate is only applied after attachment")
	assert.Empty(t, f.Snapshot().SessionID)
}

func TestInitializeWithoutDriver(t *testing.T) {
	f := spatial.New(nil)
	assert.ErrorIs(t, f.Initialize(), spatial.ErrNoDriver)
	assert.False(t, f.Attached())
}

func TestInitializeOpenError(t *testing.T) {
	boom := errors.New("no such device")
	f := spatial.New(sim.New(sim.Options{OpenErr: boom}))
	err := f.InitializeWith(8, time.Second)
	assert.ErrorIs(t, err, boom)
	assert.False(t, f.Attached())
}

func TestInitializeDataRateError(t *testing.T) {
	boom := errors.New("rate rejected")
	drv := sim.New(sim.Options{SetDataRateErr: boom})
	f := spatial.New(drv)

	err := f.InitializeWith(8, time.Second)
	assert.ErrorIs(t, err, boom)
	assert.False(t, f.Attached())
	assert.True(t, drv.Last().Released())
}

func TestInitializeAttaches(t *testing.T) {
	f, drv := attachedFacade(t, 16)

	assert.True(t, f.Attached())
	assert.Equal(t, spatial.ErrorNone, f.LastError())
	assert.Equal(t, 16, drv.Last().DataRate())
	assert.Equal(t, spatial.AnyDevice, drv.Last().Serial())

	snap := f.Snapshot()
	assert.NotEmpty(t, snap.SessionID)
	assert.Equal(t, sim.Name, snap.Driver)
	assert.True(t, snap.Attached)
}

func TestInitializeDefaultUsesDefaultRate(t *testing.T) {
	drv := sim.New(sim.Options{})
	f := spatial.New(drv, spatial.WithSerial(370051))
	require.NoError(t, f.Initialize())
	defer f.Close()

	assert.Equal(t, spatial.DefaultDataRate, drv.Last().DataRate())
	assert.Equal(t, 370051, drv.Last().Serial())
}

func TestDataRateIsClamped(t *testing.T) {
	tests := []struct {
		requested, applied int
	}{
		{2, 4},
		{1000, 496},
		{4, 4},
		{496, 496},
		{100, 100},
	}

	for _, tt := range tests {
		_, drv := attachedFacade(t, tt.requested)
		assert.Equal(t, tt.applied, drv.Last().DataRate(), "requested %d", tt.requested)
	}
}

func TestDataBatchKeepsOnlyLastSample(t *testing.T) {
	f, drv := attachedFacade(t, 8)

	drv.Last().Data(sample(1), sample(100), sample(1000))

	require.Eventually(t, func() bool { return f.Snapshot().Samples == 3 }, waitFor, time.Millisecond)

	want := sample(1000)
	assert.Equal(t, want.Acceleration, f.Acceleration())
	assert.Equal(t, want.AngularRate, f.AngularRate())
	assert.Equal(t, want.MagneticField, f.MagneticField())
}

func TestEmptyBatchIsIgnored(t *testing.T) {
	f, drv := attachedFacade(t, 8)

	drv.Last().Data(sample(5))
	drv.Last().Data()
	drv.Last().Data(sample(6))

	require.Eventually(t, func() bool { return f.Snapshot().Samples == 2 }, waitFor, time.Millisecond)
	assert.Equal(t, sample(6).Acceleration, f.Acceleration())
}

func TestDetachClearsAttached(t *testing.T) {
	f, drv := attachedFacade(t, 8)
	require.True(t, f.Attached())

	drv.Last().Detach()
	require.Eventually(t, func() bool { return !f.Attached() }, waitFor, time.Millisecond)

	drv.Last().Attach()
	require.Eventually(t, f.Attached, waitFor, time.Millisecond)
}

func TestErrorEventKeepsAttachment(t *testing.T) {
	f, drv := attachedFacade(t, 8)

	drv.Last().Error(spatial.ErrorPacketLost, "packet lost")
	require.Eventually(t, func() bool { return f.LastError() == spatial.ErrorPacketLost }, waitFor, time.Millisecond)
	assert.True(t, f.Attached())

	drv.Last().Error(spatial.ErrorOverrun, "overrun")
	require.Eventually(t, func() bool { return f.LastError() == spatial.ErrorOverrun }, waitFor, time.Millisecond)
	assert.Equal(t, "overrun", f.Snapshot().LastErrorText)
}

func TestReinitializeReleasesPreviousSession(t *testing.T) {
	f, drv := attachedFacade(t, 8)

	first := drv.Last()
	first.Data(sample(7))
	first.Error(spatial.ErrorWrap, "wrap")
	require.Eventually(t, func() bool {
		s := f.Snapshot()
		return s.Samples == 1 && s.LastError == spatial.ErrorWrap
	}, waitFor, time.Millisecond)
	firstID := f.Snapshot().SessionID

	require.NoError(t, f.InitializeWith(8, time.Second))

	sessions := drv.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, []int{0, 0}, drv.LiveAtOpen(), "first session released before the second opened")
	assert.True(t, sessions[0].Closed())
	assert.True(t, sessions[0].Released())
	assert.False(t, sessions[1].Released())
	assert.Equal(t, 1, drv.Live())

	snap := f.Snapshot()
	assert.NotEqual(t, firstID, snap.SessionID)
	assert.True(t, snap.Attached)
	assert.Equal(t, spatial.ErrorNone, snap.LastError, "state restarts from uninitialized")
	assert.Zero(t, snap.Samples)
	assert.Equal(t, vector.Vector3[float64]{}, snap.Acceleration)

	// Events from the first session no longer reach the facade.
	first.Data(sample(9))
	sessions[1].Data(sample(11))
	require.Eventually(t, func() bool { return f.Snapshot().Samples == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, sample(11).Acceleration, f.Acceleration())
}

func TestReinitializeAfterFailedAttachClearsState(t *testing.T) {
	f, drv := attachedFacade(t, 8)
	drv.Last().Data(sample(3))
	require.Eventually(t, func() bool { return f.Snapshot().Samples == 1 }, waitFor, time.Millisecond)

	drv.SetNeverAttach(true)
	err := f.InitializeWith(8, time.Millisecond)
	require.ErrorIs(t, err, spatial.ErrAttachTimeout)

	assert.False(t, f.Attached(), "attachment from the previous session does not leak")
	assert.Equal(t, vector.Vector3[float64]{}, f.Acceleration())
	assert.Equal(t, 0, drv.Live())
}

func TestCloseResetsState(t *testing.T) {
	f, drv := attachedFacade(t, 8)
	require.NoError(t, f.Close())

	assert.False(t, f.Attached())
	assert.True(t, drv.Last().Released())
	assert.Empty(t, f.Snapshot().SessionID)

	// Closing twice is a no-op.
	require.NoError(t, f.Close())
}

func TestConcurrentReadsDuringData(t *testing.T) {
	drv := sim.New(sim.Options{Generate: true})
	f := spatial.New(drv)
	require.NoError(t, f.InitializeWith(spatial.MinDataRate, time.Second))
	defer f.Close()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = f.Snapshot()
				_ = f.Acceleration()
				_ = f.Attached()
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return f.Snapshot().Samples > 0 }, waitFor, time.Millisecond)
	assert.InDelta(t, -1.0, f.Acceleration().Z, 1e-9)
}

func TestInstanceIsSingleton(t *testing.T) {
	var wg sync.WaitGroup
	got := make([]*spatial.Facade, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = spatial.Instance()
		}(i)
	}
	wg.Wait()

	for _, f := range got {
		assert.Same(t, got[0], f)
	}

	drv := sim.New(sim.Options{})
	spatial.SetDefaultDriver(drv)
	defer spatial.SetDefaultDriver(nil)

	inst := spatial.Instance()
	require.NoError(t, inst.InitializeWith(8, time.Second))
	defer inst.Close()
	assert.True(t, inst.Attached())
	assert.Len(t, drv.Sessions(), 1)
}
