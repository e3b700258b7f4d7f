// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/spatial/internal/spatial"
)

func TestSessionAttachesAfterDelay(t *testing.T) {
	events := make(chan spatial.Event, 8)
	d := New(Options{AttachDelay: 5 * time.Millisecond})

	s, err := d.Open(spatial.AnyDevice, events)
	require.NoError(t, err)
	require.NoError(t, s.WaitForAttachment(time.Second))
	assert.Equal(t, spatial.AttachEvent{}, <-events)

	require.NoError(t, s.Close())
	require.NoError(t, s.Release())
	assert.Equal(t, 0, d.Live())
}

func TestSessionNeverAttaches(t *testing.T) {
	d := New(Options{NeverAttach: true})
	s, err := d.Open(spatial.AnyDevice, make(chan spatial.Event, 1))
	require.NoError(t, err)

	start := time.Now()
	assert.Error(t, s.WaitForAttachment(20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.ErrorIs(t, s.SetDataRate(8), spatial.ErrNotAttached)

	require.NoError(t, s.Close())
}

func TestReleaseBeforeClose(t *testing.T) {
	d := New(Options{NeverAttach: true})
	s, err := d.Open(spatial.AnyDevice, make(chan spatial.Event, 1))
	require.NoError(t, err)
	assert.Error(t, s.Release())
	require.NoError(t, s.Close())
	assert.NoError(t, s.Release())
}

func TestGeneratorProducesSamples(t *testing.T) {
	events := make(chan spatial.Event, 64)
	d := New(Options{Generate: true})

	s, err := d.Open(spatial.AnyDevice, events)
	require.NoError(t, err)
	require.NoError(t, s.WaitForAttachment(time.Second))
	require.NoError(t, s.SetDataRate(4))

	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-events:
			if data, ok := ev.(spatial.DataEvent); ok {
				require.Len(t, data.Samples, 1)
				assert.Equal(t, -1.0, data.Samples[0].Acceleration.Z)
				require.NoError(t, s.Close())
				return
			}
		case <-deadline:
			t.Fatal("no data event")
		}
	}
}

func TestNoEventsAfterClose(t *testing.T) {
	events := make(chan spatial.Event, 8)
	d := New(Options{NeverAttach: true})
	s, err := d.Open(spatial.AnyDevice, events)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	last := d.Last()
	last.Detach()
	last.Data(Synthetic(0))
	last.Error(spatial.ErrorOverrun, "late")
	assert.Empty(t, events)
}
