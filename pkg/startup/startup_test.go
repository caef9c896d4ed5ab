package startup

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDependency struct {
	name      string
	dependsOn []string
	started   *[]string
	startErr  error
}

func (d *fakeDependency) GetName() string     { return d.name }
func (d *fakeDependency) DependsOn() []string { return d.dependsOn }

func (d *fakeDependency) Start(ctx context.Context) error {
	if d.startErr != nil {
		return d.startErr
	}
	*d.started = append(*d.started, d.name)
	return nil
}

func (d *fakeDependency) Stop(ctx context.Context) error { return nil }

func newTestStartup(t *testing.T) *Startup {
	t.Helper()

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return New(logger, 1)
}

func TestStartup_DependencyOrder(t *testing.T) {
	s := newTestStartup(t)
	var started []string

	s.AddDependency(&fakeDependency{name: "server", dependsOn: []string{"store"}, started: &started})
	s.AddDependency(&fakeDependency{name: "store", started: &started})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"store", "server"}, started)
}

func TestStartup_UnregisteredDependsOn(t *testing.T) {
	s := newTestStartup(t)
	var started []string

	s.AddDependency(&fakeDependency{name: "server", dependsOn: []string{"missing"}, started: &started})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unregistered dependency 'missing'")
	assert.Empty(t, started)
}

func TestStartup_StartFailureSurfaces(t *testing.T) {
	s := newTestStartup(t)
	var started []string
	boom := errors.New("connection refused")

	s.AddDependency(&fakeDependency{name: "store", started: &started, startErr: boom})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
