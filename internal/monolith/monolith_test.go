package monolith

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/etfkit/internal/asset"
	"github.com/fd1az/etfkit/internal/config"
	"github.com/fd1az/etfkit/internal/di"
	"github.com/fd1az/etfkit/internal/logger"
)

type recordingModule struct {
	name  string
	trail *[]string
	fail  error
}

func (m *recordingModule) RegisterServices(c di.Container) error {
	*m.trail = append(*m.trail, "register "+m.name)
	c.Register("module."+m.name, m)
	return nil
}

func (m *recordingModule) Startup(_ context.Context, mono Monolith) error {
	*m.trail = append(*m.trail, "start "+m.name)
	if m.fail != nil {
		return m.fail
	}
	mono.OnClose(func() error {
		*m.trail = append(*m.trail, "close "+m.name)
		return nil
	})
	return nil
}

func offline(t *testing.T) *App {
	t.Helper()
	a, err := New(context.Background(), &config.Config{}, logger.NewNop())
	require.NoError(t, err)
	return a
}

func TestNew_OfflineHasNoClients(t *testing.T) {
	a := offline(t)

	assert.Nil(t, a.EthClient())
	assert.Nil(t, a.Redis())
	assert.Same(t, a.AssetRegistry(), a.Services().Get(ServiceAssetRegistry).(*asset.Registry))
	assert.True(t, a.Services().Has(ServiceEthClient))
	assert.NoError(t, a.Close())
}

func TestApp_ModuleLifecycle(t *testing.T) {
	a := offline(t)
	var trail []string
	modules := []Module{
		&recordingModule{name: "pricing", trail: &trail},
		&recordingModule{name: "catalog", trail: &trail},
	}

	require.NoError(t, a.RegisterModules(modules...))
	require.NoError(t, a.StartModules(context.Background(), modules...))
	require.NoError(t, a.Close())

	assert.Equal(t, []string{
		"register pricing", "register catalog",
		"start pricing", "start catalog",
		"close catalog", "close pricing",
	}, trail)
}

func TestApp_StartFailureNamesModule(t *testing.T) {
	a := offline(t)
	var trail []string
	boom := errors.New("chain id mismatch")

	err := a.StartModules(context.Background(), &recordingModule{name: "blockchain", trail: &trail, fail: boom})

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "recordingModule")
}

func TestApp_CloseJoinsErrors(t *testing.T) {
	a := offline(t)
	first, second := errors.New("redis"), errors.New("node")
	a.OnClose(func() error { return first })
	a.OnClose(func() error { return second })

	err := a.Close()
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
	assert.NoError(t, a.Close())
}
