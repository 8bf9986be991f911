package di_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/etfkit/internal/di"
)

type greeter struct{ name string }

func TestContainer_RegisterAndGet(t *testing.T) {
	c := di.NewContainer()
	c.Register("config", "cfg")

	assert.True(t, c.Has("config"))
	assert.False(t, c.Has("missing"))
	assert.Equal(t, "cfg", c.Get("config"))
}

func TestContainer_GetUnknownPanics(t *testing.T) {
	c := di.NewContainer()
	assert.Panics(t, func() { c.Get("nope") })
}

func TestRegisterToken_LazySingleton(t *testing.T) {
	c := di.NewContainer()
	token := di.NewToken[*greeter]("test.greeter")

	var calls atomic.Int32
	di.RegisterToken(c, token, func(di.ServiceRegistry) *greeter {
		calls.Add(1)
		return &greeter{name: "etf"}
	})
	require.Zero(t, calls.Load())

	var wg sync.WaitGroup
	results := make([]*greeter, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = di.GetToken(c, token)
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, g := range results {
		assert.Same(t, results[0], g)
	}
	assert.Equal(t, "test.greeter", token.Name())
}

func TestRegisterToken_DependsOnOtherService(t *testing.T) {
	c := di.NewContainer()
	c.Register("name", "vault")

	token := di.NewToken[*greeter]("test.dep")
	di.RegisterToken(c, token, func(sr di.ServiceRegistry) *greeter {
		return &greeter{name: sr.Get("name").(string)}
	})

	assert.Equal(t, "vault", di.GetToken(c, token).name)
}

func TestGetToken_WrongTypePanics(t *testing.T) {
	c := di.NewContainer()
	c.Register("svc", 42)

	token := di.NewToken[string]("svc")
	assert.Panics(t, func() { di.GetToken(c, token) })
}
