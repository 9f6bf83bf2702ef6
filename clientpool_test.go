package wraith

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wraith/transport"
)

type countingTransport struct{ built int32 }

func (c *countingTransport) SendForm(ctx context.Context, method, url string, headers map[string]string, formFields map[string]string, allowRedirects bool) (*transport.HTTPResponse, error) {
	return &transport.HTTPResponse{StatusCode: 200}, nil
}

func (c *countingTransport) SendBody(ctx context.Context, method, url string, headers map[string]string, body []byte, allowRedirects bool) (*transport.HTTPResponse, error) {
	return &transport.HTTPResponse{StatusCode: 200}, nil
}

func TestClientPoolReusesSameEndpoint(t *testing.T) {
	override := &countingTransport{}
	p := newClientPool(time.Second, override)

	c1, err := p.Get("proxy-a")
	require.NoError(t, err)
	c2, err := p.Get("proxy-a")
	require.NoError(t, err)

	assert.Same(t, c1, c2)
}

func TestClientPoolSeparatesEndpoints(t *testing.T) {
	override := &countingTransport{}
	p := newClientPool(time.Second, override)

	direct, err := p.Get("")
	require.NoError(t, err)
	viaProxy, err := p.Get("proxy-b")
	require.NoError(t, err)

	// Both resolve through the same override factory here, but the pool
	// still tracks them as distinct cache entries.
	assert.NotNil(t, direct)
	assert.NotNil(t, viaProxy)
	assert.Len(t, p.clients, 2)
}

func TestClientPoolConcurrentGetCollapsesConstruction(t *testing.T) {
	calls := int32(0)
	p := &clientPool{
		clients: make(map[string]transport.Transport),
		timeout: time.Second,
		factory: func(proxyURL string, timeout time.Duration) (transport.Transport, error) {
			calls++
			time.Sleep(5 * time.Millisecond)
			return &countingTransport{}, nil
		},
	}

	var wg sync.WaitGroup
	results := make([]transport.Transport, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			c, err := p.Get("shared-proxy")
			require.NoError(t, err)
			results[idx] = c
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Same(t, results[0], r)
	}
	assert.EqualValues(t, 1, calls)
}
