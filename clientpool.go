package wraith

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"wraith/transport"
	"wraith/transport/collytransport"
)

// clientPool caches one transport.Transport per proxy endpoint ("" for a
// direct connection), building each lazily. Concurrent first-requests for
// the same endpoint collapse into a single construction via singleflight,
// so a burst of goroutines hitting a cold proxy doesn't open N redundant
// colly collectors (spec §5: "proxy-keyed sessions share cookie state").
type clientPool struct {
	mu      sync.Mutex
	clients map[string]transport.Transport
	group   singleflight.Group
	timeout time.Duration
	factory func(proxyURL string, timeout time.Duration) (transport.Transport, error)
}

func newClientPool(timeout time.Duration, override transport.Transport) *clientPool {
	p := &clientPool{
		clients: make(map[string]transport.Transport),
		timeout: timeout,
	}
	if override != nil {
		p.factory = func(string, time.Duration) (transport.Transport, error) { return override, nil }
	} else {
		p.factory = func(proxyURL string, timeout time.Duration) (transport.Transport, error) {
			return collytransport.New(proxyURL, timeout)
		}
	}
	return p
}

// Get returns the transport bound to proxyEndpoint, building it on first
// use.
func (p *clientPool) Get(proxyEndpoint string) (transport.Transport, error) {
	p.mu.Lock()
	if c, ok := p.clients[proxyEndpoint]; ok {
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	key := proxyEndpoint
	if key == "" {
		key = "direct"
	}

	v, err, _ := p.group.Do(key, func() (interface{}, error) {
		p.mu.Lock()
		if c, ok := p.clients[proxyEndpoint]; ok {
			p.mu.Unlock()
			return c, nil
		}
		p.mu.Unlock()

		c, err := p.factory(proxyEndpoint, p.timeout)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.clients[proxyEndpoint] = c
		p.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("wraith: building transport for proxy %q: %w", proxyEndpoint, err)
	}
	return v.(transport.Transport), nil
}
