// Package tlsprofile rotates among a fixed catalog of TLS client profiles
// (JA3 string, cipher suites, ALPN, extension ids) per domain, so repeated
// requests to the same host don't present an identical ClientHello forever
// (spec §4.9).
package tlsprofile

import (
	"math/rand"
	"sync"
)

// Profile describes one TLS client fingerprint.
type Profile struct {
	Name         string
	JA3          string
	CipherSuites []string
	ALPN         []string
	ExtensionIDs []int
}

var catalog = []Profile{
	{
		Name: "desktop_chrome",
		JA3:  "771,4865-4866-4867-49195-49199-49196-49200-52393-52392-49171-49172-156-157-47-53,0-23-65281-10-11-35-16-5-13-18-51-45-43-27-17513,29-23-24,0",
		CipherSuites: []string{
			"TLS_AES_128_GCM_SHA256", "TLS_AES_256_GCM_SHA384", "TLS_CHACHA20_POLY1305_SHA256",
			"ECDHE-ECDSA-AES128-GCM-SHA256", "ECDHE-RSA-AES128-GCM-SHA256",
		},
		ALPN:         []string{"h2", "http/1.1"},
		ExtensionIDs: []int{0, 23, 65281, 10, 11, 35, 16, 5, 13, 18, 51, 45, 43, 27, 17513},
	},
	{
		Name: "desktop_firefox",
		JA3:  "771,4865-4867-4866-49195-49199-52393-52392-49196-49200-49162-49161-49171-49172-156-157-47-53,0-23-65281-10-11-16-5-34-51-43-13-45-28-65037,29-23-24-25-256-257,0",
		CipherSuites: []string{
			"TLS_AES_128_GCM_SHA256", "TLS_CHACHA20_POLY1305_SHA256", "TLS_AES_256_GCM_SHA384",
			"ECDHE-ECDSA-CHACHA20-POLY1305", "ECDHE-RSA-CHACHA20-POLY1305",
		},
		ALPN:         []string{"h2", "http/1.1"},
		ExtensionIDs: []int{0, 23, 65281, 10, 11, 16, 5, 34, 51, 43, 13, 45, 28, 65037},
	},
	{
		Name: "desktop_safari",
		JA3:  "771,4865-4866-4867-49196-49195-49188-49187-49162-49161-52393-49200-49199-49192-49191-49172-49171-157-156-61-60-53-47,0-23-65281-10-11-16-5-13-18-51-45-43-27-21,29-23-24-25,0",
		CipherSuites: []string{
			"TLS_AES_256_GCM_SHA384", "TLS_AES_128_GCM_SHA256", "ECDHE-ECDSA-AES256-GCM-SHA384",
		},
		ALPN:         []string{"h2", "http/1.1"},
		ExtensionIDs: []int{0, 23, 65281, 10, 11, 16, 5, 13, 18, 51, 45, 43, 27, 21},
	},
	{
		Name: "mobile_chrome",
		JA3:  "771,4865-4866-4867-49195-49199-49196-49200-52393-52392-49171-49172-156-157-47-53,0-23-65281-10-11-35-16-5-13-18-51-45-43-21,29-23-24,0",
		CipherSuites: []string{
			"TLS_AES_128_GCM_SHA256", "TLS_AES_256_GCM_SHA384", "ECDHE-ECDSA-AES128-GCM-SHA256",
		},
		ALPN:         []string{"h2", "http/1.1"},
		ExtensionIDs: []int{0, 23, 65281, 10, 11, 35, 16, 5, 13, 18, 51, 45, 43, 21},
	},
	{
		Name: "mobile_safari",
		JA3:  "771,4865-4866-4867-49196-49195-52393-49200-49199-49192-49191-49172-49171-157-156-61-60-53-47,0-23-65281-10-11-16-5-13-18-51-45-43-27-21,29-23-24-25,0",
		CipherSuites: []string{
			"TLS_AES_256_GCM_SHA384", "TLS_AES_128_GCM_SHA256", "ECDHE-ECDSA-CHACHA20-POLY1305",
		},
		ALPN:         []string{"h2", "http/1.1"},
		ExtensionIDs: []int{0, 23, 65281, 10, 11, 16, 5, 13, 18, 51, 45, 43, 27, 21},
	},
}

// RotationInterval is how many requests a domain keeps the same profile
// before CurrentProfile rotates it automatically.
const RotationInterval = 25

type domainState struct {
	profileIndex        int
	requestsSinceRotate int
}

// Manager rotates TLS profiles per domain.
type Manager struct {
	mu      sync.Mutex
	domains map[string]*domainState
}

// New constructs a Manager.
func New() *Manager {
	return &Manager{domains: make(map[string]*domainState)}
}

// CurrentProfile returns the profile currently assigned to domain,
// incrementing its usage counter and rotating automatically once
// RotationInterval is reached.
func (m *Manager) CurrentProfile(domain string) Profile {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.domains[domain]
	if !ok {
		state = &domainState{profileIndex: rand.Intn(len(catalog))}
		m.domains[domain] = state
	}

	state.requestsSinceRotate++
	if state.requestsSinceRotate >= RotationInterval {
		state.profileIndex = differentIndex(state.profileIndex)
		state.requestsSinceRotate = 0
	}

	return catalog[state.profileIndex]
}

// RotateProfile forces domain onto a different profile than its current
// one, resetting its rotation counter. Returns true: rotation always
// succeeds when the catalog has more than one entry.
func (m *Manager) RotateProfile(domain string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.domains[domain]
	if !ok {
		state = &domainState{profileIndex: rand.Intn(len(catalog))}
		m.domains[domain] = state
		return true
	}

	state.profileIndex = differentIndex(state.profileIndex)
	state.requestsSinceRotate = 0
	return true
}

func differentIndex(current int) int {
	if len(catalog) <= 1 {
		return current
	}
	next := rand.Intn(len(catalog) - 1)
	if next >= current {
		next++
	}
	return next
}
