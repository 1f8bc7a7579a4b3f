package e2e

import (
	"testing"
	"time"

	"github.com/marmos91/fibd/test/e2e/framework"
	"github.com/stretchr/testify/require"
)

const requestTimeout = 10 * time.Second

// allConfigurations lists every cache implementation the server can run with.
func allConfigurations() []framework.TestServerConfig {
	return []framework.TestServerConfig{
		{Cache: framework.CacheLocked},
		{Cache: framework.CacheSequencer},
	}
}

// runOnAllConfigs starts a fresh server per cache implementation and runs
// testFunc against each.
func runOnAllConfigs(t *testing.T, testFunc func(t *testing.T, ts *framework.TestServer)) {
	t.Helper()

	for _, config := range allConfigurations() {
		t.Run(string(config.Cache), func(t *testing.T) {
			ts := startServer(t, config)
			testFunc(t, ts)
		})
	}
}

func startServer(t *testing.T, config framework.TestServerConfig) *framework.TestServer {
	t.Helper()

	ts := framework.NewTestServer(t, config)
	require.NoError(t, ts.Start())
	t.Cleanup(func() { _ = ts.Stop() })
	return ts
}

func request(t *testing.T, ts *framework.TestServer, payload string) string {
	t.Helper()

	reply, err := framework.Request(ts.Addr(), payload, requestTimeout)
	require.NoError(t, err)
	return reply
}
