// Package tor verifies and optionally manages the local Tor SOCKS
// endpoint. The anonymization protocol itself is a black box; the rest of
// the tool only consumes the proxy address.
package tor

import (
	"net"
	"time"

	"golang.org/x/net/proxy"

	"github.com/Ian-Costa18/TorDownloader/internal/utils"
)

// checkAddr is a host the proxy must be able to route to for the endpoint
// to count as healthy, not merely listening.
const checkAddr = "check.torproject.org:443"

const (
	dialTimeout  = 10 * time.Second
	checkBackoff = 2 * time.Second
)

// Check probes the SOCKS endpoint before any download is allowed to start.
// It returns Unreachable immediately when the endpoint itself refuses TCP,
// Healthy on the first successful routed connection, and Unhealthy after
// maxAttempts probes without one. Any non-Healthy result is fatal for the
// run: the caller must not start the worker pool.
func Check(proxyAddr string, maxAttempts int) utils.ProxyStatus {
	return check(proxyAddr, checkAddr, maxAttempts, checkBackoff)
}

func check(proxyAddr, target string, maxAttempts int, backoff time.Duration) utils.ProxyStatus {
	log := utils.GetLogger("tor-check")

	conn, err := net.DialTimeout("tcp", proxyAddr, dialTimeout)
	if err != nil {
		log.Error().Err(err).Str("proxy", proxyAddr).Msg("SOCKS endpoint is unreachable")
		return utils.ProxyStatus{State: utils.ProxyUnreachable}
	}
	conn.Close()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(backoff)
		}
		dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, &net.Dialer{Timeout: dialTimeout})
		if err != nil {
			log.Error().Err(err).Msg("Error creating SOCKS5 dialer")
			return utils.ProxyStatus{State: utils.ProxyUnreachable, Checks: attempt}
		}
		conn, err := dialer.Dial("tcp", target)
		if err == nil {
			conn.Close()
			log.Info().Int("attempt", attempt).Str("proxy", proxyAddr).Msg("Tor proxy is healthy")
			return utils.ProxyStatus{State: utils.ProxyHealthy, Checks: attempt}
		}
		log.Warn().Err(err).Int("attempt", attempt).Int("maxAttempts", maxAttempts).Msg("Tor check failed")
	}
	log.Error().Int("attempts", maxAttempts).Msg("Tor proxy never became healthy")
	return utils.ProxyStatus{State: utils.ProxyUnhealthy, Checks: maxAttempts}
}
