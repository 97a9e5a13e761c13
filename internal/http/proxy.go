// Package http builds the HTTP clients used to talk to the backend,
// including proxy configuration (system, basic and NTLM).
package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http/httpproxy"

	"github.com/filedock/filedock/internal/config"
	"github.com/filedock/filedock/internal/constants"
)

type proxyFunc func(*nethttp.Request) (*url.URL, error)

// ConfigureHTTPClient returns a client honouring cfg's proxy settings.
// The client has no overall timeout; callers bound requests with a context.
// In ntlm mode the transport is wrapped in an NTLM negotiator.
func ConfigureHTTPClient(cfg *config.Config) (*nethttp.Client, error) {
	mode := strings.ToLower(cfg.ProxyMode)
	proxy, err := proxyFor(mode, cfg)
	if err != nil {
		return nil, err
	}

	transport := newTransport()
	transport.Proxy = proxy

	client := &nethttp.Client{Transport: transport}
	if mode == "ntlm" && proxy != nil {
		client.Transport = ntlmssp.Negotiator{RoundTripper: transport}
	}

	if shouldWarmup(mode, cfg) {
		if err := warmupProxy(client, cfg.BaseURL()); err != nil {
			return nil, fmt.Errorf("proxy warmup failed: %w", err)
		}
	}
	return client, nil
}

// proxyFor picks the transport's proxy function. A nil result means direct
// connections. Basic and ntlm modes without a host fall back to direct.
func proxyFor(mode string, cfg *config.Config) (proxyFunc, error) {
	switch mode {
	case "", "no-proxy":
		return nil, nil
	case "system":
		return nethttp.ProxyFromEnvironment, nil
	case "basic", "ntlm":
		if cfg.ProxyHost == "" {
			log.Warn().Str("mode", mode).Msg("proxy host is missing, connecting directly")
			return nil, nil
		}
		if mode == "basic" && cfg.ProxyUser != "" && cfg.ProxyPassword == "" {
			log.Warn().Str("user", cfg.ProxyUser).Msg("proxy user configured but password missing, proxy auth disabled")
		}
		return proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy), nil
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnsupportedProxy, cfg.ProxyMode)
	}
}

func newTransport() *nethttp.Transport {
	return &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}
}

// buildProxyURL returns http://host:port, port defaulting to 8080.
// Credentials are embedded only when both user and password are set.
func buildProxyURL(cfg *config.Config) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = 8080
	}
	u := &url.URL{Scheme: "http", Host: net.JoinHostPort(cfg.ProxyHost, fmt.Sprint(port))}
	if cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		u.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}
	return u
}

// proxyFuncWithBypass routes through proxyURL except for hosts matching the
// comma-separated noProxy list (domains, *.wildcards, CIDRs).
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) proxyFunc {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	resolve := (&httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}).ProxyFunc()

	return func(req *nethttp.Request) (*url.URL, error) {
		result, err := resolve(req.URL)
		if result == nil {
			log.Debug().Str("host", req.URL.Host).Msg("proxy bypass")
		}
		return result, err
	}
}

func shouldWarmup(mode string, cfg *config.Config) bool {
	switch {
	case !cfg.ProxyWarmup, mode == "", mode == "no-proxy":
		return false
	case mode == "basic" || mode == "ntlm":
		return cfg.ProxyUser != "" && cfg.ProxyPassword != ""
	default:
		return true
	}
}

// warmupProxy sends a HEAD to the server so the proxy handshake happens
// before the first real request. Anything below 500 counts as reachable.
func warmupProxy(client *nethttp.Client, baseURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ProxyWarmupTimeout)
	defer cancel()

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodHead, baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return nil
}

// NeedsProxyPassword reports whether an authenticating proxy has a user but
// no password yet. The CLI prompts for it when true.
func NeedsProxyPassword(cfg *config.Config) bool {
	switch strings.ToLower(cfg.ProxyMode) {
	case "basic", "ntlm":
		return cfg.ProxyUser != "" && cfg.ProxyPassword == ""
	default:
		return false
	}
}
