package utils

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"
)

type HTTPClientConfig struct {
	SocksAddr   string // host:port of the local SOCKS5 proxy; empty = direct
	Timeout     time.Duration
	KATimeout   time.Duration
	UserAgent   string
	InsecureTLS bool // onion services often serve self-signed certificates
}

type TorHTTPClient struct {
	client *http.Client
	config HTTPClientConfig
}

func NewTorHTTPClient(cfg HTTPClientConfig) *TorHTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Minute
	}
	if cfg.KATimeout == 0 {
		cfg.KATimeout = 60 * time.Second
	}
	transport := &http.Transport{
		IdleConnTimeout:     cfg.KATimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		DisableCompression:  true,
	}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if cfg.SocksAddr != "" {
		transport.Proxy = http.ProxyURL(&url.URL{
			Scheme: "socks5",
			Host:   cfg.SocksAddr,
		})
	}
	return &TorHTTPClient{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		config: cfg,
	}
}

func (t *TorHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if t.config.UserAgent != "" {
		req.Header.Set("User-Agent", t.config.UserAgent)
	} else {
		req.Header.Set("User-Agent", ToolUserAgent)
	}
	return t.client.Do(req)
}
