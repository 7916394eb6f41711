package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	urlCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evidence_download_url_cache_hits_total",
		Help: "Download URL cache hits.",
	})
	urlCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evidence_download_url_cache_misses_total",
		Help: "Download URL cache misses.",
	})
)

type urlEntry struct {
	url       string
	expiry    time.Duration
	filename  string
	issuedAt  time.Time
	expiresAt time.Time
}

// URLCache хранит выданные ссылки на скачивание. Ссылка переиспользуется,
// пока не прошла половина ее срока жизни.
type URLCache struct {
	lru *expirable.LRU[string, urlEntry]
	now func() time.Time
}

// NewURLCache. maxTTL - верхняя граница жизни записи, обычно половина
// максимального срока ссылки.
func NewURLCache(size int, maxTTL time.Duration) *URLCache {
	if size <= 0 {
		size = 1024
	}
	return &URLCache{
		lru: expirable.NewLRU[string, urlEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

// Get возвращает ссылку, выданную для того же срока и имени файла.
func (c *URLCache) Get(fileKey string, expiry time.Duration, filename string) (string, time.Time, bool) {
	e, ok := c.lru.Get(fileKey)
	if !ok || e.expiry != expiry || e.filename != filename || c.now().After(e.issuedAt.Add(expiry/2)) {
		urlCacheMisses.Inc()
		return "", time.Time{}, false
	}
	urlCacheHits.Inc()
	return e.url, e.expiresAt, true
}

func (c *URLCache) Set(fileKey string, expiry time.Duration, filename, url string, expiresAt time.Time) {
	c.lru.Add(fileKey, urlEntry{
		url:       url,
		expiry:    expiry,
		filename:  filename,
		issuedAt:  c.now(),
		expiresAt: expiresAt,
	})
}

func (c *URLCache) Remove(fileKey string) {
	c.lru.Remove(fileKey)
}
