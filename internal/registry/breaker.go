package registry

import (
	"sync"
	"time"

	"github.com/sieve-urls/sieve/internal/urlnorm"
)

// errorLog is a sliding window of infrastructure error timestamps for one
// domain. Entries older than the window are purged on every touch, so the
// slice stays small.
type errorLog struct {
	mu    sync.Mutex
	times []time.Time
}

// countRecent purges and counts in one pass.
func (l *errorLog) countRecent(now time.Time, window time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.purgeLocked(now, window)
	return len(l.times)
}

func (l *errorLog) add(now time.Time, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.purgeLocked(now, window)
	l.times = append(l.times, now)
}

func (l *errorLog) purgeLocked(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(l.times) && l.times[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		l.times = append(l.times[:0], l.times[i:]...)
	}
}

// ReportNetworkInfrastructureError records that a request to url's domain
// failed for infrastructure reasons (connection refused, 5xx, timeouts).
// Content-level failures should not be reported: a 404 is not a sick
// server.
func (r *Registry) ReportNetworkInfrastructureError(url string) {
	if r.cfg.DomainErrorThreshold <= 0 {
		return
	}
	domain, err := r.breakerDomain(url)
	if err != nil {
		return
	}

	log, _ := r.domainErrors.LoadOrStore(domain, &errorLog{})
	log.add(r.clock(), r.cfg.DomainErrorWindow)
}

// DomainOK reports whether url's domain is healthy enough to hit. With the
// breaker disabled (threshold 0) everything is always OK.
func (r *Registry) DomainOK(url string) bool {
	if r.cfg.DomainErrorThreshold <= 0 {
		return true
	}
	domain, err := r.breakerDomain(url)
	if err != nil {
		return true
	}

	log, ok := r.domainErrors.Load(domain)
	if !ok {
		return true
	}
	return log.countRecent(r.clock(), r.cfg.DomainErrorWindow) < r.cfg.DomainErrorThreshold
}

// ScrubDomainErrors forgets url's domain's error history, re-opening it
// immediately.
func (r *Registry) ScrubDomainErrors(url string) {
	domain, err := r.breakerDomain(url)
	if err != nil {
		return
	}
	r.domainErrors.Delete(domain)
}

// ScrubAllStaleDomainErrors drops error logs that have gone quiet, so the
// map does not accumulate every domain ever seen. Run periodically.
func (r *Registry) ScrubAllStaleDomainErrors() {
	now := r.clock()
	r.domainErrors.Range(func(domain string, log *errorLog) bool {
		if log.countRecent(now, r.cfg.DomainErrorWindow) == 0 {
			r.domainErrors.Delete(domain)
		}
		return true
	})
}

// breakerDomain buckets errors by registrable domain: the CDN subdomain
// and the site apex fail together. Bare domains are accepted as well as
// full URLs, so callers can ask about "example.com" directly.
func (r *Registry) breakerDomain(urlOrDomain string) (string, error) {
	if domain, err := urlnorm.URLSecondLevelDomain(urlOrDomain); err == nil {
		return domain, nil
	}
	return urlnorm.SecondLevelDomain(urlOrDomain)
}
