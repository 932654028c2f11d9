// Package dnsredirect answers every DNS query for the portal domain with the
// access point's own address, so clients that join the network land on the
// portal whatever host they try to reach.
package dnsredirect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/time/rate"
)

const (
	DefaultPort = 53
	DefaultTTL  = 24 * time.Hour

	// DefaultDomain matches every name.
	DefaultDomain = "*"

	// DefaultErrorCode is sent for queries the redirector does not answer.
	DefaultErrorCode = dns.RcodeServerFailure
)

// Options configures a Redirector. Zero values take the defaults above.
type Options struct {
	Host      string // listen address, empty for all interfaces
	Port      int
	Domain    string
	Target    netip.Addr
	TTL       time.Duration
	ErrorCode int

	// Rate limits answered queries per second. Zero disables the limit.
	Rate  float64
	Burst int
}

// Redirector is a captive-portal DNS responder.
type Redirector struct {
	mu      sync.RWMutex
	opts    Options
	domain  string // lower-case FQDN, or "*"
	target  netip.Addr
	limiter *rate.Limiter
	server  *dns.Server
	addr    net.Addr
}

// New returns a stopped redirector.
func New(opts Options) *Redirector {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Domain == "" {
		opts.Domain = DefaultDomain
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.ErrorCode == 0 {
		opts.ErrorCode = DefaultErrorCode
	}

	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = max(1, int(opts.Rate))
	}

	return &Redirector{
		opts:    opts,
		domain:  normalizeDomain(opts.Domain),
		target:  opts.Target,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// normalizeDomain lower-cases the name, drops a leading "www." and makes it
// fully qualified. The wildcard is kept as is.
func normalizeDomain(name string) string {
	if name == DefaultDomain {
		return name
	}
	name = strings.ToLower(dns.Fqdn(name))
	return strings.TrimPrefix(name, "www.")
}

// Start binds the UDP socket and serves queries until Stop is called or ctx
// is cancelled.
func (r *Redirector) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.server != nil {
		return nil
	}
	if !r.target.Is4() {
		return fmt.Errorf("dnsredirect: target %v is not an IPv4 address", r.target)
	}

	listen := net.JoinHostPort(r.opts.Host, strconv.Itoa(r.opts.Port))
	pc, err := net.ListenPacket("udp", listen)
	if err != nil {
		return fmt.Errorf("dnsredirect: listen %s: %w", listen, err)
	}

	started := make(chan struct{})
	errc := make(chan error, 1)
	srv := &dns.Server{
		PacketConn:        pc,
		Addr:              pc.LocalAddr().String(),
		Net:               "udp",
		Handler:           r,
		NotifyStartedFunc: func() { close(started) },
	}

	go func() {
		if err := srv.ActivateAndServe(); err != nil {
			slog.Error("dnsredirect: server error", "addr", listen, "err", err)
			errc <- err
		}
	}()

	select {
	case <-started:
	case err := <-errc:
		pc.Close()
		return fmt.Errorf("dnsredirect: serve %s: %w", listen, err)
	}

	r.server = srv
	r.addr = pc.LocalAddr()
	go func() {
		<-ctx.Done()
		r.Stop()
	}()

	slog.Info("dnsredirect: started", "addr", pc.LocalAddr().String(),
		"domain", r.opts.Domain, "target", r.target.String(), "ttl", r.opts.TTL)
	return nil
}

// Stop shuts the server down. It is safe to call more than once.
func (r *Redirector) Stop() {
	r.mu.Lock()
	srv := r.server
	r.server = nil
	r.mu.Unlock()

	if srv == nil {
		return
	}
	if err := srv.Shutdown(); err != nil && !errors.Is(err, net.ErrClosed) {
		slog.Warn("dnsredirect: shutdown", "err", err)
	}
	slog.Info("dnsredirect: stopped")
}

// Addr returns the bound address while running, nil otherwise.
func (r *Redirector) Addr() net.Addr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.server == nil {
		return nil
	}
	return r.addr
}

// SetTarget changes the address handed out in answers.
func (r *Redirector) SetTarget(addr netip.Addr) {
	r.mu.Lock()
	r.target = addr
	r.mu.Unlock()
	slog.Debug("dnsredirect: target changed", "target", addr.String())
}

// Target returns the address handed out in answers.
func (r *Redirector) Target() netip.Addr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.target
}

func (r *Redirector) matches(name string) bool {
	if r.domain == DefaultDomain {
		return true
	}
	name = strings.TrimPrefix(strings.ToLower(name), "www.")
	return name == r.domain
}

// ServeDNS implements dns.Handler.
func (r *Redirector) ServeDNS(w dns.ResponseWriter, req *dns.Msg) {
	if !r.limiter.Allow() {
		slog.Debug("dnsredirect: rate limited", "remote", w.RemoteAddr())
		return
	}

	msg := new(dns.Msg)
	msg.SetReply(req)

	r.mu.RLock()
	target := r.target
	ttl := uint32(r.opts.TTL / time.Second)
	errCode := r.opts.ErrorCode
	r.mu.RUnlock()

	if req.Opcode != dns.OpcodeQuery || len(req.Question) != 1 {
		msg.Rcode = errCode
		w.WriteMsg(msg)
		return
	}

	q := req.Question[0]
	answerable := q.Qclass == dns.ClassINET && (q.Qtype == dns.TypeA || q.Qtype == dns.TypeANY)
	if !answerable || !r.matches(q.Name) || !target.Is4() {
		msg.Rcode = errCode
		w.WriteMsg(msg)
		return
	}

	msg.Authoritative = true
	msg.Answer = []dns.RR{&dns.A{
		Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: ttl},
		A:   net.IP(target.AsSlice()),
	}}
	if err := w.WriteMsg(msg); err != nil {
		slog.Debug("dnsredirect: write reply", "err", err)
	}
}
