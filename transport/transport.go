// Package transport establishes the reliable, ordered byte stream the
// Telnet Engine runs over: a TCP connection, optionally wrapped in TLS with
// a configurable security level and verification mode (spec.md §4.2).
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/opentn3270/tn3270/errs"
)

// SecLevel is the TLS cipher/protocol floor, consumed from ZTI_SECLEVEL.
type SecLevel int

const (
	// SecLevel0 places no additional floor beyond what crypto/tls already
	// refuses to negotiate (effectively TLS 1.0+, since Go's stdlib no
	// longer offers SSLv3).
	SecLevel0 SecLevel = iota
	// SecLevel1 requires TLS 1.1+.
	SecLevel1
	// SecLevel2 requires TLS 1.2+, the modern minimum.
	SecLevel2
)

func (s SecLevel) minVersion() uint16 {
	switch s {
	case SecLevel1:
		return tls.VersionTLS11
	case SecLevel2:
		return tls.VersionTLS12
	default:
		return tls.VersionTLS10
	}
}

// VerifyMode selects how a TLS peer certificate is validated, consumed
// from SESSION_SSL_VERIFY.
type VerifyMode int

const (
	// VerifyNone disables certificate validation entirely. Never chosen
	// automatically; a caller must opt in (spec.md §7, "TLS 'less-secure'
	// fallbacks occur only when... lowered").
	VerifyNone VerifyMode = iota
	// VerifyCert validates the certificate chain but not the hostname.
	VerifyCert
	// VerifyHostname performs full chain and hostname validation.
	VerifyHostname
)

// Options configures Dial.
type Options struct {
	// UseTLS enables TLS. When false, a plain TCP connection is used.
	UseTLS bool

	// SecLevel is the minimum TLS protocol version floor.
	SecLevel SecLevel

	// Verify selects certificate/hostname validation behavior.
	Verify VerifyMode

	// ServerName overrides SNI/hostname verification target; defaults to
	// the host portion of the dialed address.
	ServerName string

	// Log receives connection-lifecycle debug events. A nil Log is
	// equivalent to logrus's discard logger.
	Log *logrus.Entry
}

func (o Options) logger() *logrus.Entry {
	if o.Log != nil {
		return o.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// DefaultPort returns 992 for TLS connections and 23 for plain ones, per
// spec.md §4.2 and §6.
func DefaultPort(useTLS bool) int {
	if useTLS {
		return 992
	}
	return 23
}

// Transport is the reliable ordered byte stream the Telnet Engine frames
// records on top of. It performs no framing of its own.
type Transport interface {
	// Read blocks for up to ctx's deadline and returns up to len(buf)
	// bytes. Returns io.EOF-wrapped errs.Error(KindTransport) on a clean
	// close by the peer, and errs.Error(KindTimeout) on deadline exceeded.
	Read(ctx context.Context, buf []byte) (int, error)

	// Write blocks until all of b has been written or ctx's deadline
	// expires.
	Write(ctx context.Context, b []byte) error

	// Close shuts the connection down. Idempotent.
	Close() error

	// ConnectionState reports whether TLS was negotiated, and if so, the
	// negotiated version/cipher, for diagnostics.
	ConnectionState() (tls.ConnectionState, bool)
}

type connTransport struct {
	conn   net.Conn
	tlsCS  tls.ConnectionState
	isTLS  bool
	log    *logrus.Entry
}

// Dial connects to addr (host:port) and returns a Transport, optionally
// TLS-wrapped per opts.
func Dial(ctx context.Context, addr string, opts Options) (Transport, error) {
	log := opts.logger()

	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errs.Transport(err, "dial "+addr)
	}
	log.WithField("addr", addr).Debug("tcp connected")

	if !opts.UseTLS {
		return &connTransport{conn: raw, log: log}, nil
	}

	serverName := opts.ServerName
	if serverName == "" {
		if h, _, splitErr := net.SplitHostPort(addr); splitErr == nil {
			serverName = h
		} else {
			serverName = addr
		}
	}

	cfg := &tls.Config{
		MinVersion:         opts.SecLevel.minVersion(),
		ServerName:         serverName,
		InsecureSkipVerify: opts.Verify == VerifyNone,
	}
	if opts.Verify == VerifyCert {
		// Validate the chain but skip hostname matching: verify the
		// chain ourselves with VerifyConnection and an empty DNSName.
		cfg.InsecureSkipVerify = true
		cfg.VerifyConnection = func(cs tls.ConnectionState) error {
			if len(cs.PeerCertificates) == 0 {
				return errs.New(errs.KindTransport, "no peer certificate presented")
			}
			intermediates := x509.NewCertPool()
			for i, cert := range cs.PeerCertificates {
				if i == 0 {
					continue
				}
				intermediates.AddCert(cert)
			}
			_, err := cs.PeerCertificates[0].Verify(x509.VerifyOptions{
				// Roots left nil to fall back to the system root pool.
				// Chain validation only, no hostname match (VerifyCert
				// mode); KeyUsages left at the default (any).
				Intermediates: intermediates,
			})
			return err
		}
	}

	tlsConn := tls.Client(raw, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, errs.Transport(err, "tls handshake "+addr)
	}
	cs := tlsConn.ConnectionState()
	log.WithFields(logrus.Fields{
		"addr":    addr,
		"version": cs.Version,
	}).Debug("tls handshake complete")

	return &connTransport{conn: tlsConn, tlsCS: cs, isTLS: true, log: log}, nil
}

func (c *connTransport) Read(ctx context.Context, buf []byte) (int, error) {
	if dl, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(dl)
	} else {
		c.conn.SetReadDeadline(time.Time{})
	}
	n, err := c.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, errs.Timeout("transport read")
		}
		return n, errs.Transport(err, "read")
	}
	return n, nil
}

func (c *connTransport) Write(ctx context.Context, b []byte) error {
	if dl, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(dl)
	} else {
		c.conn.SetWriteDeadline(time.Time{})
	}
	_, err := c.conn.Write(b)
	if err != nil {
		return errs.Transport(err, "write")
	}
	return nil
}

func (c *connTransport) Close() error {
	if err := c.conn.Close(); err != nil {
		return errors.Wrap(err, "transport close")
	}
	return nil
}

func (c *connTransport) ConnectionState() (tls.ConnectionState, bool) {
	return c.tlsCS, c.isTLS
}
