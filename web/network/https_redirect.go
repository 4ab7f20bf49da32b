// Package network lets a single TLS port answer plain HTTP requests with a
// redirect to the https URL.
package network

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"
)

// tlsHandshake is the record type byte that opens every TLS ClientHello.
const tlsHandshake = 0x16

const sniffTimeout = 10 * time.Second

// RedirectListener hands TLS connections through and answers anything else
// with 307 to https://host/uri.
type RedirectListener struct {
	net.Listener
}

func NewRedirectListener(l net.Listener) net.Listener {
	return &RedirectListener{Listener: l}
}

// Accept returns the next TLS connection. Plain HTTP connections are
// redirected and closed without being returned.
func (l *RedirectListener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}
		peeked, isTLS := sniff(conn)
		if isTLS {
			return peeked, nil
		}
		go redirect(peeked)
	}
}

type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(b []byte) (int, error) {
	return c.r.Read(b)
}

func sniff(conn net.Conn) (*bufferedConn, bool) {
	bc := &bufferedConn{Conn: conn, r: bufio.NewReader(conn)}
	_ = conn.SetReadDeadline(time.Now().Add(sniffTimeout))
	first, err := bc.r.Peek(1)
	_ = conn.SetReadDeadline(time.Time{})
	if err != nil {
		// Let the TLS server report the failure.
		return bc, true
	}
	return bc, first[0] == tlsHandshake
}

func redirect(conn *bufferedConn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(sniffTimeout))
	req, err := http.ReadRequest(conn.r)
	if err != nil {
		return
	}
	resp := http.Response{
		StatusCode: http.StatusTemporaryRedirect,
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{},
	}
	resp.Header.Set("Location", fmt.Sprintf("https://%s%s", req.Host, req.RequestURI))
	resp.Header.Set("Connection", "close")
	_ = resp.Write(conn)
}
