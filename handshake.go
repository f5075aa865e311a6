package websocket

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	headerUpgrade      = "Upgrade"
	headerConn         = "Connection"
	headerSecWsVersion = "Sec-WebSocket-Version"
	headerSecWsKey     = "Sec-WebSocket-Key"
	headerSecWsAccept  = "Sec-WebSocket-Accept"

	headerUpgradeExpected      = "websocket"
	headerConnExpected         = "Upgrade"
	headerSecWsVersionExpected = "13"

	secWsKeyDecodedSize = 16

	wsGuid = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
)

var (
	ErrInvalidHandshakeRequest = errors.New("invalid handshake request")
	// Request is plain HTTP without an Upgrade header.
	ErrNotUpgrade = errors.New("not an upgrade request")
)

type SecWebsocketAccept string

// NewSecWebsocketAccept derives the Sec-WebSocket-Accept value for a client key.
func NewSecWebsocketAccept(secWebSocketKey string) SecWebsocketAccept {
	concat := secWebSocketKey + wsGuid

	hasher := sha1.New()
	hasher.Write([]byte(concat))

	bytes := hasher.Sum(nil)
	b64 := base64.StdEncoding.EncodeToString(bytes)

	return SecWebsocketAccept(b64)
}

func (a SecWebsocketAccept) String() string {
	return string(a)
}

// HandshakeResponse returns the complete 101 response for secWebSocketKey,
// header block terminator included. The key is expected to be validated by
// the caller.
func HandshakeResponse(secWebSocketKey string) string {
	lines := []string{
		"HTTP/1.1 101 Switching Protocols",
		headerUpgrade + ": " + headerUpgradeExpected,
		headerConn + ": " + headerConnExpected,
		headerSecWsAccept + ": " + NewSecWebsocketAccept(secWebSocketKey).String(),
		"",
	}

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\r\n")
	}

	return b.String()
}

// ReadHandshake parses the opening HTTP request from br and returns the
// client's Sec-WebSocket-Key. Bytes following the request stay buffered in br.
func ReadHandshake(br *bufio.Reader) (string, error) {
	req, err := http.ReadRequest(br)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read HTTP request: [%w]", ErrInvalidHandshakeRequest, err)
	}

	return upgradeKey(req)
}

func upgradeKey(req *http.Request) (string, error) {
	if req.Header.Get(headerUpgrade) == "" {
		return "", fmt.Errorf("%w: %s %s", ErrNotUpgrade, req.Method, req.URL)
	}

	if req.Method != http.MethodGet {
		return "", fmt.Errorf("%w: method must be GET, actual %q",
			ErrInvalidHandshakeRequest, req.Method)
	}

	actual, ok := headerEquals(req.Header, headerUpgrade, headerUpgradeExpected)
	if !ok {
		return "", fmt.Errorf(`%w: %q header must be %q, actual %q`,
			ErrInvalidHandshakeRequest, headerUpgrade, headerUpgradeExpected, actual)
	}

	if !headerContainsToken(req.Header, headerConn, headerConnExpected) {
		return "", fmt.Errorf(`%w: %q header must contain %q, actual %q`,
			ErrInvalidHandshakeRequest, headerConn, headerConnExpected, req.Header.Get(headerConn))
	}

	actual, ok = headerEquals(req.Header, headerSecWsVersion, headerSecWsVersionExpected)
	if !ok {
		return "", fmt.Errorf(`%w: %q header must be %q, actual %q`,
			ErrInvalidHandshakeRequest, headerSecWsVersion, headerSecWsVersionExpected, actual)
	}

	secWsKey := req.Header.Get(headerSecWsKey)
	if len(secWsKey) == 0 {
		return "", fmt.Errorf("%w: missing %q header", ErrInvalidHandshakeRequest, headerSecWsKey)
	}

	decoded, err := base64.StdEncoding.DecodeString(secWsKey)
	if err != nil {
		return "", fmt.Errorf("%w: failed to base64 decode %q header: [%w]",
			ErrInvalidHandshakeRequest, headerSecWsKey, err)
	}
	if len(decoded) != secWsKeyDecodedSize {
		return "", fmt.Errorf("%w: decoded value of %q must be %d bytes, received %d bytes",
			ErrInvalidHandshakeRequest, headerSecWsKey, secWsKeyDecodedSize, len(decoded))
	}

	return secWsKey, nil
}

// plainResponse renders a minimal HTTP/1.1 response that closes the connection.
func plainResponse(status int, body string) string {
	return "HTTP/1.1 " + strconv.Itoa(status) + " " + http.StatusText(status) + "\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n" +
		"Connection: close\r\n" +
		"\r\n" +
		body
}

// Checks if header equals expected value (case insensitive)
// If yes - returns `"", true`
// If no - returns `"<actual_value>", false`
func headerEquals(h http.Header, header, expectedValue string) (string, bool) {
	actualValue := h.Get(header)
	if strings.EqualFold(expectedValue, actualValue) {
		return "", true
	} else {
		return actualValue, false
	}
}

// Connection may list several tokens, e.g. "keep-alive, Upgrade".
func headerContainsToken(h http.Header, header, token string) bool {
	for _, v := range h.Values(header) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}
