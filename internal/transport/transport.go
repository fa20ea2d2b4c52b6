// Package transport 实现了客户端到服务端的字节流连接
// 支持 tcp 与 ws/wss 两种连接方式，上层统一按字节流读写
package transport

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"time"
)

// Conn 表示一条到服务端的双向字节流连接
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// Dial 根据URL建立到服务端的连接
// 无协议前缀时默认tcp，ws/wss通过WebSocket隧道传输
func Dial(rawURL string, timeout time.Duration) (Conn, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid broker url %q, details: %v", rawURL, err)
	}

	switch parsed.Scheme {
	case "", "tcp", "mqtt":
		conn, err := net.DialTimeout("tcp", parsed.Host, timeout)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case "ws", "wss":
		return dialWebsocket(parsed, timeout)
	default:
		return nil, fmt.Errorf("unsupported broker url scheme %q", parsed.Scheme)
	}
}
