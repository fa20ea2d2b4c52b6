package transport

import (
	"io"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// websocketConn 将WebSocket消息流适配为连续的字节流
// 协议要求每条WebSocket消息为二进制类型，内容为完整或部分的MQTT报文
type websocketConn struct {
	conn   *websocket.Conn
	reader io.Reader
}

func dialWebsocket(parsed *url.URL, timeout time.Duration) (Conn, error) {
	if parsed.Path == "" {
		parsed.Path = "/mqtt"
	}

	dialer := &websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: timeout,
		Subprotocols:     []string{"mqtt"},
	}

	conn, _, err := dialer.Dial(parsed.String(), nil)
	if err != nil {
		return nil, err
	}

	return &websocketConn{conn: conn}, nil
}

func (w *websocketConn) Read(p []byte) (int, error) {
	for {
		if w.reader == nil {
			messageType, reader, err := w.conn.NextReader()
			if err != nil {
				return 0, err
			}
			if messageType != websocket.BinaryMessage {
				// 忽略非二进制消息
				continue
			}
			w.reader = reader
		}

		n, err := w.reader.Read(p)
		if err == io.EOF {
			// 当前消息读完，继续读取下一条消息
			w.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (w *websocketConn) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *websocketConn) Close() error {
	return w.conn.Close()
}
