// Package endpoint 在字节流连接之上提供类型化的控制包收发接口
package endpoint

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/logger"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/packet"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/transport"
)

// Endpoint 表示一条到服务端的连接及其报文标识符状态
type Endpoint struct {
	conn      transport.Conn
	connID    string
	ids       *PacketIDManager
	closeOnce sync.Once
	closeErr  error
}

// Dial 建立到服务端的连接
func Dial(rawURL string, timeout time.Duration) (*Endpoint, error) {
	conn, err := transport.Dial(rawURL, timeout)
	if err != nil {
		return nil, err
	}
	return NewEndpoint(conn, rawURL), nil
}

// NewEndpoint 在已建立的连接上创建端点，测试时可传入管道连接
func NewEndpoint(conn transport.Conn, connID string) *Endpoint {
	return &Endpoint{
		conn:   conn,
		connID: connID,
		ids:    NewPacketIDManager(),
	}
}

// Send 发送一个完整的控制包，处理部分写入
func (e *Endpoint) Send(data []byte) error {
	total := 0
	for total < len(data) {
		n, err := e.conn.Write(data[total:])
		if err != nil {
			logger.ErrorF("[%s] Fail to send data, details: %v", e.connID, err)
			return err
		}
		total += n
	}
	logger.DebugF("[%s] Send %d bytes to broker", e.connID, total)
	return nil
}

// Recv 读取并解码一个入站控制包
// 返回*packet.DecodeError时连接仍然可用，其余错误视为连接级错误
func (e *Endpoint) Recv() (packet.Inbound, error) {
	raw, err := mqtt.ReadPacket(e.conn)
	if err != nil {
		return nil, err
	}
	logger.DebugF("[%s] Receive %s package, length %d", e.connID, raw.Header.Type, raw.Header.RemainingLength)
	return packet.Decode(raw)
}

// AcquirePacketID 分配一个当前未使用的报文标识符
func (e *Endpoint) AcquirePacketID() (uint16, error) {
	return e.ids.NextID()
}

// ReleasePacketID 归还报文标识符，收到对应确认后调用
func (e *Endpoint) ReleasePacketID(id uint16) {
	e.ids.ReleaseID(id)
}

// Close 关闭连接，重复调用返回首次的结果
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		if err := e.conn.Close(); err != nil && !IsNetClosedError(err) {
			e.closeErr = err
		}
	})
	return e.closeErr
}

func IsNetClosedError(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	ok := errors.As(err, &opErr)
	return ok && opErr.Timeout()
}

// HandleReadError 对读取错误按类别记录日志
func HandleReadError(connID string, err error) {
	switch {
	case errors.Is(err, io.EOF):
		logger.InfoF("[%s] Broker close connection", connID)
	case os.IsTimeout(err):
		logger.WarnF("[%s] Reading timeout", connID)
	default:
		logger.ErrorF("[%s] Error occured while reading packet, details: %v", connID, err)
	}
}
