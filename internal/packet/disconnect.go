package packet

import (
	"fmt"

	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
)

// DisconnectPayloads 服务端主动断开时的原因描述
type DisconnectPayloads struct {
	Reason string
}

// 协议5.0定义的断开原因码，部分服务端对3.1.1客户端也会携带
var disconnectReasonMap = map[byte]string{
	0x00: "normal disconnection",
	0x80: "unspecified error",
	0x81: "malformed packet",
	0x82: "protocol error",
	0x89: "server busy",
	0x8B: "server shutting down",
	0x8D: "keep alive timeout",
	0x8E: "session taken over",
	0x93: "receive maximum exceeded",
	0x97: "quota exceeded",
	0x9C: "use another server",
	0x9D: "server moved",
}

// NewDisconnectPacket 构造客户端正常断开的 DISCONNECT 控制包
func NewDisconnectPacket() []byte {
	return assemblePacket(mqtt.DISCONNECT, 0x00, nil)
}

// ParseDisconnectPacket 解析服务端发来的 DISCONNECT 控制包
// 协议3.1.1中该报文没有负载，剩余长度大于0时按5.0的原因码解释
func ParseDisconnectPacket(packet *mqtt.Packet) *DisconnectPayloads {
	result := &DisconnectPayloads{Reason: "normal disconnection"}

	if packet.Header.RemainingLength == 0 {
		return result
	}

	code, err := readPacketByte(packet.Payload)
	if err != nil {
		return result
	}
	if reason, ok := disconnectReasonMap[code]; ok {
		result.Reason = reason
	} else {
		result.Reason = fmt.Sprintf("reason code 0x%02X", code)
	}

	return result
}
