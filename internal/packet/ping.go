package packet

import "github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"

// NewPingReqPacket 构造 PINGREQ 控制包
func NewPingReqPacket() []byte {
	return assemblePacket(mqtt.PINGREQ, 0x00, nil)
}
