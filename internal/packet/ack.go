package packet

// QoS 1/2 确认流程控制包：PUBACK、PUBREC、PUBREL、PUBCOMP
// 四种控制包结构相同，仅类型与标志位不同

import (
	"encoding/binary"
	"fmt"

	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
)

// AckPayloads 报文标识符确认类控制包的可变头内容
type AckPayloads struct {
	PacketID uint16
}

func newAckPacket(packetType mqtt.PacketType, flags byte, packetID uint16) []byte {
	return assemblePacket(packetType, flags, mqtt.UInt16ToByte(packetID))
}

// NewPubAckPacket 构造 PUBACK 控制包（QoS 1确认）
func NewPubAckPacket(packetID uint16) []byte {
	return newAckPacket(mqtt.PUBACK, 0x00, packetID)
}

// NewPubRecPacket 构造 PUBREC 控制包（QoS 2第一步）
func NewPubRecPacket(packetID uint16) []byte {
	return newAckPacket(mqtt.PUBREC, 0x00, packetID)
}

// NewPubRelPacket 构造 PUBREL 控制包（QoS 2第二步），标志位固定为0x02
func NewPubRelPacket(packetID uint16) []byte {
	return newAckPacket(mqtt.PUBREL, 0x02, packetID)
}

// NewPubCompPacket 构造 PUBCOMP 控制包（QoS 2第三步）
func NewPubCompPacket(packetID uint16) []byte {
	return newAckPacket(mqtt.PUBCOMP, 0x00, packetID)
}

// ParseAckPacket 解析确认类控制包的报文标识符
func ParseAckPacket(packet *mqtt.Packet) (*AckPayloads, error) {
	result := &AckPayloads{}

	packetID, err := readPacketBytes(packet.Payload, 2)
	if err != nil {
		return result, fmt.Errorf("error occured when reading packet ID, details: %v", err)
	}
	result.PacketID = binary.BigEndian.Uint16(packetID)

	return result, nil
}
