package packet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
)

type FieldPayload struct {
	PayloadLength int
	Payload       []byte
}

func readPacketByte(payload *mqtt.Payload) (byte, error) {
	startByte := payload.CurrentPtr
	if startByte >= payload.ContextLen {
		return 0, errors.New("invalid packet context length")
	}
	payload.CurrentPtr++
	return payload.Context[startByte], nil
}

func readPacketBytes(payload *mqtt.Payload, length int) ([]byte, error) {
	if length <= 0 {
		return nil, errors.New("invalid reading length, except > 0")
	}
	if length == 1 {
		bytes, err := readPacketByte(payload)
		return []byte{bytes}, err
	}
	startByte := payload.CurrentPtr
	contextLen := payload.ContextLen
	if startByte >= contextLen {
		return nil, errors.New("invalid packet context length")
	}
	end := startByte + length
	if end > contextLen {
		return nil, errors.New("invalid packet context length")
	}
	data := payload.Context[startByte:end]
	payload.CurrentPtr = end
	return data, nil
}

func readPacketPayload(payload *mqtt.Payload) (FieldPayload, error) {
	startByte := payload.CurrentPtr
	contextLen := payload.ContextLen
	if startByte+1 >= contextLen {
		return FieldPayload{}, errors.New("insufficient bytes for length")
	}
	length := int(mqtt.ByteToUInt16(payload.Context[startByte : startByte+2]))
	end := startByte + 2 + length
	if end > contextLen {
		return FieldPayload{}, fmt.Errorf("payload length %d exceeds buffer (len=%d)", length, contextLen)
	}
	payload.CurrentPtr += 2 + length
	return FieldPayload{
		PayloadLength: length,
		Payload:       payload.Context[startByte+2 : end],
	}, nil
}

// appendLengthPrefixed 写入带2字节长度前缀的字段
func appendLengthPrefixed(buf []byte, field []byte) []byte {
	buf = append(buf, mqtt.UInt16ToByte(uint16(len(field)))...)
	return append(buf, field...)
}

// assemblePacket 拼接固定头、剩余长度与负载
func assemblePacket(packetType mqtt.PacketType, flags byte, payload []byte) []byte {
	packet := make([]byte, 1, 2+len(payload))
	packet[0] = byte(packetType)<<4 | flags
	packet = append(packet, mqtt.EncodeRemainingLength(len(payload))...)
	return append(packet, payload...)
}

// ValidateTopicFilter 检查订阅主题过滤器是否符合协议要求
func ValidateTopicFilter(filter string) error {
	if len(filter) == 0 {
		return errors.New("topic filter must not be empty")
	}
	if strings.ContainsRune(filter, 0) {
		return errors.New("topic filter must not contain null character")
	}
	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if level == "#" && i != len(levels)-1 {
			return fmt.Errorf("'#' must be the last level, topic: %s", filter)
		}
		if level != "#" && level != "+" && strings.ContainsAny(level, "#+") {
			return fmt.Errorf("wildcard must occupy an entire level, topic: %s", filter)
		}
	}
	return nil
}

// ValidateTopicName 检查发布主题是否符合协议要求，发布主题不允许通配符
func ValidateTopicName(topic string) error {
	if len(topic) == 0 {
		return errors.New("topic name must not be empty")
	}
	if strings.ContainsRune(topic, 0) {
		return errors.New("topic name must not contain null character")
	}
	if strings.ContainsAny(topic, "#+") {
		return fmt.Errorf("topic name must not contain wildcard, topic: %s", topic)
	}
	return nil
}

// ValidateQoS 检查QoS等级是否在0-2范围内
func ValidateQoS(qos byte) error {
	if qos > 2 {
		return fmt.Errorf("invalid QoS level %d, except 0-2", qos)
	}
	return nil
}
