package session

// 入站分发：对解码后的控制包做类型分发
// 确认类报文与在途操作表关联，未识别的类型只产生Status事件
// 返回false表示会话终止

import (
	"fmt"

	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/logger"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/packet"
)

func (s *Session) handleInbound(inbound packet.Inbound) bool {
	switch in := inbound.(type) {
	case *packet.Publish:
		s.handleInboundPublish(in)
	case *packet.SubAck:
		s.handleSubAck(in)
	case *packet.UnsubAck:
		s.handleUnsubAck(in)
	case *packet.PubAck:
		s.completePublish(in.PacketID)
	case *packet.PubRec:
		s.handlePubRec(in)
	case *packet.PubComp:
		s.completePublish(in.PacketID)
	case *packet.PubRel:
		// 入站QoS 2消息四步握手的最后一步由PUBCOMP应答
		if err := s.endpoint.Send(packet.NewPubCompPacket(in.PacketID)); err != nil {
			s.events.Push(&ErrorEvent{Text: fmt.Sprintf("Failed to send PUBCOMP: %v", err)})
		}
	case *packet.Disconnect:
		s.fail("Broker disconnected: %s", in.Reason)
		return false
	default:
		s.events.Push(&StatusEvent{Text: fmt.Sprintf("Received %s packet", inboundName(inbound))})
	}
	return true
}

// handleInboundPublish 服务端下发的消息：先上报，再按QoS应答
func (s *Session) handleInboundPublish(in *packet.Publish) {
	s.events.Push(&MessageReceivedEvent{
		Topic:   in.TopicName,
		QoS:     in.PacketFlag.QoS,
		Retain:  in.PacketFlag.Retain,
		Payload: in.Payload,
	})

	switch in.PacketFlag.QoS {
	case 0:
		// 无需应答
	case 1:
		if err := s.endpoint.Send(packet.NewPubAckPacket(in.PacketID)); err != nil {
			s.events.Push(&ErrorEvent{Text: fmt.Sprintf("Failed to send PUBACK: %v", err)})
		}
	case 2:
		if err := s.endpoint.Send(packet.NewPubRecPacket(in.PacketID)); err != nil {
			s.events.Push(&ErrorEvent{Text: fmt.Sprintf("Failed to send PUBREC: %v", err)})
		}
	}
}

func (s *Session) handleSubAck(in *packet.SubAck) {
	entry, ok := s.pending.takeSubscribe(in.PacketID)
	if !ok {
		s.events.Push(&StatusEvent{Text: fmt.Sprintf("SUBACK for unknown packet id %d", in.PacketID)})
		return
	}
	s.endpoint.ReleasePacketID(in.PacketID)

	qos := entry.qos
	if granted, err := in.GrantedQoS(); err == nil {
		// 仅在服务端确认后更新订阅表
		qos = granted
		s.registry.Set(entry.topic, granted)
	} else {
		logger.WarnF("[%s] Subscription to %s rejected by broker", s.clientID, entry.topic)
	}

	s.events.Push(&SubscribedEvent{
		Topic:   entry.topic,
		QoS:     qos,
		Details: fmt.Sprintf("return codes %v", in.ReturnCodes),
	})
}

func (s *Session) handleUnsubAck(in *packet.UnsubAck) {
	topic, ok := s.pending.takeUnsubscribe(in.PacketID)
	if !ok {
		s.events.Push(&StatusEvent{Text: fmt.Sprintf("UNSUBACK for unknown packet id %d", in.PacketID)})
		return
	}
	s.endpoint.ReleasePacketID(in.PacketID)

	s.registry.Remove(topic)
	s.events.Push(&UnsubscribedEvent{
		Topic:   topic,
		Details: fmt.Sprintf("packet id %d", in.PacketID),
	})
}

// completePublish PUBACK（QoS 1）或PUBCOMP（QoS 2）终结一次在途发布
// 在途表中不存在时静默忽略，重复或意外的确认不影响会话
func (s *Session) completePublish(packetID uint16) {
	entry, ok := s.pending.takePublish(packetID)
	if !ok {
		return
	}
	s.endpoint.ReleasePacketID(packetID)

	s.events.Push(&PublishedEvent{
		Topic:       entry.topic,
		PacketID:    packetID,
		HasPacketID: true,
	})
}

// handlePubRec QoS 2发布的第一阶段确认：应答PUBREL，条目保留至PUBCOMP
func (s *Session) handlePubRec(in *packet.PubRec) {
	entry, ok := s.pending.getPublish(in.PacketID)
	if !ok || !entry.twoPhase {
		return
	}
	if err := s.endpoint.Send(packet.NewPubRelPacket(in.PacketID)); err != nil {
		s.events.Push(&ErrorEvent{Text: fmt.Sprintf("Failed to send PUBREL: %v", err)})
	}
}

func inboundName(inbound packet.Inbound) string {
	switch in := inbound.(type) {
	case *packet.ConnAck:
		return "CONNACK"
	case *packet.Publish:
		return "PUBLISH"
	case *packet.SubAck:
		return "SUBACK"
	case *packet.UnsubAck:
		return "UNSUBACK"
	case *packet.PubAck:
		return "PUBACK"
	case *packet.PubRec:
		return "PUBREC"
	case *packet.PubRel:
		return "PUBREL"
	case *packet.PubComp:
		return "PUBCOMP"
	case *packet.PingResp:
		return "PINGRESP"
	case *packet.Disconnect:
		return "DISCONNECT"
	case *packet.Unknown:
		return in.Type.String()
	default:
		return fmt.Sprintf("%T", inbound)
	}
}
