package session

import (
	"strings"
	"testing"
)

func TestBrokerURL(t *testing.T) {
	cases := []struct {
		name   string
		login  LoginData
		expect string
		hasErr bool
	}{
		{"裸主机名", LoginData{Host: "broker.local"}, "tcp://broker.local:1883", false},
		{"指定端口字段", LoginData{Host: "broker.local", Port: 8883}, "tcp://broker.local:8883", false},
		{"主机名携带端口优先", LoginData{Host: "broker.local:1884", Port: 8883}, "tcp://broker.local:1884", false},
		{"websocket协议", LoginData{Host: "ws://broker.local/mqtt"}, "ws://broker.local:1883/mqtt", false},
		{"保留已有端口", LoginData{Host: "tcp://broker.local:1885"}, "tcp://broker.local:1885", false},
		{"空主机名", LoginData{Host: "  "}, "", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			result, err := c.login.BrokerURL()
			if c.hasErr {
				if err == nil {
					t.Errorf("期望解析失败 实际=%s", result)
				}
				return
			}
			if err != nil {
				t.Fatalf("解析失败: %v", err)
			}
			if result != c.expect {
				t.Errorf("期望=%s 实际=%s", c.expect, result)
			}
		})
	}
}

func TestLoginWill(t *testing.T) {
	login := LoginData{Host: "broker.local"}
	if login.Will() != nil {
		t.Error("未配置遗嘱主题时应返回nil")
	}

	login.WillTopic = "status/offline"
	login.WillPayload = []byte("gone")
	login.WillQoS = 1
	login.WillRetain = true
	will := login.Will()
	if will == nil {
		t.Fatal("配置遗嘱主题后不应返回nil")
	}
	if will.Topic != "status/offline" || string(will.Content) != "gone" || will.QoS != 1 || !will.Retain {
		t.Errorf("遗嘱消息错误: %+v", will)
	}
}

func TestNewClientID(t *testing.T) {
	first := NewClientID("")
	second := NewClientID("")
	if !strings.HasPrefix(first, "life-stream-client-") {
		t.Errorf("期望默认前缀life-stream-client 实际=%s", first)
	}
	if first == second {
		t.Errorf("客户端标识符不应重复: %s", first)
	}

	custom := NewClientID("sensor")
	if !strings.HasPrefix(custom, "sensor-") {
		t.Errorf("期望前缀sensor 实际=%s", custom)
	}
}
