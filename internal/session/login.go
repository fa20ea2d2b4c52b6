package session

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/packet"
)

// DefaultPort MQTT协议的默认明文端口
const DefaultPort = 1883

// LoginData 一次会话的连接参数，会话启动后不再修改
type LoginData struct {
	Host        string // 主机名，允许携带协议前缀与端口
	Port        uint16 // 端口，0表示使用Host中的端口或默认端口
	Username    string
	Password    string
	WillTopic   string
	WillPayload []byte
	WillQoS     byte
	WillRetain  bool
}

// BrokerURL 解析出可连接的服务端地址
// 无协议前缀时默认tcp，无端口时默认1883
func (login *LoginData) BrokerURL() (string, error) {
	raw := strings.TrimSpace(login.Host)
	if raw == "" {
		return "", errors.New("broker host must not be empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "tcp://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid broker host %q, details: %v", login.Host, err)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("invalid broker host %q", login.Host)
	}

	if parsed.Port() == "" {
		port := login.Port
		if port == 0 {
			port = DefaultPort
		}
		parsed.Host = net.JoinHostPort(parsed.Hostname(), strconv.Itoa(int(port)))
	}

	return parsed.String(), nil
}

// Will 根据登录数据构造遗嘱消息，未配置遗嘱主题时返回nil
func (login *LoginData) Will() *packet.WillMessage {
	if login.WillTopic == "" {
		return nil
	}
	return &packet.WillMessage{
		Topic:   login.WillTopic,
		Content: login.WillPayload,
		QoS:     login.WillQoS,
		Retain:  login.WillRetain,
	}
}

// NewClientID 生成进程内唯一的客户端标识符
// 同一服务端上的标识符冲突会导致会话被接管，因此附加进程号与随机后缀
func NewClientID(prefix string) string {
	if prefix == "" {
		prefix = "life-stream-client"
	}
	return fmt.Sprintf("%s-%d-%s", prefix, os.Getpid(), uuid.NewString()[:8])
}
