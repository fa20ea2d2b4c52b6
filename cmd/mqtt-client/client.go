package main

import (
	"context"
	"time"

	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/config"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/database"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/event"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/logger"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/session"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/subscription"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/utils"
)

// 事件轮询周期
const drainInterval = 200 * time.Millisecond

// sessionCloser 将会话的协作式关闭接入清理器
type sessionCloser struct {
	session *session.Session
}

func (sc *sessionCloser) Invoke(ctx context.Context) error {
	sc.session.Shutdown()
	select {
	case <-sc.session.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// client 表示层状态：会话句柄与按事件物化的订阅注册表
type client struct {
	session  *session.Session
	config   config.Config
	registry *subscription.Registry
	store    database.SessionStore
	// 快照以稳定的前缀为键，跨进程重启仍能找回上次的订阅
	snapshotID string
}

func runClient(cfg config.Config, cleaner *event.Cleaner) {
	login := &session.LoginData{
		Host:        cfg.Broker.Host,
		Port:        cfg.Broker.Port,
		Username:    cfg.Broker.Username,
		Password:    cfg.Broker.Password,
		WillTopic:   cfg.Broker.Will.Topic,
		WillPayload: []byte(cfg.Broker.Will.Payload),
		WillQoS:     cfg.Broker.Will.QoS,
		WillRetain:  cfg.Broker.Will.Retain,
	}

	sess := session.Start(login, session.Options{
		ClientIDPrefix: cfg.Broker.ClientIDPrefix,
		KeepAlive:      cfg.Broker.KeepAlive,
		ConnectTimeout: utils.ParseStringTimeDefault(cfg.Broker.ConnectTimeout, 10*time.Second),
	})
	cleaner.Add(&sessionCloser{session: sess})

	snapshotID := cfg.Broker.ClientIDPrefix
	if snapshotID == "" {
		snapshotID = "life-stream-client"
	}
	c := &client{
		session:    sess,
		config:     cfg,
		registry:   subscription.NewRegistry(),
		snapshotID: snapshotID,
	}
	if cfg.DatabaseEnabled() {
		c.store = database.NewDatabaseStore()
	}

	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.Done():
			// 工作协程已退出，处理剩余事件后返回
			c.drainEvents()
			return
		case <-ticker.C:
			c.drainEvents()
		}
	}
}

func (c *client) drainEvents() {
	for _, ev := range c.session.Events().Drain() {
		c.handleEvent(ev)
	}
}

func (c *client) handleEvent(ev session.Event) {
	clientID := c.session.ClientID()
	switch e := ev.(type) {
	case *session.StatusEvent:
		logger.InfoF("[%s] %s", clientID, e.Text)
	case *session.ErrorEvent:
		logger.ErrorF("[%s] %s", clientID, e.Text)
	case *session.ConnectedEvent:
		logger.InfoF("[%s] Session connected", clientID)
		c.subscribeStartup()
	case *session.DisconnectedEvent:
		logger.WarnF("[%s] Session closed: %s", clientID, e.Reason)
	case *session.SubscribedEvent:
		logger.InfoF("[%s] Subscribed to %s with QoS %d (%s)", clientID, e.Topic, e.QoS, e.Details)
		c.registry.Set(e.Topic, e.QoS)
		c.persistRegistry()
	case *session.UnsubscribedEvent:
		logger.InfoF("[%s] Unsubscribed from %s (%s)", clientID, e.Topic, e.Details)
		c.registry.Remove(e.Topic)
		c.persistRegistry()
	case *session.PublishedEvent:
		if e.HasPacketID {
			logger.InfoF("[%s] Published to %s, packet id %d", clientID, e.Topic, e.PacketID)
		} else {
			logger.InfoF("[%s] Published to %s", clientID, e.Topic)
		}
	case *session.MessageReceivedEvent:
		matched := c.registry.Match(e.Topic)
		logger.InfoF("[%s] Message on %s (QoS %d, retain %v, filters %v): %s",
			clientID, e.Topic, e.QoS, e.Retain, matched, e.Payload)
	}
}

// subscribeStartup 握手完成后订阅配置文件中声明的主题，并恢复上次快照中的订阅
func (c *client) subscribeStartup() {
	for _, sub := range subscribeTargets(c.config.Broker.Subscriptions, c.loadSnapshot()) {
		err := c.session.Send(&session.SubscribeCommand{
			Topic: sub.Topic,
			QoS:   sub.QoS,
		})
		if err != nil {
			logger.WarnF("Fail to queue subscribe command for %s, details: %v", sub.Topic, err)
		}
	}
}

// loadSnapshot 读取上次持久化的订阅快照，未启用存储或快照不存在时返回nil
func (c *client) loadSnapshot() *database.SessionRecord {
	if c.store == nil {
		return nil
	}
	record, err := c.store.GetSession(c.snapshotID)
	if err != nil {
		logger.DebugF("No session snapshot for %s, details: %v", c.snapshotID, err)
		return nil
	}
	return record
}

// subscribeTargets 合并配置声明与快照保存的订阅，主题重复时配置中的QoS优先
func subscribeTargets(configured []config.SubscriptionConfig, record *database.SessionRecord) []config.SubscriptionConfig {
	targets := make([]config.SubscriptionConfig, 0, len(configured))
	seen := make(map[string]bool)
	for _, sub := range configured {
		if seen[sub.Topic] {
			continue
		}
		seen[sub.Topic] = true
		targets = append(targets, sub)
	}
	if record == nil {
		return targets
	}
	for topic, qos := range record.Subscriptions {
		if seen[topic] {
			continue
		}
		seen[topic] = true
		targets = append(targets, config.SubscriptionConfig{Topic: topic, QoS: qos})
	}
	return targets
}

// persistRegistry 将订阅快照写入数据库，未启用存储时跳过
// 订阅表清空时删除快照，避免下次启动恢复出空记录
func (c *client) persistRegistry() {
	if c.store == nil {
		return
	}
	if c.registry.Len() == 0 {
		if err := c.store.DeleteSession(c.snapshotID); err != nil {
			logger.WarnF("Fail to delete session snapshot, details: %v", err)
		}
		return
	}
	record := database.NewSessionRecord(c.snapshotID, c.registry.Snapshot())
	if err := c.store.SaveSession(record); err != nil {
		logger.WarnF("Fail to persist session snapshot, details: %v", err)
	}
}
