package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/logger"
)

const SessionCollectionName = "client_sessions"

// SessionRecord 一次会话的订阅快照
// 重建会话时据此恢复订阅，消息本身不持久化
type SessionRecord struct {
	ClientID      string          `bson:"client_id"`
	Subscriptions map[string]byte `bson:"subscriptions"` // 主题过滤器: 授予QoS
	UpdatedAt     time.Time       `bson:"updated_at"`
}

// SessionStore 会话快照存储接口
type SessionStore interface {
	GetSession(clientID string) (*SessionRecord, error)
	SaveSession(record *SessionRecord) error
	DeleteSession(clientID string) error
}

type DBStore struct {
	db *mongo.Database
}

var (
	DbStore            *DBStore
	ClientIdEmptyError = errors.New("client_id is empty")
)

func NewDatabaseStore() *DBStore {
	if DbStore == nil {
		DbStore = &DBStore{db: Database}
	}
	return DbStore
}

func NewSessionRecord(clientID string, subscriptions map[string]byte) *SessionRecord {
	return &SessionRecord{
		ClientID:      clientID,
		Subscriptions: subscriptions,
		UpdatedAt:     time.Now(),
	}
}

func (ds *DBStore) GetSession(clientID string) (*SessionRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), OperationTimeout)
	defer cancel()

	if clientID == "" {
		return nil, ClientIdEmptyError
	}

	filter := bson.D{{Key: "client_id", Value: clientID}}
	var record SessionRecord

	startTime := time.Now()
	err := ds.db.Collection(SessionCollectionName).FindOne(ctx, filter).Decode(&record)
	logger.DebugF("session query cost: %v", time.Since(startTime))

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("document does not exist: %w", err)
		}
		return nil, fmt.Errorf("database operation failed: %w", err)
	}
	return &record, nil
}

func (ds *DBStore) SaveSession(record *SessionRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), OperationTimeout)
	defer cancel()

	if record.ClientID == "" {
		return ClientIdEmptyError
	}
	record.UpdatedAt = time.Now()

	filter := bson.D{{Key: "client_id", Value: record.ClientID}}
	opts := options.Replace().SetUpsert(true)

	result, err := ds.db.Collection(SessionCollectionName).ReplaceOne(ctx, filter, record, opts)

	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("unique key conflicts: %w", err)
		}
		return fmt.Errorf("database operation failed: %w", err)
	}

	logger.InfoF("Session saved: client_id=%s, matched=%d, modified=%d, upserted=%v",
		record.ClientID,
		result.MatchedCount,
		result.ModifiedCount,
		result.UpsertedID != nil,
	)

	return nil
}

func (ds *DBStore) DeleteSession(clientID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), OperationTimeout)
	defer cancel()

	if clientID == "" {
		return ClientIdEmptyError
	}

	filter := bson.D{{Key: "client_id", Value: clientID}}
	result, err := ds.db.Collection(SessionCollectionName).DeleteOne(ctx, filter)

	if err != nil {
		return fmt.Errorf("database operation failed: %w", err)
	}

	logger.InfoF("Session deleted: client_id=%s, deleted=%d", clientID, result.DeletedCount)

	return nil
}
