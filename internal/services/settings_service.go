package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kliklens/studioops/internal/config"
	"kliklens/studioops/internal/models"
)

// ISettingsService serves tenant-level settings: the workflow status
// pipeline plus free-form key/value entries. Values load once at startup and
// refresh via Redis pub/sub when another instance writes.
type ISettingsService interface {
	GetWorkflowConfig(ctx context.Context) models.WorkflowConfig
	SetWorkflowConfig(ctx context.Context, cfg models.WorkflowConfig) error

	GetAllPublic(ctx context.Context) (map[string]interface{}, error)
	Get(ctx context.Context, key string) (interface{}, error)
	GetInt(ctx context.Context, key string, defaultValue int) int
	GetString(ctx context.Context, key string, defaultValue string) string
	GetBool(ctx context.Context, key string, defaultValue bool) bool
	GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration
	SetValue(ctx context.Context, key string, value interface{}, isPublic bool) error

	Load(ctx context.Context) error
	SubscribeToChanges(ctx context.Context) error
}

const (
	settingsCollection    = "settings"
	workflowCollection    = "workflow_config"
	settingsUpdateChannel = "settings_updates"
	workflowDocKey        = "default"
)

type settingsService struct {
	db  *mongo.Database
	cfg *config.Config
	rdb *redis.Client

	mutex    sync.RWMutex
	cache    map[string]interface{}
	workflow *models.WorkflowConfig
}

// SettingsEntry represents a document in the settings collection.
type SettingsEntry struct {
	Key    string      `bson:"key"`
	Value  interface{} `bson:"value"`
	Public bool        `bson:"public"`
}

type workflowDoc struct {
	Key      string                `bson:"key"`
	Workflow models.WorkflowConfig `bson:"workflow"`
}

// NewSettingsService creates a new SettingsService and starts the pub/sub
// refresh listener.
func NewSettingsService(db *mongo.Database, initialCfg *config.Config, rdb *redis.Client) ISettingsService {
	s := &settingsService{
		db:    db,
		cfg:   initialCfg,
		rdb:   rdb,
		cache: make(map[string]interface{}),
	}
	if err := s.Load(context.Background()); err != nil {
		log.Printf("WARN: failed to load settings from DB: %v. Using defaults", err)
	}
	go func() {
		if err := s.SubscribeToChanges(context.Background()); err != nil {
			log.Printf("CRITICAL: settings pub/sub listener stopped: %v", err)
		}
	}()
	return s
}

// Load fetches the key/value entries and the workflow pipeline from DB into
// the in-memory cache.
func (s *settingsService) Load(ctx context.Context) error {
	collection := s.db.Collection(settingsCollection)
	cursor, err := collection.Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to query settings collection: %w", err)
	}
	defer cursor.Close(ctx)

	newCache := make(map[string]interface{})
	for cursor.Next(ctx) {
		var entry SettingsEntry
		if err := cursor.Decode(&entry); err == nil {
			newCache[entry.Key] = entry.Value
		} else {
			log.Printf("WARN: failed to decode settings entry during load: %v", err)
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("error iterating settings cursor: %w", err)
	}

	var newWorkflow *models.WorkflowConfig
	var doc workflowDoc
	err = s.db.Collection(workflowCollection).
		FindOne(ctx, bson.M{"key": workflowDocKey}).Decode(&doc)
	if err == nil {
		newWorkflow = &doc.Workflow
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		log.Printf("WARN: failed to load workflow config: %v", err)
	}

	s.mutex.Lock()
	s.cache = newCache
	s.workflow = newWorkflow
	s.mutex.Unlock()
	return nil
}

// GetWorkflowConfig returns the tenant pipeline, falling back to the default
// pipeline when none is stored.
func (s *settingsService) GetWorkflowConfig(ctx context.Context) models.WorkflowConfig {
	s.mutex.RLock()
	workflow := s.workflow
	s.mutex.RUnlock()
	if workflow != nil {
		return *workflow
	}
	return models.DefaultWorkflowConfig()
}

func (s *settingsService) SetWorkflowConfig(ctx context.Context, cfg models.WorkflowConfig) error {
	if len(cfg.Statuses) == 0 {
		return fmt.Errorf("%w: workflow must define at least one status", ErrValidationFailed)
	}
	seen := make(map[string]bool, len(cfg.Statuses))
	for _, st := range cfg.Statuses {
		if st.Name == "" || st.Name == models.StatusCancelled {
			return fmt.Errorf("%w: invalid status name %q", ErrValidationFailed, st.Name)
		}
		if st.Progress < 0 || st.Progress > 100 {
			return fmt.Errorf("%w: progress of %q out of range", ErrValidationFailed, st.Name)
		}
		if seen[st.Name] {
			return fmt.Errorf("%w: duplicate status %q", ErrValidationFailed, st.Name)
		}
		seen[st.Name] = true
	}

	opts := options.Update().SetUpsert(true)
	_, err := s.db.Collection(workflowCollection).UpdateOne(ctx,
		bson.M{"key": workflowDocKey},
		bson.M{"$set": workflowDoc{Key: workflowDocKey, Workflow: cfg}},
		opts)
	if err != nil {
		return fmt.Errorf("failed to upsert workflow config: %w", err)
	}

	s.mutex.Lock()
	s.workflow = &cfg
	s.mutex.Unlock()

	s.publishUpdate(ctx, "workflow")
	return nil
}

func (s *settingsService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	publicSettings := map[string]interface{}{}
	cursor, err := s.db.Collection(settingsCollection).Find(ctx, bson.M{"public": true})
	if err != nil {
		return nil, fmt.Errorf("failed to query public settings: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var entry SettingsEntry
		if err := cursor.Decode(&entry); err == nil {
			publicSettings[entry.Key] = entry.Value
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating public settings cursor: %w", err)
	}

	if _, exists := publicSettings["APP_NAME"]; !exists {
		publicSettings["APP_NAME"] = s.cfg.AppName
	}
	if _, exists := publicSettings["CURRENCY_CODE"]; !exists {
		publicSettings["CURRENCY_CODE"] = s.cfg.CurrencyCode
	}
	return publicSettings, nil
}

func (s *settingsService) Get(ctx context.Context, key string) (interface{}, error) {
	s.mutex.RLock()
	val, exists := s.cache[key]
	s.mutex.RUnlock()
	if exists {
		return val, nil
	}

	switch key {
	case "APP_NAME":
		return s.cfg.AppName, nil
	case "CURRENCY_CODE":
		return s.cfg.CurrencyCode, nil
	default:
		return nil, fmt.Errorf("settings key %q not found", key)
	}
}

func (s *settingsService) GetString(ctx context.Context, key string, defaultValue string) string {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	if strVal, ok := val.(string); ok {
		return strVal
	}
	log.Printf("WARN: settings key %q is not a string, using default", key)
	return defaultValue
}

func (s *settingsService) GetInt(ctx context.Context, key string, defaultValue int) int {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	// Mongo may hand numbers back as int32, int64 or float64.
	switch v := val.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		log.Printf("WARN: settings key %q is not an integer type (%T), using default", key, val)
		return defaultValue
	}
}

func (s *settingsService) GetBool(ctx context.Context, key string, defaultValue bool) bool {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	if boolVal, ok := val.(bool); ok {
		return boolVal
	}
	log.Printf("WARN: settings key %q is not a boolean, using default", key)
	return defaultValue
}

// GetDuration reads a duration stored as integer seconds.
func (s *settingsService) GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	switch v := val.(type) {
	case int:
		return time.Duration(v) * time.Second
	case int32:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v) * time.Second
	default:
		log.Printf("WARN: settings key %q is not a numeric type for duration (%T), using default", key, val)
		return defaultValue
	}
}

// SetValue upserts a key/value entry and notifies other instances.
func (s *settingsService) SetValue(ctx context.Context, key string, value interface{}, isPublic bool) error {
	opts := options.Update().SetUpsert(true)
	_, err := s.db.Collection(settingsCollection).UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$set": bson.M{"key": key, "value": value, "public": isPublic}},
		opts)
	if err != nil {
		return fmt.Errorf("failed to upsert settings key %q: %w", key, err)
	}

	s.mutex.Lock()
	s.cache[key] = value
	s.mutex.Unlock()

	s.publishUpdate(ctx, key)
	return nil
}

func (s *settingsService) publishUpdate(ctx context.Context, key string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Publish(ctx, settingsUpdateChannel, key).Err(); err != nil {
		log.Printf("WARN: failed to publish settings update for key %q: %v", key, err)
	}
}

// SubscribeToChanges reloads the cache whenever another instance publishes a
// settings update.
func (s *settingsService) SubscribeToChanges(ctx context.Context) error {
	if s.rdb == nil {
		log.Println("Redis client not configured, settings updates will not propagate.")
		return nil
	}

	pubsub := s.rdb.Subscribe(ctx, settingsUpdateChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to confirm settings pub/sub subscription: %w", err)
	}

	ch := pubsub.Channel()
	log.Println("Subscribed to Redis channel for settings updates:", settingsUpdateChannel)

	for msg := range ch {
		log.Printf("Settings update notification: %s", msg.Payload)
		if err := s.Load(context.Background()); err != nil {
			log.Printf("WARN: failed to reload settings after notification: %v", err)
		}
	}
	return nil
}
