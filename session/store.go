package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ostafen/clover"
	"go.uber.org/zap"

	"github.com/lumenview/lumenview/types"
	"github.com/lumenview/lumenview/utils"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const (
	collectionSessions = "sessions"
	collectionAuto     = "auto_session"

	autoSessionID = "auto"
)

// CloverStore persists viewer sessions in an embedded CloverDB document
// store. The auto-session is a single document in its own collection so it
// never shows up in named-session listings.
type CloverStore struct {
	db     *clover.DB
	logger types.Logger
	broker types.EventBroker
	path   string
	mu     sync.Mutex
	state  atomic.Value
}

func NewCloverStore(ctx context.Context, config types.ConfigManager, logger types.Logger, broker types.EventBroker) (types.SessionStore, error) {
	cfg := config.GetConfig()

	path := ""
	if cfg.Session != nil {
		path = cfg.Session.Path
	}
	if path == "" {
		baseDir, err := cfg.StateDir()
		if err != nil {
			return nil, types.WrapError(err, "failed to resolve state dir")
		}
		path = filepath.Join(baseDir, "sessions")
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, types.WrapError(err, "failed to create session store dir")
	}

	db, err := clover.Open(path)
	if err != nil {
		return nil, types.Errorf(types.ErrSessionStoreFailed, "open %s: %v", path, err)
	}

	store := &CloverStore{
		db:     db,
		logger: logger,
		broker: broker,
		path:   path,
	}

	for _, collection := range []string{collectionSessions, collectionAuto} {
		exists, err := db.HasCollection(collection)
		if err != nil {
			_ = db.Close()
			return nil, types.WrapError(err, "failed to check collection existence")
		}
		if !exists {
			if err := db.CreateCollection(collection); err != nil {
				_ = db.Close()
				return nil, types.WrapError(err, "failed to create collection")
			}
		}
	}

	store.state.Store(StateStopped)
	return store, nil
}

func (s *CloverStore) Start() error {
	if !s.state.CompareAndSwap(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	defer func() {
		if s.state.Load().(State) == StateStarting {
			s.state.Store(StateRunning)
		}
	}()

	s.logger.Info("Session store started", zap.String("path", s.path))
	return nil
}

func (s *CloverStore) Stop() error {
	if !s.state.CompareAndSwap(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		s.state.Store(StateStopped)
	}()

	if err := s.db.Close(); err != nil {
		return types.WrapError(err, "failed to close session store")
	}

	s.logger.Info("Session store stopped gracefully")
	return nil
}

func (s *CloverStore) IsRunning() bool {
	return s.state.Load().(State) == StateRunning
}

func (s *CloverStore) SaveAuto(ctx context.Context, session types.SessionData) error {
	session.ID = autoSessionID
	if session.CreatedAt == "" {
		session.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	if err := s.upsert(ctx, collectionAuto, session); err != nil {
		return err
	}

	if s.broker != nil {
		s.broker.Publish(types.EventSessionSaved, map[string]interface{}{
			"id":   autoSessionID,
			"tabs": len(session.Tabs),
		})
	}

	return nil
}

func (s *CloverStore) LoadAuto(ctx context.Context) (*types.SessionData, error) {
	return s.findOne(ctx, collectionAuto, autoSessionID)
}

func (s *CloverStore) Save(ctx context.Context, session types.SessionData) (string, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt == "" {
		session.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	if err := s.upsert(ctx, collectionSessions, session); err != nil {
		return "", err
	}

	if s.broker != nil {
		s.broker.Publish(types.EventSessionSaved, map[string]interface{}{
			"id":   session.ID,
			"name": session.Name,
			"tabs": len(session.Tabs),
		})
	}

	return session.ID, nil
}

func (s *CloverStore) Load(ctx context.Context, id string) (*types.SessionData, error) {
	if id == "" {
		return nil, types.ErrSessionIDEmpty
	}

	session, err := s.findOne(ctx, collectionSessions, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, types.Errorf(types.ErrSessionNotFound, "id: %s", id)
	}

	return session, nil
}

func (s *CloverStore) List(ctx context.Context) ([]types.SessionData, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.db.Query(collectionSessions).
		Sort(clover.SortOption{Field: "created_at", Direction: 1}).
		FindAll()
	if err != nil {
		return nil, types.WrapError(err, "failed to list sessions")
	}

	sessions := make([]types.SessionData, 0, len(docs))
	for _, doc := range docs {
		var session types.SessionData
		if err := doc.Unmarshal(&session); err != nil {
			s.logger.Warn("Skipping undecodable session document", zap.Error(err))
			continue
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}

func (s *CloverStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrSessionIDEmpty
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := s.db.Query(collectionSessions).Where(clover.Field("id").Eq(id))

	count, err := query.Count()
	if err != nil {
		return types.WrapError(err, "failed to count sessions")
	}
	if count == 0 {
		return types.Errorf(types.ErrSessionNotFound, "id: %s", id)
	}

	if err := query.Delete(); err != nil {
		return types.WrapError(err, "failed to delete session")
	}

	return nil
}

func (s *CloverStore) Export(ctx context.Context, id string, path string) error {
	var session *types.SessionData
	var err error

	if id == autoSessionID {
		session, err = s.LoadAuto(ctx)
		if err == nil && session == nil {
			err = types.Errorf(types.ErrSessionNotFound, "id: %s", id)
		}
	} else {
		session, err = s.Load(ctx, id)
	}
	if err != nil {
		return err
	}

	data, err := utils.Marshal(session)
	if err != nil {
		return types.WrapError(err, "failed to encode session")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return types.WrapError(err, "failed to write session file")
	}

	return nil
}

func (s *CloverStore) Import(ctx context.Context, path string) (*types.SessionData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.Errorf(types.ErrSessionImportFailed, "read %s: %v", path, err)
	}

	var session types.SessionData
	if err := utils.Unmarshal(data, &session); err != nil {
		return nil, types.Errorf(types.ErrSessionImportFailed, "decode %s: %v", path, err)
	}

	// Imported sessions always get a fresh identity.
	session.ID = uuid.NewString()

	if _, err := s.Save(ctx, session); err != nil {
		return nil, err
	}

	return &session, nil
}

func (s *CloverStore) upsert(ctx context.Context, collection string, session types.SessionData) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	fields, err := sessionFields(session)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := s.db.Query(collection).Where(clover.Field("id").Eq(session.ID))

	count, err := query.Count()
	if err != nil {
		return types.WrapError(err, "failed to count sessions")
	}

	if count > 0 {
		if err := query.Update(fields); err != nil {
			return types.WrapError(err, "failed to update session")
		}
		return nil
	}

	doc := clover.NewDocument()
	for key, value := range fields {
		doc.Set(key, value)
	}

	if err := s.db.Insert(collection, doc); err != nil {
		return types.WrapError(err, "failed to insert session")
	}

	return nil
}

func (s *CloverStore) findOne(ctx context.Context, collection, id string) (*types.SessionData, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.db.Query(collection).
		Where(clover.Field("id").Eq(id)).
		Limit(1).
		FindAll()
	if err != nil {
		return nil, types.WrapError(err, "failed to query sessions")
	}
	if len(docs) == 0 {
		return nil, nil
	}

	var session types.SessionData
	if err := docs[0].Unmarshal(&session); err != nil {
		return nil, types.WrapError(err, "failed to decode session document")
	}

	return &session, nil
}

// sessionFields flattens a session into document fields by a JSON round-trip
// so the stored shape always matches the wire shape.
func sessionFields(session types.SessionData) (map[string]interface{}, error) {
	data, err := utils.Marshal(session)
	if err != nil {
		return nil, types.WrapError(err, "failed to encode session")
	}

	fields := make(map[string]interface{})
	if err := utils.Unmarshal(data, &fields); err != nil {
		return nil, types.WrapError(err, "failed to flatten session")
	}

	return fields, nil
}
