package types

import "context"

type SessionStore interface {
	LifecycleManager

	// Auto-session: the single implicit session written on every layout
	// change and restored on startup. LoadAuto returns nil when none exists.
	SaveAuto(ctx context.Context, session SessionData) error
	LoadAuto(ctx context.Context) (*SessionData, error)

	// Named sessions.
	Save(ctx context.Context, session SessionData) (string, error)
	Load(ctx context.Context, id string) (*SessionData, error)
	List(ctx context.Context) ([]SessionData, error)
	Delete(ctx context.Context, id string) error

	// Export/Import move a session through a plain JSON file chosen by the
	// frontend's file dialog.
	Export(ctx context.Context, id string, path string) error
	Import(ctx context.Context, path string) (*SessionData, error)
}

type SessionData struct {
	ID          string       `json:"id,omitempty"`
	Name        string       `json:"name,omitempty"`
	Tabs        []SessionTab `json:"tabs"`
	ActiveTabID string       `json:"active_tab_id,omitempty"`
	CreatedAt   string       `json:"created_at"`
}

type SessionTab struct {
	ID        string `json:"id"`
	ImagePath string `json:"image_path"`
	Order     uint32 `json:"order"`
}
