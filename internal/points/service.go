package points

import (
	"context"
	"strings"
	"sync"
	"time"

	"skillreel.org/internal/ids"
)

// Service is the backend core contract: profile store, video registry,
// watch-history ledger and the points transfer engine behind one
// interface. The engine methods are the only balance writers.
type Service interface {
	CreateProfile(ctx context.Context, identity, name string) (Profile, error)
	GetProfile(ctx context.Context, identity string) (Profile, bool, error)
	UpdateProfileName(ctx context.Context, identity, name string) (Profile, error)
	GetBalance(ctx context.Context, identity string) (int64, bool, error)

	UploadVideo(ctx context.Context, creator string, in VideoInput) (Video, error)
	GetVideo(ctx context.Context, id string) (Video, error)
	ListVideos(ctx context.Context) ([]Video, error)
	ListVideosByCreator(ctx context.Context, identity string) ([]Video, error)

	WatchVideo(ctx context.Context, viewer, videoID string) (WatchRecord, error)
	WatchHistory(ctx context.Context, viewer string) ([]WatchRecord, error)
}

// InMemory implements Service with in-process concurrency safety.
// A single write lock covers profiles, videos and history, so the
// debit/credit/append unit of a watch is indivisible to every reader.
type InMemory struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	videos   map[string]*Video
	history  []WatchRecord
	byViewer map[string][]int // history indexes per viewer
	seq      uint64
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		profiles: make(map[string]*Profile),
		videos:   make(map[string]*Video),
		byViewer: make(map[string][]int),
	}
}

func (s *InMemory) CreateProfile(ctx context.Context, identity, name string) (Profile, error) {
	identity = strings.TrimSpace(identity)
	name = strings.TrimSpace(name)
	if identity == "" || name == "" {
		return Profile{}, ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[identity]; ok {
		return Profile{}, ErrProfileExists
	}
	p := &Profile{
		ID:        identity,
		Name:      name,
		Points:    InitialGrant,
		CreatedAt: time.Now().UTC(),
	}
	s.profiles[identity] = p
	return *p, nil
}

func (s *InMemory) GetProfile(ctx context.Context, identity string) (Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[identity]
	if !ok {
		return Profile{}, false, nil
	}
	return *p, true, nil
}

// UpdateProfileName changes the display name and nothing else. The input
// shape cannot carry a balance, which keeps the conservation invariant
// out of reach of callers.
func (s *InMemory) UpdateProfileName(ctx context.Context, identity, name string) (Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Profile{}, ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[identity]
	if !ok {
		return Profile{}, ErrProfileRequired
	}
	p.Name = name
	return *p, nil
}

func (s *InMemory) GetBalance(ctx context.Context, identity string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[identity]
	if !ok {
		return 0, false, nil
	}
	return p.Points, true, nil
}

func (s *InMemory) UploadVideo(ctx context.Context, creator string, in VideoInput) (Video, error) {
	if err := validateVideoInput(in); err != nil {
		return Video{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[creator]; !ok {
		return Video{}, ErrProfileRequired
	}
	if _, ok := s.videos[in.ID]; ok {
		return Video{}, ErrVideoExists
	}
	v := &Video{
		ID:          in.ID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Creator:     creator,
		Content:     in.Content,
		CreatedAt:   time.Now().UTC(),
	}
	s.videos[in.ID] = v
	return *v, nil
}

func (s *InMemory) GetVideo(ctx context.Context, id string) (Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.videos[id]
	if !ok {
		return Video{}, ErrVideoNotFound
	}
	return *v, nil
}

func (s *InMemory) ListVideos(ctx context.Context) ([]Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Video, 0, len(s.videos))
	for _, v := range s.videos {
		out = append(out, *v)
	}
	return out, nil
}

func (s *InMemory) ListVideosByCreator(ctx context.Context, identity string) ([]Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Video
	for _, v := range s.videos {
		if v.Creator == identity {
			out = append(out, *v)
		}
	}
	return out, nil
}

// WatchVideo validates and executes one watch transaction. Checks run in
// a fixed order so error precedence is deterministic, and the whole
// sequence holds the write lock: no interleaving operation can observe a
// debit without the matching credit and history record.
func (s *InMemory) WatchVideo(ctx context.Context, viewer, videoID string) (WatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[videoID]
	if !ok {
		return WatchRecord{}, ErrVideoNotFound
	}
	if v.Creator == viewer {
		return WatchRecord{}, ErrSelfWatch
	}
	vp, ok := s.profiles[viewer]
	if !ok {
		return WatchRecord{}, ErrProfileRequired
	}
	if vp.Points < WatchFee {
		return WatchRecord{}, ErrInsufficientPoints
	}

	// Creator holds a profile: UploadVideo requires one and profiles are
	// never deleted.
	cp := s.profiles[v.Creator]
	vp.Points -= WatchFee
	cp.Points += WatchFee

	s.seq++
	rec := WatchRecord{
		ID:        ids.New(),
		Viewer:    viewer,
		VideoID:   videoID,
		Sequence:  s.seq,
		Timestamp: time.Now().UTC(),
	}
	s.byViewer[viewer] = append(s.byViewer[viewer], len(s.history))
	s.history = append(s.history, rec)
	return rec, nil
}

func (s *InMemory) WatchHistory(ctx context.Context, viewer string) ([]WatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idxs := s.byViewer[viewer]
	out := make([]WatchRecord, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.history[i])
	}
	return out, nil
}

func validateVideoInput(in VideoInput) error {
	if strings.TrimSpace(in.ID) == "" {
		return ErrInvalidArgument
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Description) == "" {
		return ErrInvalidArgument
	}
	if !ValidCategory(in.Category) {
		return ErrInvalidArgument
	}
	if in.Content.IsZero() {
		return ErrInvalidArgument
	}
	return nil
}
