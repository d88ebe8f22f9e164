package points

import (
	"errors"
	"time"

	"skillreel.org/internal/blob"
)

// Points are whole units, no fractions. Every successful watch moves
// WatchFee from the viewer to the creator; profile creation mints
// InitialGrant. Nothing else creates or destroys points.
const (
	WatchFee     int64 = 10
	InitialGrant int64 = 100
)

// Profile is the per-identity account. The identity is issued externally
// and never changes; the balance is mutated only by the watch transfer.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Points    int64     `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// Video is immutable metadata plus an opaque reference to externally
// stored content. There is no edit or delete.
type Video struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Creator     string    `json:"creator"`
	Content     blob.Ref  `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// VideoInput carries caller-supplied upload fields. The id is chosen by
// the caller and must be unique for the lifetime of the system.
type VideoInput struct {
	ID          string
	Title       string
	Description string
	Category    string
	Content     blob.Ref
}

// WatchRecord is one entry in the append-only watch history.
type WatchRecord struct {
	ID        string    `json:"id"`
	Viewer    string    `json:"viewer"`
	VideoID   string    `json:"video_id"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

var (
	ErrProfileExists      = errors.New("profile already exists")
	ErrProfileRequired    = errors.New("profile required")
	ErrVideoExists        = errors.New("video id already exists")
	ErrVideoNotFound      = errors.New("video not found")
	ErrSelfWatch          = errors.New("cannot watch own video")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUnavailable        = errors.New("storage unavailable")
)

// Categories is the fixed enumeration accepted at upload time.
var Categories = []string{
	"Coding", "Cooking", "Design", "Music", "Fitness",
	"Language", "Art", "Business", "Other",
}

var categorySet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(Categories))
	for _, c := range Categories {
		set[c] = struct{}{}
	}
	return set
}()

// ValidCategory reports whether c is one of the fixed categories.
func ValidCategory(c string) bool {
	_, ok := categorySet[c]
	return ok
}
