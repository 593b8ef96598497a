package model

const (
	// FallbackImageID is used whenever a song has no usable image asset.
	FallbackImageID int64 = 6031097225

	DefaultSongName   = "Unknown Song"
	DefaultArtistName = "Unknown Artist"
)

// Song represents a normalized playlist entry.
type Song struct {
	Name string `json:"name"`
	// Track asset id, duplicates allowed
	ID     int64  `json:"id"`
	Artist string `json:"artist"`
	// Duration in seconds
	Duration int64 `json:"duration"`
	// Display image asset id
	ImageID int64 `json:"imageId"`

	// Set only for in-game requests
	RequestedBy  string `json:"requestedBy,omitempty"`
	PlayerUserID string `json:"playerUserId,omitempty"`
}

// Playlist is the ordered song list. Position is the only addressing handle.
type Playlist []Song

// SongInput is a song-like object as received from clients or read from disk.
type SongInput struct {
	Name         Value `json:"name"`
	ID           Value `json:"id"`
	Artist       Value `json:"artist"`
	Duration     Value `json:"duration"`
	ImageID      Value `json:"imageId"`
	RequestedBy  Value `json:"requestedBy"`
	PlayerUserID Value `json:"playerUserId"`
}

// Input converts a normalized song back into an input with every field set.
func (s Song) Input() SongInput {
	in := SongInput{
		Name:     TextValue(s.Name),
		ID:       IntValue(s.ID),
		Artist:   TextValue(s.Artist),
		Duration: IntValue(s.Duration),
		ImageID:  IntValue(s.ImageID),
	}
	if s.RequestedBy != "" {
		in.RequestedBy = TextValue(s.RequestedBy)
	}
	if s.PlayerUserID != "" {
		in.PlayerUserID = TextValue(s.PlayerUserID)
	}
	return in
}

// Merge overlays the usable fields of patch onto base. Fields that are
// absent or cannot be coerced keep the base value.
func Merge(base, patch SongInput) SongInput {
	merged := base
	overlayText(&merged.Name, patch.Name)
	overlayInt(&merged.ID, patch.ID)
	overlayText(&merged.Artist, patch.Artist)
	overlayInt(&merged.Duration, patch.Duration)
	overlayInt(&merged.ImageID, patch.ImageID)
	overlayText(&merged.RequestedBy, patch.RequestedBy)
	overlayText(&merged.PlayerUserID, patch.PlayerUserID)
	return merged
}

func overlayText(dst *Value, v Value) {
	if _, ok := v.Text(); ok {
		*dst = v
	}
}

func overlayInt(dst *Value, v Value) {
	if _, ok := v.Int(); ok {
		*dst = v
	}
}

// Normalize fills every missing or uncoercible field with its default.
func Normalize(in SongInput) Song {
	song := Song{
		Name:    DefaultSongName,
		Artist:  DefaultArtistName,
		ImageID: FallbackImageID,
	}

	if name, ok := in.Name.Text(); ok {
		song.Name = name
	}
	if id, ok := in.ID.Int(); ok {
		song.ID = id
	}
	if artist, ok := in.Artist.Text(); ok {
		song.Artist = artist
	}
	if d, ok := in.Duration.Int(); ok && d > 0 {
		song.Duration = d
	}
	if img, ok := in.ImageID.Int(); ok {
		song.ImageID = img
	}
	if by, ok := in.RequestedBy.Text(); ok {
		song.RequestedBy = by
	}
	if uid, ok := in.PlayerUserID.Text(); ok {
		song.PlayerUserID = uid
	}

	return song
}

// NormalizeAll normalizes a decoded document element by element.
func NormalizeAll(inputs []SongInput) Playlist {
	playlist := make(Playlist, 0, len(inputs))
	for _, in := range inputs {
		playlist = append(playlist, Normalize(in))
	}
	return playlist
}

var defaultSongs = Playlist{
	{Name: "Summer Vibes", ID: 1234567890, Artist: "DJ Example", Duration: 180, ImageID: FallbackImageID},
	{Name: "Night Club Mix", ID: 9876543210, Artist: "Producer X", Duration: 240, ImageID: FallbackImageID},
	{Name: "Chill House", ID: 5555555555, Artist: "Beat Maker", Duration: 200, ImageID: FallbackImageID},
	{Name: "Deep Bass", ID: 7777777777, Artist: "Bass Lord", Duration: 220, ImageID: FallbackImageID},
}

// DefaultPlaylist returns a fresh copy of the bootstrap playlist.
func DefaultPlaylist() Playlist {
	playlist := make(Playlist, len(defaultSongs))
	copy(playlist, defaultSongs)
	return playlist
}
