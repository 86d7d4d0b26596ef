package types

// Thumbnail is one preview image.
type Thumbnail struct {
	URL    string
	Width  int
	Height int
}

// Metadata contains descriptive fields of an extraction result.
type Metadata struct {
	ID          string
	Title       string
	Description string
	Duration    float64 // seconds
	Thumbnails  []Thumbnail
	Timestamp   int64 // unix seconds
	UploadDate  string // YYYYMMDD
	Uploader    string
	UploaderID  string
	IsLive      bool
	Extra       map[string]string
}

// Overlay returns m with every non-zero field of child applied on top.
// Child values win on conflict.
func (m Metadata) Overlay(child Metadata) Metadata {
	out := m
	if child.ID != "" {
		out.ID = child.ID
	}
	if child.Title != "" {
		out.Title = child.Title
	}
	if child.Description != "" {
		out.Description = child.Description
	}
	if child.Duration != 0 {
		out.Duration = child.Duration
	}
	if len(child.Thumbnails) > 0 {
		out.Thumbnails = append([]Thumbnail(nil), child.Thumbnails...)
	}
	if child.Timestamp != 0 {
		out.Timestamp = child.Timestamp
	}
	if child.UploadDate != "" {
		out.UploadDate = child.UploadDate
	}
	if child.Uploader != "" {
		out.Uploader = child.Uploader
	}
	if child.UploaderID != "" {
		out.UploaderID = child.UploaderID
	}
	if child.IsLive {
		out.IsLive = true
	}
	if len(m.Extra) > 0 || len(child.Extra) > 0 {
		extra := make(map[string]string, len(m.Extra)+len(child.Extra))
		for k, v := range m.Extra {
			extra[k] = v
		}
		for k, v := range child.Extra {
			extra[k] = v
		}
		out.Extra = extra
	}
	return out
}
