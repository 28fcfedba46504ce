package integrations

import "time"

// Item is the normalized representation of a remote object, independent of
// which platform it came from
type Item struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	Name             string     `json:"name"`
	CreationTime     *time.Time `json:"creation_time,omitempty"`
	LastModifiedTime *time.Time `json:"last_modified_time,omitempty"`
	ParentID         *string    `json:"parent_id,omitempty"`
	URL              *string    `json:"url,omitempty"`
	Directory        bool       `json:"directory"`

	// Extra carries platform-specific attributes that have no normalized
	// field, keyed by attribute name
	Extra map[string]any `json:"extra,omitempty"`
}
