// Data types for Sets, Assets and their renditions. These are the records that get
// persisted to the metadata database.
package amstypes

import (
	"time"
)

type SetState string

const (
	SetStateDraft    SetState = "draft"
	SetStateUsable   SetState = "usable"
	SetStateDisabled SetState = "disabled"
)

type AssetState string

const (
	AssetStateDraft    AssetState = "draft"
	AssetStateInternal AssetState = "internal"
	AssetStatePublic   AssetState = "public"
)

// a named bucket of Assets. all Assets of a Set get their binaries stored via the same
// storage Destination.
type Set struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"` // unique
	Description       string            `json:"description"`
	State             SetState          `json:"state"`
	DestinationName   string            `json:"destination_name"`   // refers to a registered Destination
	DestinationConfig map[string]string `json:"destination_config"` // per-Set extra config for the Destination, opaque to us
	MaximumAssetSize  int64             `json:"maximum_asset_size"` // bytes, 0 = no Set-level limit
	OriginalCreator   string            `json:"original_creator"`
	VersionCreator    string            `json:"version_creator"`
	FirstCreated      time.Time         `json:"first_created"`
	VersionCreated    time.Time         `json:"version_created"`
}

type AssetTag struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// metadata record for one uploaded binary (plus optional derived renditions)
type Asset struct {
	ID              string            `json:"id"`
	SetID           string            `json:"set_id"`
	ParentID        string            `json:"parent_id"` // optional link to the Asset this was derived from
	State           AssetState        `json:"state"`
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	Filename        string            `json:"filename"`
	Mimetype        string            `json:"mimetype"`
	Length          int64             `json:"length"`
	MediaID         string            `json:"media_id"` // opaque, assigned by the storage backend
	Tags            []AssetTag        `json:"tags"`
	Extra           map[string]string `json:"extra"`
	Renditions      []Rendition       `json:"renditions"`
	OriginalCreator string            `json:"original_creator"`
	VersionCreator  string            `json:"version_creator"`
	FirstCreated    time.Time         `json:"first_created"`
	VersionCreated  time.Time         `json:"version_created"`

	// advisory lock. locked iff LockAction != ""
	LockUser    string     `json:"lock_user"`
	LockSession string     `json:"lock_session"`
	LockAction  string     `json:"lock_action"`
	LockTime    *time.Time `json:"lock_time"`
}

// dimensions as the client requested them. zero value = dimension was not requested,
// and acts as a wildcard when resolving renditions from the cache.
type RenditionParams struct {
	Width           int  `json:"width"`
	Height          int  `json:"height"`
	KeepProportions bool `json:"keep_proportions"`
}

// a resized copy of the Asset's binary, stored in the same Destination. never mutated
// after creation - only appended, or dropped along with the Asset.
type Rendition struct {
	Name           string          `json:"name"` // "original" for the as-uploaded dimensions capture
	MediaID        string          `json:"media_id"`
	Width          int             `json:"width"` // actual pixel dimensions
	Height         int             `json:"height"`
	Params         RenditionParams `json:"params"`
	Filename       string          `json:"filename"`
	Length         int64           `json:"length"`
	VersionCreated time.Time       `json:"version_created"`
}

const RenditionNameOriginal = "original"
