package models

import (
	"time"
)

// RulesetID identifies the gameplay ruleset a playlist item is played with.
type RulesetID int32

const (
	// RulesetOsu is the standard circle-clicking ruleset.
	RulesetOsu RulesetID = iota

	// RulesetTaiko is the drum ruleset.
	RulesetTaiko

	// RulesetCatch is the fruit-catching ruleset.
	RulesetCatch

	// RulesetMania is the vertical-scrolling key ruleset.
	RulesetMania
)

// String returns a human-readable name for the ruleset.
func (r RulesetID) String() string {
	switch r {
	case RulesetOsu:
		return "osu"
	case RulesetTaiko:
		return "taiko"
	case RulesetCatch:
		return "catch"
	case RulesetMania:
		return "mania"
	default:
		return "unknown"
	}
}

// Valid reports whether the ruleset id is in range.
func (r RulesetID) Valid() bool {
	return r >= RulesetOsu && r <= RulesetMania
}

// PlaylistItem is one queued round of a multiplayer room. Items live in the
// database and are mirrored into the room's in-memory playlist; they are
// marked expired when played, never deleted while the room is live.
type PlaylistItem struct {
	// ID is assigned by the database on insert.
	ID int64 `json:"id" bson:"_id"`

	// RoomID is the room this item belongs to.
	RoomID int64 `json:"roomId" bson:"roomId"`

	// OwnerID is the user who enqueued the item.
	OwnerID int32 `json:"ownerId" bson:"ownerId"`

	// BeatmapID identifies the beatmap to play.
	BeatmapID int32 `json:"beatmapId" bson:"beatmapId" validate:"required"`

	// BeatmapChecksum is the client-reported MD5 of the beatmap. It must
	// match the checksum the database knows for BeatmapID.
	BeatmapChecksum string `json:"beatmapChecksum" bson:"beatmapChecksum" validate:"required,md5"`

	// RulesetID is the ruleset the item is played with.
	RulesetID RulesetID `json:"rulesetId" bson:"rulesetId"`

	// RequiredMods are applied to every player of this item.
	RequiredMods []Mod `json:"requiredMods" bson:"requiredMods"`

	// AllowedMods may be freely picked by each player of this item.
	AllowedMods []Mod `json:"allowedMods" bson:"allowedMods"`

	// Expired marks an item whose round has concluded.
	Expired bool `json:"expired" bson:"expired"`

	// PlayedAt is when the item expired, nil while unplayed.
	PlayedAt *time.Time `json:"playedAt,omitempty" bson:"playedAt,omitempty"`

	// ObjectTimes contains timestamps for this item.
	ObjectTimes `bson:",inline"`
}

// Clone returns a deep copy of the item.
func (p *PlaylistItem) Clone() *PlaylistItem {
	c := *p
	c.RequiredMods = append([]Mod(nil), p.RequiredMods...)
	c.AllowedMods = append([]Mod(nil), p.AllowedMods...)
	if p.PlayedAt != nil {
		t := *p.PlayedAt
		c.PlayedAt = &t
	}
	return &c
}
