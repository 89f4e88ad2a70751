package multiplayer

// Event names published to room groups. Clients subscribe to these by
// being members of the room's control group; LoadRequested alone targets
// the gameplay group.
const (
	EventUserJoined                     = "room:user_joined"
	EventUserLeft                       = "room:user_left"
	EventUserStateChanged               = "room:user_state_changed"
	EventHostChanged                    = "room:host_changed"
	EventRoomStateChanged               = "room:state_changed"
	EventSettingsChanged                = "room:settings_changed"
	EventPlaylistItemAdded              = "room:playlist_item_added"
	EventPlaylistItemChanged            = "room:playlist_item_changed"
	EventMatchStarted                   = "room:match_started"
	EventResultsReady                   = "room:results_ready"
	EventLoadRequested                  = "room:load_requested"
	EventMatchRoomStateChanged          = "room:match_room_state_changed"
	EventMatchUserStateChanged          = "room:match_user_state_changed"
	EventUserBeatmapAvailabilityChanged = "room:user_beatmap_availability_changed"
)
