package models

// MatchType selects the match structure of a room, independent of ruleset.
type MatchType int

const (
	// MatchTypeHeadToHead is a free-for-all between all members.
	MatchTypeHeadToHead MatchType = iota

	// MatchTypeTeamVersus splits members into two fixed teams.
	MatchTypeTeamVersus
)

// String returns a human-readable name for the match type.
func (t MatchType) String() string {
	switch t {
	case MatchTypeHeadToHead:
		return "head_to_head"
	case MatchTypeTeamVersus:
		return "team_versus"
	default:
		return "unknown"
	}
}

// Valid reports whether the match type is one of the defined types.
func (t MatchType) Valid() bool {
	return t >= MatchTypeHeadToHead && t <= MatchTypeTeamVersus
}

// Team is one side of a team-versus match.
type Team struct {
	// ID is the team id referenced by ChangeTeamRequest.
	ID int32 `json:"id"`

	// Name is the team's display name.
	Name string `json:"name"`
}

// TeamVersusRoomState is the per-room state of the team-versus match type.
type TeamVersusRoomState struct {
	// Teams are the sides members can join.
	Teams []Team `json:"teams"`
}

// TeamVersusUserState is the per-user state of the team-versus match type.
type TeamVersusUserState struct {
	// TeamID is the team the user is on.
	TeamID int32 `json:"teamId"`
}

// MatchRoomState is the tagged variant holding whatever per-room state the
// active match type owns. Exactly the variant matching Type is non-nil.
type MatchRoomState struct {
	// Type is the active match type.
	Type MatchType `json:"type"`

	// TeamVersus is set when Type is MatchTypeTeamVersus.
	TeamVersus *TeamVersusRoomState `json:"teamVersus,omitempty"`
}

func (s MatchRoomState) clone() MatchRoomState {
	c := s
	if s.TeamVersus != nil {
		tv := TeamVersusRoomState{Teams: append([]Team(nil), s.TeamVersus.Teams...)}
		c.TeamVersus = &tv
	}
	return c
}

// MatchUserState is the tagged variant holding per-user match type state.
type MatchUserState struct {
	// Type is the active match type.
	Type MatchType `json:"type"`

	// TeamVersus is set when Type is MatchTypeTeamVersus.
	TeamVersus *TeamVersusUserState `json:"teamVersus,omitempty"`
}

func (s MatchUserState) clone() MatchUserState {
	c := s
	if s.TeamVersus != nil {
		tv := *s.TeamVersus
		c.TeamVersus = &tv
	}
	return c
}

// Match request kinds accepted by SendMatchRequest.
const (
	// MatchRequestChangeTeam asks to move the caller to another team.
	MatchRequestChangeTeam = "changeTeam"
)

// MatchRequest is a client request dispatched to the room's match type.
type MatchRequest struct {
	// Type is the request kind.
	Type string `json:"type" validate:"required"`

	// TeamID is the target team for a changeTeam request.
	TeamID *int32 `json:"teamId,omitempty"`
}
