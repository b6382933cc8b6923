package domain

import "time"

// AccessAction is the kind of a ledger event.
type AccessAction string

const (
	ActionEntry AccessAction = "entry"
	ActionExit  AccessAction = "exit"
)

// Presence is the derived state of a member relative to the gym.
type Presence string

const (
	PresenceOutside Presence = "outside"
	PresenceInside  Presence = "inside"
)

// After returns the presence that results from recording action.
func (a AccessAction) After() Presence {
	if a == ActionEntry {
		return PresenceInside
	}
	return PresenceOutside
}

// Location tags where a scan was performed.
type Location string

const (
	LocationSelfService Location = "self_service"
	LocationFrontDesk   Location = "front_desk"
)

// AccessLogEntry is an append-only ledger event. Entries are never updated or deleted.
type AccessLogEntry struct {
	ID            AccessLogID
	MemberID      MemberID
	Action        AccessAction
	QRCodeScanned string
	Location      Location
	Timestamp     time.Time
}

// PresenceOf derives presence from the most recent entry of a member.
// A nil entry (no history) means the member is outside.
func PresenceOf(latest *AccessLogEntry) Presence {
	if latest == nil || latest.Action != ActionEntry {
		return PresenceOutside
	}
	return PresenceInside
}
