package domain

// Assignment is the persisted record of a player's last team. Players are
// recognized by the (Username, UUID) pair; there is no separate account
// system. ID is the database surrogate key and is only used to target
// updates.
type Assignment struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	UUID     string `json:"uuid"`
	Team     Team   `json:"team"`
}
