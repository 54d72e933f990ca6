package models

// UnknownUser is the display name given to tickets whose owner is not in
// the user list.
const UnknownUser = "Unknown User"

// Ticket is a card as delivered by the remote board.
type Ticket struct {
	ID       ID     `json:"id"`
	UserID   ID     `json:"userId"`
	Status   string `json:"status"`
	Priority int    `json:"priority"` // 0 (none) .. 4 (urgent)
	Title    string `json:"title"`
}

// EnrichedTicket is a Ticket joined with its owner's display name.
type EnrichedTicket struct {
	Ticket
	Username string `json:"username"`
}
