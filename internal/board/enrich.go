package board

import "github.com/joescharf/kanban/internal/models"

// Enrich joins every ticket to its owner and returns the tickets, in input
// order, carrying the owner's display name. Tickets whose owner cannot be
// resolved get models.UnknownUser. Duplicate user ids resolve to the last
// user in the list.
func Enrich(tickets []models.Ticket, users []models.User) []models.EnrichedTicket {
	byID := make(map[models.ID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	out := make([]models.EnrichedTicket, len(tickets))
	for i, t := range tickets {
		name := models.UnknownUser
		if u, ok := byID[t.UserID]; ok && u.Name != "" {
			name = u.Name
		}
		out[i] = models.EnrichedTicket{Ticket: t, Username: name}
	}
	return out
}
