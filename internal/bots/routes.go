package bots

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the bot webhook endpoints on the given router. A
// nil handler leaves its platform unmounted.
func RegisterRoutes(r chi.Router, slackHandler *SlackHandler, teamsHandler *TeamsHandler) {
	if slackHandler != nil {
		r.Post("/api/bots/slack/events", slackHandler.HandleEvent)
	}
	if teamsHandler != nil {
		r.Post("/api/bots/teams/activity", teamsHandler.HandleActivity)
	}
}
