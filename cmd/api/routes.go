package main

import (
	"context"
	"net/http"

	"github.com/harlequingg/nearhelp/internal/metrics"
)

// routes builds the handler tree. Background work started for it stops
// with ctx.
func (app *application) routes(ctx context.Context) http.Handler {
	mux := metrics.NewRoutes()

	mux.HandleFunc("GET /v1/healthcheck", app.healthCheckHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /v1/users", app.registerUserHandler)
	mux.HandleFunc("POST /v1/users/auth", app.authenticateUserHandler)

	mux.HandleFunc("GET /v1/{$}", app.nearbyTasksHandler)
	mux.HandleFunc("GET /v1/ls/{view}", app.listTasksHandler)
	mux.HandleFunc("POST /v1/t/new", app.requireAuth(app.createTaskHandler))
	mux.HandleFunc("GET /v1/t/{id}", app.showTaskHandler)
	mux.HandleFunc("PUT /v1/t/{id}", app.requireAuth(app.updateTaskHandler))
	mux.HandleFunc("POST /v1/t/{id}/complete", app.requireAuth(app.completeTaskHandler))
	mux.HandleFunc("POST /v1/t/{id}/i-can-help", app.requireAuth(app.offerHelpHandler))
	mux.HandleFunc("GET /v1/t/{id}/helpers", app.listHelpersHandler)
	mux.HandleFunc("GET /v1/t/{id}/comments", app.listCommentsHandler)
	mux.HandleFunc("POST /v1/t/{id}/comment", app.requireAuth(app.addCommentHandler))

	mux.HandleFunc("POST /v1/h/{id}/accept", app.requireAuth(app.acceptHelperHandler))
	mux.HandleFunc("POST /v1/h/{id}/complete", app.requireAuth(app.completeHelperHandler))

	mux.HandleFunc("GET /v1/me", app.requireAuth(app.showMeHandler))
	mux.HandleFunc("PUT /v1/me", app.requireAuth(app.renameMeHandler))
	mux.HandleFunc("GET /v1/me/followers", app.requireAuth(app.myFollowersHandler))
	mux.HandleFunc("GET /v1/me/following", app.requireAuth(app.myFollowingHandler))
	mux.HandleFunc("GET /v1/me/tasks", app.requireAuth(app.myTasksHandler))
	mux.HandleFunc("GET /v1/me/activity", app.requireAuth(app.myActivityHandler))
	mux.HandleFunc("GET /v1/me/notifications", app.requireAuth(app.listNotificationsHandler))
	mux.HandleFunc("POST /v1/me/notifications/read", app.requireAuth(app.readNotificationsHandler))

	mux.HandleFunc("GET /v1/u/{id}", app.showUserHandler)
	mux.HandleFunc("POST /v1/u/{id}/follow", app.requireAuth(app.followHandler))
	mux.HandleFunc("POST /v1/u/{id}/unfollow", app.requireAuth(app.unfollowHandler))
	mux.HandleFunc("GET /v1/u/{id}/followers", app.userFollowersHandler)
	mux.HandleFunc("GET /v1/u/{id}/following", app.userFollowingHandler)
	mux.HandleFunc("GET /v1/u/{id}/tasks", app.userTasksHandler)

	return metrics.InstrumentHandler(mux, app.middleware(ctx, mux))
}

// middleware wraps next in the per-request chain. Panics are recovered inside
// logRequests so the failure is logged with the request id.
func (app *application) middleware(ctx context.Context, next http.Handler) http.Handler {
	return app.logRequests(app.recoverPanic(app.enableCORS(app.rateLimit(ctx, app.authenticate(next)))))
}
