package main

import (
	"net/http"
	"strconv"

	"github.com/harlequingg/nearhelp/internal/data"
)

func (app *application) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequest(w, err)
		return
	}
	u, err := app.users.Register(r.Context(), input.Name, input.Email, input.Password)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/u/"+strconv.FormatInt(u.ID, 10))
	app.writeJSON(w, r, http.StatusCreated, envelope{"user": u})
}

func (app *application) authenticateUserHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequest(w, err)
		return
	}
	session, err := app.users.Authenticate(r.Context(), input.Email, input.Password)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"authentication": session})
}

// writeProfile answers with the profile of id, the tasks it posted and
// whether the viewer follows it.
func (app *application) writeProfile(w http.ResponseWriter, r *http.Request, id int64) {
	profile, err := app.users.Profile(r.Context(), id)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	posted, err := app.tasks.ListByUser(r.Context(), id)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	following, err := app.users.IsFollowing(r.Context(), viewerID(r), id)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{
		"profile":      profile,
		"tasks":        posted,
		"is_following": following,
	})
}

func (app *application) showUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeProfile(w, r, id)
}

func (app *application) showMeHandler(w http.ResponseWriter, r *http.Request) {
	app.writeProfile(w, r, viewerID(r))
}

func (app *application) renameMeHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name    string `json:"name"`
		Version *int   `json:"version"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequest(w, err)
		return
	}
	me := contextGetUser(r)
	version := me.Version
	if input.Version != nil {
		version = *input.Version
	}
	u, err := app.users.Rename(r.Context(), me.ID, input.Name, version)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"user": u})
}

func (app *application) followHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	if err := app.users.Follow(r.Context(), viewerID(r), id); err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"following": true})
}

func (app *application) unfollowHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	if err := app.users.Unfollow(r.Context(), viewerID(r), id); err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"following": false})
}

func (app *application) writeRefs(w http.ResponseWriter, r *http.Request, key string, refs []data.UserRef, err error) {
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{key: refs})
}

func (app *application) myFollowersHandler(w http.ResponseWriter, r *http.Request) {
	refs, err := app.users.Followers(r.Context(), viewerID(r))
	app.writeRefs(w, r, "followers", refs, err)
}

func (app *application) myFollowingHandler(w http.ResponseWriter, r *http.Request) {
	refs, err := app.users.FollowingUsers(r.Context(), viewerID(r))
	app.writeRefs(w, r, "following", refs, err)
}

func (app *application) userFollowersHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	refs, err := app.users.Followers(r.Context(), id)
	app.writeRefs(w, r, "followers", refs, err)
}

func (app *application) userFollowingHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	refs, err := app.users.FollowingUsers(r.Context(), id)
	app.writeRefs(w, r, "following", refs, err)
}

func (app *application) writeSummaries(w http.ResponseWriter, r *http.Request, id int64) {
	if _, err := app.users.Get(r.Context(), id); err != nil {
		app.fail(w, r, err)
		return
	}
	posted, err := app.tasks.ListByUser(r.Context(), id)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"tasks": posted})
}

func (app *application) myTasksHandler(w http.ResponseWriter, r *http.Request) {
	app.writeSummaries(w, r, viewerID(r))
}

func (app *application) userTasksHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeSummaries(w, r, id)
}

// myActivityHandler lists the caller's help offers; ?completed=true selects
// the finished ones.
func (app *application) myActivityHandler(w http.ResponseWriter, r *http.Request) {
	completed := false
	if v := r.URL.Query().Get("completed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, errInvalidQuery("completed"))
			return
		}
		completed = b
	}
	activity, err := app.helpers.Activity(r.Context(), viewerID(r), completed)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"activity": activity})
}

func (app *application) listNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(w, errInvalidQuery("limit"))
			return
		}
		limit = n
	}
	list, err := app.notifications.List(r.Context(), viewerID(r), limit)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"notifications": list})
}

func (app *application) readNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	n, err := app.notifications.MarkRead(r.Context(), viewerID(r))
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"marked": n})
}
