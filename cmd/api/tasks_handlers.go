package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/harlequingg/nearhelp/internal/data"
	"github.com/harlequingg/nearhelp/internal/tasks"
)

// nearbyTasksHandler serves the landing list. lat, lng and radius (km) are
// optional query parameters; without all three no distance filter applies.
func (app *application) nearbyTasksHandler(w http.ResponseWriter, r *http.Request) {
	near, err := parseNear(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	list, err := app.tasks.List(r.Context(), tasks.ViewNearby, tasks.ListParams{User: viewerID(r), Near: near})
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"view": tasks.ViewNearby, "tasks": list})
}

func parseNear(r *http.Request) (*tasks.Near, error) {
	q := r.URL.Query()
	if q.Get("lat") == "" || q.Get("lng") == "" || q.Get("radius") == "" {
		return nil, nil
	}
	var near tasks.Near
	var err error
	if near.Lat, err = strconv.ParseFloat(q.Get("lat"), 64); err != nil {
		return nil, errors.New("lat must be a number")
	}
	if near.Lng, err = strconv.ParseFloat(q.Get("lng"), 64); err != nil {
		return nil, errors.New("lng must be a number")
	}
	if near.RadiusKm, err = strconv.ParseFloat(q.Get("radius"), 64); err != nil {
		return nil, errors.New("radius must be a number")
	}
	switch {
	case !(near.Lat >= -90 && near.Lat <= 90):
		return nil, errors.New("lat must be between -90 and 90")
	case !(near.Lng >= -180 && near.Lng <= 180):
		return nil, errors.New("lng must be between -180 and 180")
	case !(near.RadiusKm > 0):
		return nil, errors.New("radius must be greater than zero")
	}
	return &near, nil
}

func (app *application) listTasksHandler(w http.ResponseWriter, r *http.Request) {
	view, ok := tasks.ParseView(r.PathValue("view"))
	if !ok {
		app.fail(w, r, data.ErrNotFound)
		return
	}
	if (view == tasks.ViewMine || view == tasks.ViewFriends) && contextGetUser(r) == nil {
		unauthorized(w)
		return
	}

	params := tasks.ListParams{User: viewerID(r)}
	if view == tasks.ViewNearby {
		near, err := parseNear(r)
		if err != nil {
			badRequest(w, err)
			return
		}
		params.Near = near
	}
	list, err := app.tasks.List(r.Context(), view, params)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"view": view, "tasks": list})
}

func (app *application) showTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	task, err := app.tasks.Get(r.Context(), id)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	offers, err := app.helpers.ListForTask(r.Context(), id)
	if err != nil {
		app.fail(w, r, err)
		return
	}

	viewer := viewerID(r)
	isHelper, err := app.helpers.IsHelping(r.Context(), viewer, id)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{
		"task":      task,
		"helpers":   offers,
		"is_owner":  viewer != 0 && viewer == task.UserID,
		"is_helper": isHelper,
	})
}

func (app *application) createTaskHandler(w http.ResponseWriter, r *http.Request) {
	var input tasks.Input
	if err := readJSON(w, r, &input); err != nil {
		badRequest(w, err)
		return
	}
	task, err := app.tasks.Create(r.Context(), viewerID(r), input)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/t/"+strconv.FormatInt(task.ID, 10))
	app.writeJSON(w, r, http.StatusCreated, envelope{"task": task})
}

func (app *application) updateTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	var input tasks.Input
	if err := readJSON(w, r, &input); err != nil {
		badRequest(w, err)
		return
	}
	task, err := app.tasks.Update(r.Context(), id, viewerID(r), input)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"task": task})
}

func (app *application) completeTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	task, err := app.tasks.SetCompleted(r.Context(), id, viewerID(r))
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"task": task})
}

func (app *application) offerHelpHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	h, err := app.helpers.Offer(r.Context(), id, viewerID(r))
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"helper": h})
}

func (app *application) listHelpersHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	offers, err := app.helpers.ListForTask(r.Context(), id)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"helpers": offers})
}

func (app *application) acceptHelperHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	h, err := app.helpers.Accept(r.Context(), id, viewerID(r))
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"helper": h})
}

func (app *application) completeHelperHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	h, err := app.helpers.MarkCompleted(r.Context(), id, viewerID(r))
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"helper": h})
}

func (app *application) listCommentsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	thread, err := app.comments.List(r.Context(), id)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"comments": thread})
}

func (app *application) addCommentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	var input struct {
		Content string `json:"content"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequest(w, err)
		return
	}
	c, err := app.comments.Add(r.Context(), id, viewerID(r), input.Content)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, envelope{"comment": c})
}
