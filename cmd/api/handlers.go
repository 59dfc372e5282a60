package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/harlequingg/nearhelp/internal/auth"
	"github.com/harlequingg/nearhelp/internal/data"
)

type envelope map[string]any

func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	status := "available"
	if err := app.store.Ping(r.Context()); err != nil {
		app.requestLog(r).WithError(err).Warn("database ping failed")
		status = "degraded"
	}
	app.writeJSON(w, r, http.StatusOK, envelope{
		"status":      status,
		"environment": app.config.Env,
		"version":     version,
	})
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	js, err := json.Marshal(body)
	if err != nil {
		app.requestLog(r).WithError(err).Error("encode response")
		writeError(w, errors.New("the server encountered a problem and could not process your request"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(js)
	w.Write([]byte("\n"))
}

const maxBodyBytes = 1 << 20

// readJSON decodes a single JSON object from the request body into dst.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var (
			syntaxErr   *json.SyntaxError
			typeErr     *json.UnmarshalTypeError
			maxBytesErr *http.MaxBytesError
		)
		switch {
		case errors.As(err, &syntaxErr):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxErr.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &typeErr):
			if typeErr.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", typeErr.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", typeErr.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return fmt.Errorf("body contains unknown key %s", strings.TrimPrefix(err.Error(), "json: unknown field "))
		case errors.As(err, &maxBytesErr):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytesErr.Limit)
		default:
			return err
		}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}
	return nil
}

func readIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, data.ErrNotFound
	}
	return id, nil
}

func composeJSONError(err error) string {
	result, mErr := json.Marshal(map[string]string{"error": err.Error()})
	if mErr != nil {
		return `{"error":"internal server error"}`
	}
	return string(result)
}

func writeError(w http.ResponseWriter, err error, statusCode int) {
	h := w.Header()
	h.Del("Content-Length")
	h.Set("Content-Type", "application/json")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	fmt.Fprintln(w, composeJSONError(err))
}

func badRequest(w http.ResponseWriter, err error) {
	writeError(w, err, http.StatusBadRequest)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, errors.New("you must be authenticated to access this resource"), http.StatusUnauthorized)
}

// fail answers err with the status its kind maps to. Anything unexpected is
// logged and reported as a 500.
func (app *application) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *data.ValidationError
	switch {
	case errors.As(err, &verr):
		w.Header().Set("X-Content-Type-Options", "nosniff")
		app.writeJSON(w, r, http.StatusUnprocessableEntity, envelope{"error": verr.Fields})
	case errors.Is(err, data.ErrNotFound):
		writeError(w, errors.New("the requested resource could not be found"), http.StatusNotFound)
	case errors.Is(err, data.ErrForbidden):
		writeError(w, errors.New("you are not allowed to do that"), http.StatusForbidden)
	case errors.Is(err, data.ErrConflict):
		writeError(w, data.ErrConflict, http.StatusConflict)
	case errors.Is(err, data.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, err, http.StatusUnauthorized)
	default:
		app.requestLog(r).WithError(err).Error("request failed")
		writeError(w, errors.New("the server encountered a problem and could not process your request"), http.StatusInternalServerError)
	}
}

func errInvalidQuery(name string) error {
	return fmt.Errorf("invalid value for query parameter %q", name)
}
