package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/exercisetracker/internal/telemetry/metrics"
	"github.com/2beens/exercisetracker/internal/telemetry/tracing"
	"github.com/2beens/exercisetracker/pkg"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=tracker

type exerciseTracker interface {
	AddUser(ctx context.Context, req AddUserRequest) (*User, error)
	AddExercise(ctx context.Context, req AddExerciseRequest) (*Exercise, error)
	GetLog(ctx context.Context, req LogRequest) (*ExerciseLog, error)
}

const (
	maxBodyBytes = 1 << 20

	msgUsernameTaken  = "username already taken"
	msgInternalError  = "internal server error"
	msgInvalidRequest = "invalid request body"
)

type ValidationErrorResponse struct {
	Errors map[string]string `json:"errors"`
}

type Handler struct {
	tracker        exerciseTracker
	metricsManager *metrics.Manager
}

func NewHandler(tracker exerciseTracker, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		tracker:        tracker,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) HandleNewUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.newUser")
	defer span.End()

	body, err := readBody(r)
	if err != nil {
		log.Tracef("new user, read body: %s", err)
		pkg.WriteJSONError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	user, err := handler.tracker.AddUser(ctx, AddUserRequest{
		Username: body[FieldUsername],
	})
	if err != nil {
		handler.writeError(w, "add user", err)
		return
	}

	handler.metricsManager.CounterUsersCreated.Inc()
	pkg.WriteJSON(w, http.StatusOK, user)
}

func (handler *Handler) HandleAddExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.addExercise")
	defer span.End()

	body, err := readBody(r)
	if err != nil {
		log.Tracef("add exercise, read body: %s", err)
		pkg.WriteJSONError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	exercise, err := handler.tracker.AddExercise(ctx, AddExerciseRequest{
		UserID:      body[FieldUserID],
		Description: body[FieldDescription],
		Duration:    body[FieldDuration],
		Date:        body[FieldDate],
	})
	if err != nil {
		handler.writeError(w, "add exercise", err)
		return
	}

	handler.metricsManager.CounterExercisesAdded.Inc()
	pkg.WriteJSON(w, http.StatusOK, exercise)
}

func (handler *Handler) HandleLog(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.log")
	defer span.End()

	query := r.URL.Query()
	exerciseLog, err := handler.tracker.GetLog(ctx, LogRequest{
		UserID: query.Get(FieldUserID),
		From:   query.Get(FieldFrom),
		To:     query.Get(FieldTo),
		Limit:  query.Get(FieldLimit),
	})
	if err != nil {
		handler.writeError(w, "get log", err)
		return
	}

	pkg.WriteJSON(w, http.StatusOK, exerciseLog)
}

func (handler *Handler) writeError(w http.ResponseWriter, op string, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		for field := range validationErr.Fields {
			handler.metricsManager.CounterValidationFailures.WithLabelValues(field).Inc()
		}
		log.Debugf("%s: %s", op, validationErr)
		pkg.WriteJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
			Errors: validationErr.Messages(),
		})
		return
	}

	if errors.Is(err, ErrMissingParameter) {
		pkg.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var dupErr *DuplicateFieldError
	if errors.As(err, &dupErr) && dupErr.Field == FieldName {
		log.Debugf("%s: %s", op, dupErr)
		pkg.WriteJSONError(w, http.StatusBadRequest, msgUsernameTaken)
		return
	}

	log.Errorf("%s: %s", op, err)
	pkg.WriteJSONError(w, http.StatusInternalServerError, msgInternalError)
}

// readBody returns the request fields of a urlencoded/multipart form or a flat JSON object.
func readBody(r *http.Request) (map[string]string, error) {
	mediaType := ""
	if contentType := r.Header.Get("Content-Type"); contentType != "" {
		var err error
		mediaType, _, err = mime.ParseMediaType(contentType)
		if err != nil {
			return nil, fmt.Errorf("parse content type: %w", err)
		}
	}

	if mediaType == "application/json" {
		return readJSONBody(io.LimitReader(r.Body, maxBodyBytes))
	}

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return nil, fmt.Errorf("parse multipart form: %w", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parse form: %w", err)
	}

	fields := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	return fields, nil
}

func readJSONBody(body io.Reader) (map[string]string, error) {
	var raw map[string]any
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
		case string:
			fields[key] = v
		case float64:
			fields[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			fields[key] = strconv.FormatBool(v)
		default:
			// nested objects and arrays are never valid field values
			fields[key] = fmt.Sprint(v)
		}
	}
	return fields, nil
}
