package tracker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/exercisetracker/internal/telemetry/tracing"
)

type AddUserRequest struct {
	Username string
}

type AddExerciseRequest struct {
	UserID      string
	Description string
	Duration    string
	Date        string
}

type LogRequest struct {
	UserID string
	From   string
	To     string
	Limit  string
}

type Service struct {
	store    Store
	validate *validator.Validate

	newUserSchema  Schema
	exerciseSchema Schema
	logSchema      Schema
}

func NewService(store Store) *Service {
	s := &Service{
		store:    store,
		validate: NewValidate(),
	}

	s.newUserSchema = Schema{
		{
			Field:     FieldUsername,
			Normalize: strings.TrimSpace,
			Checks: []Check{
				{Tag: "required", Kind: ErrFieldRequired, Message: message("username is required")},
				{
					Tag:     fmt.Sprintf("max=%d", UsernameMaxLen),
					Kind:    ErrFieldLength,
					Message: message(fmt.Sprintf("username must be at most %d characters long", UsernameMaxLen)),
				},
			},
		},
	}

	s.exerciseSchema = Schema{
		{
			Field:     FieldUserID,
			Normalize: strings.TrimSpace,
			Checks: []Check{
				{Tag: "required", Kind: ErrFieldRequired, Message: message("userId is required")},
				{
					Fn:   s.userExists,
					Kind: ErrReferenceNotFound,
					Message: func(userID string) string {
						return fmt.Sprintf("user %s doesn't exist", userID)
					},
				},
			},
		},
		{
			Field: FieldDescription,
			Checks: []Check{
				{
					Tag:     fmt.Sprintf("min=%d,max=%d", DescriptionMinLen, DescriptionMaxLen),
					Kind:    ErrFieldLength,
					Message: message(fmt.Sprintf("description must be between %d and %d characters long", DescriptionMinLen, DescriptionMaxLen)),
				},
			},
		},
		{
			Field: FieldDuration,
			Checks: []Check{
				{Tag: "integer", Kind: ErrFieldType, Message: message("duration must be an integer")},
			},
		},
		{
			Field: FieldDate,
			Checks: []Check{
				{Tag: "datetime=" + DateLayout, Kind: ErrFieldFormat, Message: message("date must be a valid date (yyyy-mm-dd)")},
			},
		},
	}

	s.logSchema = Schema{
		{
			Field: FieldFrom,
			Checks: []Check{
				{Tag: "omitempty,datetime=" + DateLayout, Kind: ErrFieldFormat, Message: message("from must be a valid date (yyyy-mm-dd)")},
			},
		},
		{
			Field: FieldTo,
			Checks: []Check{
				{Tag: "omitempty,datetime=" + DateLayout, Kind: ErrFieldFormat, Message: message("to must be a valid date (yyyy-mm-dd)")},
			},
		},
		{
			Field: FieldLimit,
			Checks: []Check{
				{Tag: "omitempty,positive_integer", Kind: ErrFieldType, Message: message("limit must be a positive integer")},
			},
		},
	}

	return s
}

func (s *Service) userExists(ctx context.Context, userID string) (bool, error) {
	exists, err := s.store.UserIDExists(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func (s *Service) AddUser(ctx context.Context, req AddUserRequest) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.tracker.addUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	values, err := s.newUserSchema.Validate(ctx, s.validate, map[string]string{
		FieldUsername: req.Username,
	})
	if err != nil {
		return nil, err
	}

	user, err := s.store.AddUser(ctx, values[FieldUsername])
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("user.id", user.UserID))
	log.Debugf("new user added: [%s] [%s]", user.UserID, user.Name)
	return user, nil
}

// AddExercise validates every field of req, and only writes when all of them pass.
func (s *Service) AddExercise(ctx context.Context, req AddExerciseRequest) (_ *Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.tracker.addExercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	values, err := s.exerciseSchema.Validate(ctx, s.validate, map[string]string{
		FieldUserID:      req.UserID,
		FieldDescription: req.Description,
		FieldDuration:    req.Duration,
		FieldDate:        req.Date,
	})
	if err != nil {
		return nil, err
	}

	// both already validated
	duration, err := strconv.Atoi(values[FieldDuration])
	if err != nil {
		return nil, fmt.Errorf("parse duration: %w", err)
	}
	date, err := ParseDate(values[FieldDate])
	if err != nil {
		return nil, fmt.Errorf("parse date: %w", err)
	}

	span.SetAttributes(attribute.String("user.id", values[FieldUserID]))

	return s.store.AddExercise(ctx, Exercise{
		UserID:      values[FieldUserID],
		Description: values[FieldDescription],
		Duration:    duration,
		Date:        date,
	})
}

func (s *Service) GetLog(ctx context.Context, req LogRequest) (_ *ExerciseLog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.tracker.getLog")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	query, err := s.ParseLogQuery(ctx, req)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("user.id", query.UserID),
		attribute.Int("limit", query.Limit),
	)

	return s.store.GetUserExercises(ctx, *query)
}

// ParseLogQuery turns raw request parameters into a LogQuery.
func (s *Service) ParseLogQuery(ctx context.Context, req LogRequest) (*LogQuery, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, fmt.Errorf("%w: userId", ErrMissingParameter)
	}

	values, err := s.logSchema.Validate(ctx, s.validate, map[string]string{
		FieldFrom:  req.From,
		FieldTo:    req.To,
		FieldLimit: req.Limit,
	})
	if err != nil {
		return nil, err
	}

	query := &LogQuery{UserID: userID}
	if v := values[FieldFrom]; v != "" {
		from, err := ParseDate(v)
		if err != nil {
			return nil, fmt.Errorf("parse from: %w", err)
		}
		query.From = &from
	}
	if v := values[FieldTo]; v != "" {
		to, err := ParseDate(v)
		if err != nil {
			return nil, fmt.Errorf("parse to: %w", err)
		}
		query.To = &to
	}
	if v := values[FieldLimit]; v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse limit: %w", err)
		}
		query.Limit = limit
	}

	return query, nil
}
