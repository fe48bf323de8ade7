package simplestore

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
)

func (s *service) ListUsers(ctx context.Context) ([]*User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*User{}
	}
	return users, nil
}

func (s *service) GetUser(ctx context.Context, id int64) (*User, error) {
	if id <= 0 {
		return nil, NewValidationError("id", "Invalid id")
	}
	return s.users.GetUser(ctx, id)
}

func (s *service) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return nil, s.validationError(err, "Missing required fields: email and name")
	}

	user, err := s.users.CreateUser(ctx, req.Email, req.Name)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) UpdateUser(ctx context.Context, req UpdateUserRequest) (*User, error) {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return nil, s.validationError(err, "Missing required field: id")
	}

	patch := req.Patch()
	if len(patch) == 0 {
		return nil, NewValidationError("", "No fields to update")
	}

	user, err := s.users.UpdateUser(ctx, req.ID, patch)
	if err != nil {
		return nil, &UserError{UserID: req.ID, Op: "update", Err: err}
	}
	return user, nil
}

func (s *service) DeleteUser(ctx context.Context, id int64) (int64, error) {
	if id == 0 {
		return 0, NewValidationError("id", "Missing required parameter: id")
	}
	if id < 0 {
		return 0, NewValidationError("id", "Invalid id")
	}

	exists, err := s.users.UserExists(ctx, id)
	if err != nil {
		return 0, &UserError{UserID: id, Op: "delete", Err: err}
	}
	if !exists {
		return 0, ErrUserNotFound
	}

	if err := s.users.DeleteUser(ctx, id); err != nil {
		return 0, &UserError{UserID: id, Op: "delete", Err: err}
	}
	return id, nil
}

// validationError converts validator failures into a ValidationError
// carrying the first offending field and a caller-facing message.
func (s *service) validationError(err error, message string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return NewValidationError("", message)
	}
	fe := verrs[0]
	if fe.Tag() == "gt" {
		return NewValidationError(fe.Field(), "Invalid "+fe.Field())
	}
	return NewValidationError(fe.Field(), message)
}
