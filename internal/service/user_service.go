package service

import (
	"errors"
	"fmt"

	"go-pos-backend/internal/model"
	"go-pos-backend/internal/repository"
	"go-pos-backend/pkg/validator"

	"github.com/google/uuid"
)

var ErrEmailTaken = errors.New("email already registered")

// CreateUserRequest carries the fields an admin submits for a new account.
type CreateUserRequest struct {
	Name     string     `json:"name" validate:"required"`
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=6"`
	Role     model.Role `json:"role" validate:"required,oneof=ADMIN KASIR"`
}

// UpdateUserRequest carries the editable account fields. Password is optional.
type UpdateUserRequest struct {
	Name     string     `json:"name" validate:"required"`
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"omitempty,min=6"`
	Role     model.Role `json:"role" validate:"required,oneof=ADMIN KASIR"`
	IsActive *bool      `json:"is_active"`
}

type UserService interface {
	CreateUser(req *CreateUserRequest) (*model.UserResponse, error)
	UpdateUser(id uuid.UUID, req *UpdateUserRequest) (*model.UserResponse, error)
	DeleteUser(id uuid.UUID) error
	GetUsers() ([]model.UserResponse, error)
	GetUserByID(id uuid.UUID) (*model.UserResponse, error)
}

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) CreateUser(req *CreateUserRequest) (*model.UserResponse, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		firstErr := errs[0]
		return nil, fmt.Errorf("validation failed: field '%s' failed on tag '%s'", firstErr.FailedField, firstErr.Tag)
	}

	existing, _ := s.userRepo.FindByEmail(req.Email)
	if existing != nil && existing.ID != uuid.Nil {
		return nil, ErrEmailTaken
	}

	user := &model.User{
		Name:     req.Name,
		Email:    req.Email,
		Role:     req.Role,
		IsActive: true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, err
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	resp := user.ToResponse()
	return &resp, nil
}

func (s *userService) UpdateUser(id uuid.UUID, req *UpdateUserRequest) (*model.UserResponse, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		firstErr := errs[0]
		return nil, fmt.Errorf("validation failed: field '%s' failed on tag '%s'", firstErr.FailedField, firstErr.Tag)
	}

	user, err := s.userRepo.FindByID(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	if req.Email != user.Email {
		taken, _ := s.userRepo.FindByEmail(req.Email)
		if taken != nil && taken.ID != uuid.Nil && taken.ID != id {
			return nil, ErrEmailTaken
		}
	}

	user.Name = req.Name
	user.Email = req.Email
	user.Role = req.Role
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.Password != "" {
		if err := user.SetPassword(req.Password); err != nil {
			return nil, err
		}
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	resp := user.ToResponse()
	return &resp, nil
}

func (s *userService) DeleteUser(id uuid.UUID) error {
	if _, err := s.userRepo.FindByID(id); err != nil {
		return ErrUserNotFound
	}
	return s.userRepo.Delete(id)
}

func (s *userService) GetUsers() ([]model.UserResponse, error) {
	users, err := s.userRepo.FindAll()
	if err != nil {
		return nil, err
	}

	responses := make([]model.UserResponse, len(users))
	for i, u := range users {
		responses[i] = u.ToResponse()
	}
	return responses, nil
}

func (s *userService) GetUserByID(id uuid.UUID) (*model.UserResponse, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	resp := user.ToResponse()
	return &resp, nil
}
