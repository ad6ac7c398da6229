package services

import (
	"errors"

	"taskflow/backend/internal/apperrors"
	"taskflow/backend/internal/config"
	"taskflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegistrationRequest struct {
	Username   string `json:"username" binding:"required,min=3,max=50"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	FirstName  string `json:"first_name" binding:"required,min=1,max=50"`
	LastName   string `json:"last_name" binding:"required,min=1,max=50"`
	Department string `json:"department,omitempty" binding:"max=100"`
	Position   string `json:"position,omitempty" binding:"max=100"`
}

type RegisterService interface {
	RegisterUser(db *gorm.DB, req RegistrationRequest) (*models.User, error)
}

type RegisterServiceImpl struct {
	cfg config.AuthConfig
}

func NewRegisterService(cfg config.AuthConfig) *RegisterServiceImpl {
	return &RegisterServiceImpl{cfg: cfg}
}

// RegisterUser creates a member account. Privileged roles are granted by an
// admin afterwards, never self-assigned at registration.
func (s *RegisterServiceImpl) RegisterUser(db *gorm.DB, req RegistrationRequest) (*models.User, error) {
	var existing models.User
	if err := db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return nil, apperrors.ErrConflict.WithMessage("email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := db.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		return nil, apperrors.ErrConflict.WithMessage("username already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cost := s.cfg.BCryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), cost)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	user := models.User{
		ID:         userID,
		Username:   req.Username,
		Email:      req.Email,
		Password:   string(hashedPassword),
		Role:       models.RoleMember,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Department: req.Department,
		Position:   req.Position,
		IsActive:   true,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}
