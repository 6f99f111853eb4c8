package dto

import "github.com/yukikurage/team-taskboard/internal/models"

// LoginResponse is returned after a successful login
type LoginResponse struct {
	UserID string      `json:"userId"`
	Role   models.Role `json:"role"`
}

// CurrentUserDTO describes the authenticated user
type CurrentUserDTO struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
}

func ToCurrentUserDTO(user models.User) CurrentUserDTO {
	return CurrentUserDTO{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	}
}
