package intra

import (
	"fmt"

	"github.com/mritob/authgate/federation"
)

type intraUser struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Login       string     `json:"login"`
	DisplayName string     `json:"displayname"`
	Image       intraImage `json:"image"`
}

type intraImage struct {
	Link string `json:"link"`
}

func mapProfile(user *intraUser) *federation.Profile {
	if user == nil {
		return nil
	}

	return &federation.Profile{
		ProviderUserID: fmt.Sprintf("%d", user.ID),
		Provider:       "intra",
		Email:          user.Email,
		Username:       user.Login,
		AvatarURL:      user.Image.Link,
		Raw: map[string]any{
			"id":          user.ID,
			"login":       user.Login,
			"email":       user.Email,
			"displayname": user.DisplayName,
			"image_link":  user.Image.Link,
		},
	}
}

func providerError(operation string, status int, code, description string, err error) *federation.ProviderError {
	return &federation.ProviderError{
		Provider:    "intra",
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
	}
}
