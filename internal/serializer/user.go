package serializer

import (
	"encoding/json"
	"regexp"

	"github.com/sakif/snippet-api/internal/model"
)

const MaxUsernameLength = 150

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

const msgBadUsername = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."

// Credentials is the body of the register and login requests.
type Credentials struct {
	Username string
	Password string
}

var credentialsRecord = Record[Credentials]{
	{
		Name:     "username",
		Required: true,
		Validate: func(raw json.RawMessage, c *Credentials) []string {
			v, errs := decodeString(raw, stringRule{trim: true, maxLen: MaxUsernameLength})
			if errs != nil {
				return errs
			}
			if !usernamePattern.MatchString(v) {
				return []string{msgBadUsername}
			}
			c.Username = v
			return nil
		},
	},
	{
		Name:     "password",
		Required: true,
		Validate: func(raw json.RawMessage, c *Credentials) []string {
			v, errs := decodeString(raw, stringRule{})
			c.Password = v
			return errs
		},
	},
}

// DecodeCredentials validates a username/password body.
func DecodeCredentials(fields Fields) (Credentials, error) {
	return credentialsRecord.Validate(fields, Create)
}

// UserResponse is the wire form of a user. Snippets lists the IDs of the
// snippets they own, newest first.
type UserResponse struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Snippets []string `json:"snippets"`
}

func NewUserResponse(u *model.User, snippetIDs []string) UserResponse {
	if snippetIDs == nil {
		snippetIDs = []string{}
	}
	return UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Snippets: snippetIDs,
	}
}
