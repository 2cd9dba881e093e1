package api

// Backend endpoints consumed by the console.
const (
	PathLogin   = "/api/auth/login"
	PathRefresh = "/api/auth/refresh"
	PathMe      = "/api/auth/me"
	PathLogout  = "/api/auth/logout"
	PathUsers   = "/api/users"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"` //nolint:gosec // G117: request field, never logged
}

// RefreshRequest is the body of POST /api/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"` //nolint:gosec // G117: request field, never logged
}

// TokenResponse is the data payload of the login and refresh endpoints.
// ExpiresIn is in seconds; zero means the backend did not say.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// CurrentUser is the data payload of GET /api/auth/me. Older backends
// send the merchant id as "pid" instead of "id".
type CurrentUser struct {
	ID       int64  `json:"id"`
	PID      int64  `json:"pid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     int    `json:"role"`
	RoleName string `json:"roleName"`
}

// UserID returns ID, falling back to PID.
func (u CurrentUser) UserID() int64 {
	if u.ID != 0 {
		return u.ID
	}

	return u.PID
}

// User is one row of GET /api/users.
type User struct {
	ID        int64  `json:"id"`
	PID       int64  `json:"pid"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      int    `json:"role"`
	RoleName  string `json:"roleName"`
	State     int    `json:"state"`
	StateName string `json:"stateName"`
}

// UserID returns ID, falling back to PID.
func (u User) UserID() int64 {
	if u.ID != 0 {
		return u.ID
	}

	return u.PID
}

// Page is the paginated list wrapper used by list endpoints.
type Page[T any] struct {
	Page     int64 `json:"page"`
	PageSize int64 `json:"pageSize"`
	Total    int64 `json:"total"`
	Items    []T   `json:"items"`
}
