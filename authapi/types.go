package authapi

// Theme preference values accepted by the backend.
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// Currency preference values accepted by the backend.
const (
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
	CurrencyGBP = "GBP"
)

// User is the profile document returned by login, registration and the
// profile endpoint.
type User struct {
	ID                 int64  `json:"id"`
	Username           string `json:"username"`
	Email              string `json:"email"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	PhoneNumber        string `json:"phone_number"`
	ProfilePicture     string `json:"profile_picture"`
	ThemePreference    string `json:"theme_preference"`
	CurrencyPreference string `json:"currency_preference"`
	EmailNotifications bool   `json:"email_notifications"`
}

// LoginResult is the body of a successful login.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// JWTPair is the access/refresh pair issued at registration.
type JWTPair struct {
	Refresh string `json:"refresh"`
	Access  string `json:"access"`
}

// RegisterResult is the body of a successful registration.
type RegisterResult struct {
	Token string  `json:"token"`
	JWT   JWTPair `json:"jwt"`
	User  User    `json:"user"`
}

// Registration is the sign-up form.
type Registration struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// ProfileUpdate is a partial profile change. Nil fields are left untouched
// by the server.
type ProfileUpdate struct {
	Username           *string `json:"username,omitempty"`
	Email              *string `json:"email,omitempty"`
	FirstName          *string `json:"first_name,omitempty"`
	LastName           *string `json:"last_name,omitempty"`
	PhoneNumber        *string `json:"phone_number,omitempty"`
	ThemePreference    *string `json:"theme_preference,omitempty"`
	CurrencyPreference *string `json:"currency_preference,omitempty"`
	EmailNotifications *bool   `json:"email_notifications,omitempty"`
}

// Settings is the partial document accepted and echoed by auth/settings/.
type Settings struct {
	EmailNotifications *bool   `json:"email_notifications,omitempty"`
	ThemePreference    *string `json:"theme_preference,omitempty"`
	CurrencyPreference *string `json:"currency_preference,omitempty"`
}

// ValidTheme reports whether v is a theme the backend accepts.
func ValidTheme(v string) bool {
	switch v {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// ValidCurrency reports whether v is a currency the backend accepts.
func ValidCurrency(v string) bool {
	switch v {
	case CurrencyUSD, CurrencyEUR, CurrencyGBP:
		return true
	}
	return false
}
