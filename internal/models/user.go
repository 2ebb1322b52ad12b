package models

// User is an account record. Email is stored lower-cased; UsernameKey holds
// the lower-cased username so both lookups are case-insensitive and unique.
type User struct {
	ID           string `json:"id" gorm:"type:varchar(36);primaryKey"`
	Username     string `json:"username" gorm:"not null"`
	UsernameKey  string `json:"-" gorm:"uniqueIndex;not null"`
	Email        string `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"not null"`
	Avatar       string `json:"avatar,omitempty"`
	CreatedAt    int64  `json:"createdAt" gorm:"autoCreateTime:milli;not null"` // epoch millis
}

// Profile is the public view of a user returned by search and contact routes.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}
