package domain

import (
	"strings"
	"unicode/utf8"
)

// User is referenced by boards and notifications but owned by neither.
// Credentials never pass through this service; identity arrives verified.
type User struct {
	ID        string   `json:"id"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	Boards    []string `json:"boards"`
	Favorites []string `json:"favorites,omitempty"`
}

// DisplayName is the snapshot stored on contributor and assignee references.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Initials is the short label stamped on subtask completions. Leading runes
// are taken whole so multibyte names keep valid UTF-8.
func (u *User) Initials() string {
	var b strings.Builder
	for _, part := range []string{u.FirstName, u.LastName} {
		part = strings.TrimSpace(part)
		if part != "" {
			b.WriteString(firstRuneUpper(part))
		}
	}
	if b.Len() == 0 && u.Username != "" {
		return firstRuneUpper(u.Username)
	}
	return b.String()
}

func firstRuneUpper(s string) string {
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return ""
	}
	return strings.ToUpper(string(r))
}

// HasBoard reports whether the board id is registered on this user.
func (u *User) HasBoard(boardID string) bool {
	for _, id := range u.Boards {
		if id == boardID {
			return true
		}
	}
	return false
}

// AddBoard registers the board id, ignoring duplicates.
func (u *User) AddBoard(boardID string) {
	if !u.HasBoard(boardID) {
		u.Boards = append(u.Boards, boardID)
	}
}

// RemoveBoard unregisters the board id from both the board list and the
// favorites list.
func (u *User) RemoveBoard(boardID string) {
	u.Boards = removeString(u.Boards, boardID)
	u.Favorites = removeString(u.Favorites, boardID)
}

// ToggleFavorite flips membership of the board id in the favorites list and
// reports the resulting state.
func (u *User) ToggleFavorite(boardID string) bool {
	for _, id := range u.Favorites {
		if id == boardID {
			u.Favorites = removeString(u.Favorites, boardID)
			return false
		}
	}
	u.Favorites = append(u.Favorites, boardID)
	return true
}

// IsFavorite reports whether the board id is in the favorites list.
func (u *User) IsFavorite(boardID string) bool {
	for _, id := range u.Favorites {
		if id == boardID {
			return true
		}
	}
	return false
}

func removeString(list []string, target string) []string {
	out := list[:0]
	for _, v := range list {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
