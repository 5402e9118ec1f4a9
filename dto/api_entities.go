package dto

import "encoding/json"

// List envelopes, one per collection endpoint. The federation partners
// expect a 'type' label on each envelope too.

type AuthorList struct {
	Type  string    `json:"type"`
	Page  int       `json:"page,omitempty"`
	Size  int       `json:"size,omitempty"`
	Total int       `json:"total,omitempty"`
	Items []*Author `json:"items"`
}

type FollowerList struct {
	Type  string    `json:"type"`
	Items []*Author `json:"items"`
}

type PostList struct {
	Type  string  `json:"type"`
	Page  int     `json:"page,omitempty"`
	Size  int     `json:"size,omitempty"`
	Total int     `json:"total,omitempty"`
	Items []*Post `json:"items"`
}

type CommentList struct {
	Type  string     `json:"type"`
	Page  int        `json:"page,omitempty"`
	Size  int        `json:"size,omitempty"`
	Total int        `json:"total,omitempty"`
	Items []*Comment `json:"items"`
}

type LikeList struct {
	Type  string  `json:"type"`
	Items []*Like `json:"items"`
}

type InboxPage struct {
	Type   string            `json:"type"`
	Author string            `json:"author"`
	Page   int               `json:"page,omitempty"`
	Size   int               `json:"size,omitempty"`
	Total  int               `json:"total,omitempty"`
	Items  []json.RawMessage `json:"items"`
}

type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Github      string `json:"github"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type ProfileUpdate struct {
	DisplayName  string `json:"displayName"`
	Github       string `json:"github"`
	ProfileImage string `json:"profileImage"`
}

type Node struct {
	Id      int64  `json:"id"`
	Name    string `json:"name"`
	HostUrl string `json:"hostUrl"`
}
