package dto

import (
	"encoding/json"
	"fmt"
)

// Type tags as they appear on the wire. Capitalization is inconsistent
// across them for protocol compatibility; do not "fix" it.
const (
	TypeAuthor  = "author"
	TypeFollow  = "Follow"
	TypePost    = "post"
	TypeLike    = "Like"
	TypeComment = "comment"
)

// Author is the federation representation of an identity. Id carries the
// canonical profile URL, never a storage-internal identifier.
type Author struct {
	Type         string `json:"type"`
	Id           string `json:"id"`
	Host         string `json:"host"`
	DisplayName  string `json:"displayName"`
	Url          string `json:"url"`
	Github       string `json:"github"`
	ProfileImage string `json:"profileImage"`
}

type Follow struct {
	Type    string  `json:"type"`
	Summary string  `json:"summary"`
	Status  string  `json:"status"`
	Actor   *Author `json:"actor"`
	Object  *Author `json:"object"`
}

type Like struct {
	Type    string  `json:"type"`
	Summary string  `json:"summary"`
	Author  *Author `json:"author"`
	Object  string  `json:"object"`
}

type Post struct {
	Type        string  `json:"type"`
	Id          string  `json:"id"`
	Title       string  `json:"title"`
	Source      string  `json:"source"`
	Origin      string  `json:"origin"`
	Description string  `json:"description"`
	ContentType string  `json:"contentType"`
	Content     string  `json:"content"`
	Author      *Author `json:"author"`
	Count       int     `json:"count"`
	Comments    string  `json:"comments"`
	Published   string  `json:"published"`
	Visibility  string  `json:"visibility"`
	Unlisted    bool    `json:"unlisted"`
}

type Comment struct {
	Type        string  `json:"type"`
	Id          string  `json:"id"`
	Author      *Author `json:"author"`
	Comment     string  `json:"comment"`
	ContentType string  `json:"contentType"`
	Published   string  `json:"published"`
}

// InboxItem defers payload decoding until the type tag has been read, so
// the store can dispatch on it.
type InboxItem struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

func (x *InboxItem) UnmarshalJSON(data []byte) error {
	type probe struct {
		Type string `json:"type"`
	}
	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Type == "" {
		return fmt.Errorf("payload is missing 'type' discriminator")
	}
	x.Type = p.Type
	x.Raw = append([]byte(nil), data...)
	return nil
}

func (x *InboxItem) MarshalJSON() ([]byte, error) {
	return append([]byte(nil), x.Raw...), nil
}
