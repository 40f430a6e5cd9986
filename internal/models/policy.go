package models

import "github.com/google/uuid"

// Policy is a site policy an applicant must accept.
type Policy struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	URL  string    `json:"url"`
}

// ProfileField is a selectable custom profile field shown on the form.
type ProfileField struct {
	ShortName string   `json:"shortname"`
	Name      string   `json:"name"`
	Options   []string `json:"options"`
}
