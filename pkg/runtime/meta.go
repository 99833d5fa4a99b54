package runtime

import (
	"time"
)

// Object is anything addressable by id and name through the api.
type Object interface {
	GetName() string
	GetID() string
}

type ObjectMeta struct {
	Name    string    `json:"name"`
	ID      string    `json:"id"`
	ModTime time.Time `json:"modTime"`
}

func (meta *ObjectMeta) GetName() string       { return meta.Name }
func (meta *ObjectMeta) GetID() string         { return meta.ID }
func (meta *ObjectMeta) GetModTime() time.Time { return meta.ModTime }
