package project

import (
	"time"

	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/filetree"
)

// Project is the persisted record backing one collaboration room.
type Project struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Users     []string      `json:"users"`
	CreatedBy string        `json:"createdBy"`
	FileTree  filetree.Tree `json:"fileTree"`
	CreatedAt time.Time     `json:"createdAt"`
}

// HasUser reports whether the given user is a member of the project.
func (p Project) HasUser(userID string) bool {
	for _, id := range p.Users {
		if id == userID {
			return true
		}
	}
	return false
}
