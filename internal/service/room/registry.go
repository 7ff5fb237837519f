// Package room tracks connected participants per project room and owns the
// join/leave lifecycle, message fan-out and the room's live file tree.
package room

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/filetree"
)

// Conn pushes payloads to a single connected participant. Implementations
// must be safe for concurrent use and should fail fast on dead peers.
type Conn interface {
	Send(v any) error
	Close() error
}

// Participant is an authenticated identity attached to one live connection.
type Participant struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type member struct {
	handle      string
	participant Participant
	conn        Conn
}

// Room is a live fan-out group scoped to one project. All member and tree
// mutations are serialized under the room lock, so a merge always completes
// before the resulting view is broadcast. Rooms lock independently; traffic
// in one room never blocks another.
type Room struct {
	ID string

	mu      sync.Mutex
	members map[string]*member
	tree    filetree.Tree
	// defunct marks a room that has been unregistered; joiners that raced
	// the teardown must retry against the registry.
	defunct bool
}

// Registry maps project IDs to their live rooms.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Join adds the participant to the room, creating the room on first join.
// Every physical connection gets its own handle; multiple simultaneous
// connections from one identity are tracked independently.
func (r *Registry) Join(roomID string, p Participant, conn Conn) (*Room, string) {
	handle := uuid.NewString()
	for {
		r.mu.Lock()
		rm, ok := r.rooms[roomID]
		if !ok {
			rm = &Room{ID: roomID, members: make(map[string]*member)}
			r.rooms[roomID] = rm
		}
		r.mu.Unlock()

		rm.mu.Lock()
		if rm.defunct {
			// Lost a race with the last leaver; the room is already
			// unregistered. Start over against the registry.
			rm.mu.Unlock()
			continue
		}
		rm.members[handle] = &member{handle: handle, participant: p, conn: conn}
		rm.mu.Unlock()

		log.Printf("[room] %s joined room=%s handle=%s", p.ID, roomID, handle)
		return rm, handle
	}
}

// Leave removes the handle from the room; an empty room is unregistered.
// The registry lock is never held while waiting on a room lock, so a slow
// fan-out in one room cannot stall joins or broadcasts elsewhere.
func (r *Registry) Leave(roomID, handle string) {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	rm.mu.Lock()
	delete(rm.members, handle)
	if len(rm.members) == 0 && !rm.defunct {
		// Unregister while still holding the room lock so a concurrent
		// Join cannot land in a room that is about to disappear.
		r.mu.Lock()
		if r.rooms[roomID] == rm {
			delete(r.rooms, roomID)
		}
		r.mu.Unlock()
		rm.defunct = true
		log.Printf("[room] room=%s empty, removed", roomID)
	}
	rm.mu.Unlock()
}

// Get returns the live room for a project, if any.
func (r *Registry) Get(roomID string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[roomID]
	return rm, ok
}

// Broadcast delivers the payload to every member of the room, if it exists.
func (r *Registry) Broadcast(roomID string, v any) {
	if rm, ok := r.Get(roomID); ok {
		rm.Broadcast(v)
	}
}

// MemberCount reports the number of currently joined handles.
func (rm *Room) MemberCount() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members)
}

// Broadcast delivers the payload to every currently joined handle. Delivery
// is best-effort per connection: a handle whose write fails is dropped
// silently and does not block delivery to the others.
func (rm *Room) Broadcast(v any) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for handle, m := range rm.members {
		if err := m.conn.Send(v); err != nil {
			log.Printf("[room] dropping dead connection room=%s handle=%s: %v", rm.ID, handle, err)
			delete(rm.members, handle)
			m.conn.Close()
		}
	}
}

// EnsureTree installs the loader's tree on first use. The loader runs under
// the room lock so concurrent joiners observe one consistent seed.
func (rm *Room) EnsureTree(load func() (filetree.Tree, error)) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.tree != nil {
		return nil
	}
	tree, err := load()
	if err != nil {
		return err
	}
	if tree == nil {
		tree = filetree.Tree{}
	}
	rm.tree = tree
	return nil
}

// Tree returns the room's current tree. Trees are copy-on-write: MergePatch
// never mutates a previously returned value.
func (rm *Room) Tree() filetree.Tree {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.tree == nil {
		return filetree.Tree{}
	}
	return rm.tree
}

// SetTree replaces the room's tree wholesale.
func (rm *Room) SetTree(tree filetree.Tree) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if tree == nil {
		tree = filetree.Tree{}
	}
	rm.tree = tree
}

// MergePatch overlays the patch on the room's tree and returns the merged
// tree together with its flattened file view. Merge and read are a single
// critical section, so the returned view always reflects the merge.
func (rm *Room) MergePatch(patch filetree.Tree) (filetree.Tree, map[string]string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.tree == nil {
		rm.tree = filetree.Tree{}
	}
	rm.tree = filetree.Merge(rm.tree, patch)
	return rm.tree, filetree.Flatten(rm.tree)
}
