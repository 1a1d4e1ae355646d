package roster

// Filter decides which rooms are visible. Implementations must be cheap:
// they are evaluated for every room on every filter application.
type Filter interface {
	Include(r *Room) bool
}

// allowAll is the identity filter: every room is visible.
type allowAll struct{}

func (allowAll) Include(*Room) bool { return true }

// AllowAll returns the identity filter used by RemoveFilter.
func AllowAll() Filter {
	return allowAll{}
}

// allowSet makes a room visible iff its id is a key in the set. Values are
// ignored: presence is the signal.
type allowSet map[string]bool

func (f allowSet) Include(r *Room) bool {
	_, ok := f[r.ID]
	return ok
}

// NewAllowSetFilter wraps an externally computed allow-set (e.g from a
// search or space filter) as a Filter. The map is not copied.
func NewAllowSetFilter(ids map[string]bool) Filter {
	return allowSet(ids)
}

// ComputeVisibility evaluates the filter over every room and returns the
// id -> visible mapping without mutating any room.
func ComputeVisibility(rooms map[string]*Room, f Filter) map[string]bool {
	visible := make(map[string]bool, len(rooms))
	for roomID, r := range rooms {
		visible[roomID] = f.Include(r)
	}
	return visible
}
