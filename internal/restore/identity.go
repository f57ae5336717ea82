package restore

// IdentityMap maps original tab ids to the ids of the tabs created for them.
type IdentityMap map[int]int

// Opener resolves the tab a node should be opened from: the created tab
// of its nearest original ancestor that was created. parentOf maps an
// original id to its original parent id. ok is false when no ancestor was
// created.
func (m IdentityMap) Opener(parentID *int, parentOf map[int]int) (newID int, ok bool) {
	if parentID == nil {
		return 0, false
	}
	cur := *parentID
	for steps := 0; steps <= len(parentOf); steps++ {
		if id, found := m[cur]; found {
			return id, true
		}
		next, has := parentOf[cur]
		if !has {
			return 0, false
		}
		cur = next
	}
	return 0, false
}
